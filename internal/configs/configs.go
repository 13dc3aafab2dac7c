/*
Package configs is responsible for loading and parsing the application's configuration settings.

Settings come from environment variables, optionally seeded from a .env file in
the working directory: the listen address, CORS origins, where shared files
and the user directory are stored, and the S3 or PostgreSQL connection details
when those backends are selected.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Directory backends.
const (
	DirectoryJSON     = "json"
	DirectoryPostgres = "postgres"
	DirectoryMemory   = "memory"
)

// Blob store backends.
const (
	BlobDisk = "disk"
	BlobS3   = "s3"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Host        string
	Port        int

	// Logging Settings
	LogLevel string
	LogFile  string

	// Security Settings
	AllowedOrigins []string

	// Shared File Settings
	BlobBackend string
	UploadDir   string
	MaxUploadMB int

	// S3 Storage Settings
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Prefix          string

	// User Directory Settings
	DirectoryBackend string
	UsersFile        string
	DatabaseDSN      string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// MaxUploadBytes is the upload limit in bytes.
func (c *AppConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *AppConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads the configuration from the environment, applying defaults
// and validating backend-specific requirements.
func LoadConfig() (*AppConfig, error) {
	// A missing .env file is the normal case outside development.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	cfg.Environment = getEnv("ENVIRONMENT", "development")
	cfg.Host = getEnv("HOST", "0.0.0.0")

	cfg.Port, err = strconv.Atoi(getEnv("PORT", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the allowed range (%d-%d)", cfg.Port, 1024, 65535)
	}

	// --- Logging Settings ---
	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
		}
	}
	cfg.LogFile = os.Getenv("LOG_FILE")

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	// --- Shared File Settings ---
	cfg.UploadDir = getEnv("UPLOAD_DIR", "static/uploads")

	cfg.MaxUploadMB, err = strconv.Atoi(getEnv("MAX_UPLOAD_MB", "512"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB environment variable: %w", err)
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}

	cfg.BlobBackend = strings.ToLower(getEnv("BLOB_BACKEND", BlobDisk))
	switch cfg.BlobBackend {
	case BlobDisk:
	case BlobS3:
		if err := cfg.loadS3(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported BLOB_BACKEND %q (expected %q or %q)", cfg.BlobBackend, BlobDisk, BlobS3)
	}

	// --- User Directory Settings ---
	cfg.UsersFile = getEnv("USERS_FILE", "users.json")
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")

	cfg.DirectoryBackend = strings.ToLower(getEnv("DIRECTORY_BACKEND", DirectoryJSON))
	switch cfg.DirectoryBackend {
	case DirectoryJSON, DirectoryMemory:
	case DirectoryPostgres:
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required when DIRECTORY_BACKEND=%s", DirectoryPostgres)
		}
	default:
		return nil, fmt.Errorf("unsupported DIRECTORY_BACKEND %q", cfg.DirectoryBackend)
	}

	return cfg, nil
}

// loadS3 reads the S3 settings, all required except the key prefix.
func (c *AppConfig) loadS3() error {
	required := []struct {
		name string
		dst  *string
	}{
		{"S3_BUCKET_NAME", &c.S3BucketName},
		{"S3_ENDPOINT", &c.S3Endpoint},
		{"S3_ACCESS_KEY_ID", &c.S3AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", &c.S3SecretAccessKey},
	}

	for _, v := range required {
		*v.dst = os.Getenv(v.name)
		if *v.dst == "" {
			return fmt.Errorf("%s environment variable is required when BLOB_BACKEND=%s", v.name, BlobS3)
		}
	}

	c.S3Prefix = getEnv("S3_PREFIX", "uploads/")
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
