/*
Package main is the entry point for the LAN Share server.

It loads configuration, initializes the global logging system, restores the
user directory, opens the blob store, wires the presence registry, broadcast
hub and session gateway into the HTTP router, prints the address other devices
should open, and shuts down gracefully on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lanshare/internal/app/db"
	"lanshare/internal/app/directory"
	"lanshare/internal/app/hub"
	"lanshare/internal/app/presence"
	"lanshare/internal/app/session"
	"lanshare/internal/app/storage"
	"lanshare/internal/configs"
	"lanshare/internal/handler"
	"lanshare/internal/pkg/logx"
	"lanshare/internal/pkg/netx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	closeLog, err := logx.InitGlobalLogger(logx.Options{
		Development: cfg.IsDevelopment(),
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr()).
		Str("directory_backend", cfg.DirectoryBackend).
		Str("blob_backend", cfg.BlobBackend).
		Str("log_file", cfg.LogFile).
		Int("max_upload_mb", cfg.MaxUploadMB).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := newRepository(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open user directory storage")
	}
	defer closeRepo()

	users := directory.New(repo)
	if err := users.Load(ctx); err != nil {
		logx.Fatal(err, "Failed to load user directory")
	}
	logx.Info("User directory loaded", "users", users.Len())

	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open blob store")
	}

	registry := presence.NewRegistry(users)
	broadcastHub := hub.New()
	gateway := session.NewGateway(users, registry, broadcastHub, store)

	router := handler.Router(ctx, &handler.AppDeps{
		Config:    cfg,
		Gateway:   gateway,
		Hub:       broadcastHub,
		Directory: users,
		Store:     store,
	})

	// Uploads and downloads of large files may take minutes on a slow LAN,
	// so only the header read is bounded.
	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		shareURL := netx.ShareURL(netx.LocalIP(), cfg.Port)
		logx.Info("LAN Share server starting", "addr", cfg.ListenAddr(), "share_url", shareURL)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	broadcastHub.Shutdown()

	logx.Info("Server gracefully stopped.")
}

// newRepository opens the configured user directory backend. The returned
// func releases it.
func newRepository(ctx context.Context, cfg *configs.AppConfig) (directory.Repository, func(), error) {
	switch cfg.DirectoryBackend {
	case configs.DirectoryPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return directory.NewPostgresRepository(pool), pool.Close, nil

	case configs.DirectoryMemory:
		logx.Warn("Using in-memory user directory; users are forgotten on restart.")
		return directory.NewMemoryRepository(), func() {}, nil

	default:
		logx.Info("Using JSON user directory", "path", cfg.UsersFile)
		return directory.NewJSONRepository(cfg.UsersFile), func() {}, nil
	}
}

func newBlobStore(ctx context.Context, cfg *configs.AppConfig) (storage.BlobStore, error) {
	if cfg.BlobBackend == configs.BlobS3 {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Prefix:          cfg.S3Prefix,
		})
	}

	disk, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	logx.Info("Using local upload directory", "path", disk.Root())
	return disk, nil
}
