package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"lanshare/internal/app/user"
)

// fileRecord is one user in the JSON file. The field names match the
// users.json files written by earlier releases, so existing files still load.
type fileRecord struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	IPAddress  string `json:"ip_address"`
	DeviceInfo string `json:"device_info"`
	LastSeen   string `json:"last_seen"`
}

type fileDocument struct {
	Users []fileRecord `json:"users"`
}

// JSONRepository persists the directory as a single JSON document.
// Each Save writes a temporary file and renames it over the target, so a crash
// leaves either the old or the new document, never a partial one.
type JSONRepository struct {
	path string
}

// NewJSONRepository stores users at path.
func NewJSONRepository(path string) *JSONRepository {
	return &JSONRepository{path: path}
}

// Path returns the file location.
func (r *JSONRepository) Path() string {
	return r.path
}

// Load reads the file. A missing file is an empty directory.
func (r *JSONRepository) Load(_ context.Context) ([]user.User, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}

	users := make([]user.User, 0, len(doc.Users))
	for _, rec := range doc.Users {
		u := user.User{
			ID:         rec.UserID,
			Username:   rec.Username,
			Address:    rec.IPAddress,
			DeviceInfo: rec.DeviceInfo,
		}
		if t, err := time.ParseInLocation(user.TimeLayout, rec.LastSeen, time.Local); err == nil {
			u.LastSeen = t
		}
		users = append(users, u)
	}

	return users, nil
}

// Save overwrites the file with users.
func (r *JSONRepository) Save(_ context.Context, users []user.User) error {
	doc := fileDocument{Users: make([]fileRecord, 0, len(users))}
	for _, u := range users {
		p := u.Payload()
		doc.Users = append(doc.Users, fileRecord{
			UserID:     p.UserID,
			Username:   p.Username,
			IPAddress:  p.Address,
			DeviceInfo: p.DeviceInfo,
			LastSeen:   p.LastSeen,
		})
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", r.path, err)
	}

	return nil
}
