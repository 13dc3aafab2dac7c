/*
Package storage holds the shared files offered to every device on the LAN.

BlobStore is a flat namespace of named files. Put never overwrites: a
name already in use gets a numeric suffix before its extension. Two backends
exist: a local directory and an S3-compatible bucket.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lanshare/internal/app/user"
)

var (
	// ErrNotFound is returned when the named file does not exist.
	ErrNotFound = errors.New("storage: file not found")

	// ErrInvalidName is returned for names that are empty or contain path elements.
	ErrInvalidName = errors.New("storage: invalid file name")
)

// maxSuffixAttempts bounds the de-duplication search in Put.
const maxSuffixAttempts = 10000

// FileInfo describes one shared file as listed to clients.
type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	ModTime  string `json:"mtime"`
	URL      string `json:"url"`

	modified time.Time
}

// BlobStore is the shared file collection.
type BlobStore interface {
	// List returns every file, most recently modified first.
	List(ctx context.Context) ([]FileInfo, error)

	// Put stores r under suggestedName, or a suffixed variant when taken,
	// and returns the name actually used.
	Put(ctx context.Context, r io.Reader, suggestedName string) (string, error)

	// Open returns the file content. The caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the file.
	Delete(ctx context.Context, name string) error
}

// DownloadURL is the path a browser uses to fetch name.
func DownloadURL(name string) string {
	return "/download/" + url.PathEscape(name)
}

// newFileInfo builds the listing entry for a stored file.
func newFileInfo(name string, size int64, modified time.Time) FileInfo {
	return FileInfo{
		Filename: name,
		Size:     size,
		ModTime:  modified.Local().Format(user.TimeLayout),
		URL:      DownloadURL(name),
		modified: modified,
	}
}

// sortNewestFirst orders files by modification time, newest first, then by name.
func sortNewestFirst(files []FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modified.Equal(files[j].modified) {
			return files[i].modified.After(files[j].modified)
		}
		return files[i].Filename < files[j].Filename
	})
}

// CleanName validates a client-supplied file name and strips any directory part
// a browser may have sent. It rejects names that resolve to nothing usable.
func CleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := strings.TrimSpace(filepath.Base(filepath.FromSlash(name)))

	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(base, "/\\\x00") {
		return "", ErrInvalidName
	}
	return base, nil
}

// checkName rejects names that are not already clean, so a lookup or delete
// cannot reach outside the store.
func checkName(name string) error {
	clean, err := CleanName(name)
	if err != nil {
		return err
	}
	if clean != name {
		return ErrInvalidName
	}
	return nil
}

// candidateName returns base for attempt 0 and "stem_<n>.ext" afterwards.
func candidateName(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	ext := filepath.Ext(base)
	if ext == base {
		// Dotfiles like ".bashrc" have no extension.
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_%d%s", stem, attempt, ext)
}
