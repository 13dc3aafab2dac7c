package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"lanshare/internal/pkg/logx"
)

// DiskStore keeps shared files in a single local directory.
type DiskStore struct {
	root   string
	logger zerolog.Logger
}

// NewDiskStore uses dir as the store root, creating it when missing.
func NewDiskStore(dir string) (*DiskStore, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %s: %w", dir, err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}

	return &DiskStore{
		root:   root,
		logger: logx.Component("disk_store").With().Str("root", root).Logger(),
	}, nil
}

// Root returns the absolute store directory.
func (s *DiskStore) Root() string {
	return s.root
}

// List returns the regular files in the root, newest first.
func (s *DiskStore) List(_ context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, newFileInfo(e.Name(), info.Size(), info.ModTime()))
	}

	sortNewestFirst(files)
	return files, nil
}

// Put writes r to a fresh file. The name is claimed with O_EXCL, so
// concurrent uploads of the same name each get their own suffix.
func (s *DiskStore) Put(_ context.Context, r io.Reader, suggestedName string) (string, error) {
	base, err := CleanName(suggestedName)
	if err != nil {
		return "", err
	}

	var (
		f    *os.File
		name string
	)
	for attempt := 0; attempt < maxSuffixAttempts; attempt++ {
		name = candidateName(base, attempt)
		f, err = os.OpenFile(filepath.Join(s.root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create %s: %w", name, err)
		}
	}
	if f == nil {
		return "", fmt.Errorf("no free name for %s after %d attempts", base, maxSuffixAttempts)
	}

	path := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	s.logger.Info().Str("filename", name).Msg("File saved.")
	return name, nil
}

// Open opens a stored file for reading.
func (s *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, ErrNotFound
	}

	return f, nil
}

// Delete removes a stored file.
func (s *DiskStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	path := filepath.Join(s.root, name)
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return ErrNotFound
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}

	s.logger.Info().Str("filename", name).Msg("File deleted.")
	return nil
}
