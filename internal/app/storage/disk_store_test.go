package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return s
}

func TestDiskStorePutAndOpen(t *testing.T) {
	ctx := context.Background()
	s := newDiskStore(t)

	name, err := s.Put(ctx, strings.NewReader("hello"), "notes.txt")
	require.NoError(t, err)
	require.Equal(t, "notes.txt", name)

	rc, err := s.Open(ctx, name)
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestDiskStorePutDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := newDiskStore(t)

	for _, want := range []string{"photo.jpg", "photo_1.jpg", "photo_2.jpg"} {
		got, err := s.Put(ctx, strings.NewReader("x"), "photo.jpg")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDiskStoreConcurrentPutSameName(t *testing.T) {
	ctx := context.Background()
	s := newDiskStore(t)

	const n = 20
	names := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name, err := s.Put(ctx, strings.NewReader("x"), "same.bin")
			require.NoError(t, err)
			names[i] = name
		}()
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, name := range names {
		seen[name] = struct{}{}
	}
	require.Len(t, seen, n)
}

func TestDiskStorePutStripsDirectories(t *testing.T) {
	s := newDiskStore(t)

	name, err := s.Put(context.Background(), strings.NewReader("x"), "../../escape.txt")
	require.NoError(t, err)
	require.Equal(t, "escape.txt", name)

	_, err = os.Stat(filepath.Join(s.Root(), "escape.txt"))
	require.NoError(t, err)
}

func TestDiskStoreList(t *testing.T) {
	ctx := context.Background()
	s := newDiskStore(t)

	_, err := s.Put(ctx, strings.NewReader("aaa"), "old.txt")
	require.NoError(t, err)
	_, err = s.Put(ctx, strings.NewReader("bb"), "new.txt")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "subdir"), 0o755))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Root(), "old.txt"), past, past))

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)

	require.Equal(t, "new.txt", files[0].Filename)
	require.Equal(t, int64(2), files[0].Size)
	require.Equal(t, "/download/new.txt", files[0].URL)
	require.Equal(t, "old.txt", files[1].Filename)
	require.Equal(t, past.Format("2006-01-02 15:04:05"), files[1].ModTime)
}

func TestDiskStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newDiskStore(t)

	name, err := s.Put(ctx, strings.NewReader("x"), "gone.txt")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, name))
	require.ErrorIs(t, s.Delete(ctx, name), ErrNotFound)

	_, err = s.Open(ctx, name)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newDiskStore(t)

	outside := filepath.Join(filepath.Dir(s.Root()), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	_, err := s.Open(ctx, "../secret.txt")
	require.ErrorIs(t, err, ErrInvalidName)
	require.ErrorIs(t, s.Delete(ctx, "../secret.txt"), ErrInvalidName)

	_, err = os.Stat(outside)
	require.NoError(t, err)
}

func TestDiskStoreOpenDirectoryIsNotFound(t *testing.T) {
	s := newDiskStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "folder"), 0o755))

	_, err := s.Open(context.Background(), "folder")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiskStoreDeleteDirectoryIsNotFound(t *testing.T) {
	s := newDiskStore(t)
	dir := filepath.Join(s.Root(), "folder")
	require.NoError(t, os.Mkdir(dir, 0o755))

	err := s.Delete(context.Background(), "folder")
	require.ErrorIs(t, err, ErrNotFound)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestDiskStorePutDeduplicatesDotfile(t *testing.T) {
	s := newDiskStore(t)
	ctx := context.Background()

	first, err := s.Put(ctx, strings.NewReader("a"), ".bashrc")
	require.NoError(t, err)
	second, err := s.Put(ctx, strings.NewReader("b"), ".bashrc")
	require.NoError(t, err)

	require.Equal(t, ".bashrc", first)
	require.Equal(t, ".bashrc_1", second)
}
