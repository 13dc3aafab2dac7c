package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestS3StoreRoundTrip runs against a real bucket when TEST_S3_ENDPOINT is set,
// e.g. a local MinIO container.
func TestS3StoreRoundTrip(t *testing.T) {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set")
	}

	ctx := context.Background()
	s, err := NewS3Store(ctx, S3Config{
		Bucket:          os.Getenv("TEST_S3_BUCKET"),
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("TEST_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("TEST_S3_SECRET_ACCESS_KEY"),
		Prefix:          "lanshare-test/" + uuid.NewString() + "/",
	})
	require.NoError(t, err)

	first, err := s.Put(ctx, strings.NewReader("hello"), "a.txt")
	require.NoError(t, err)
	require.Equal(t, "a.txt", first)

	second, err := s.Put(ctx, strings.NewReader("again"), "a.txt")
	require.NoError(t, err)
	require.Equal(t, "a_1.txt", second)

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)

	rc, err := s.Open(ctx, first)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete(ctx, first))
	require.NoError(t, s.Delete(ctx, second))
	require.ErrorIs(t, s.Delete(ctx, first), ErrNotFound)
}
