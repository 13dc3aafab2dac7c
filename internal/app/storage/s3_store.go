package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"lanshare/internal/pkg/logx"
)

// sniffLen is how much of an upload is buffered to detect its content type.
const sniffLen = 3072

// S3Config holds the connection settings for an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	// Prefix is prepended to every object key, e.g. "uploads/".
	Prefix string
}

// S3Store keeps shared files as objects under a key prefix.
type S3Store struct {
	cfg      S3Config
	client   *s3.Client
	uploader *manager.Uploader

	// mu guards pending, the names claimed by uploads still in flight.
	mu      sync.Mutex
	pending map[string]struct{}

	logger zerolog.Logger
}

// NewS3Store builds a client for a path-style S3-compatible endpoint (MinIO, R2 and similar).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load S3 SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		cfg:      cfg,
		client:   client,
		uploader: manager.NewUploader(client),
		pending:  make(map[string]struct{}),
		logger: logx.Component("s3_store").With().
			Str("bucket", cfg.Bucket).
			Str("prefix", cfg.Prefix).
			Logger(),
	}, nil
}

func (s *S3Store) key(name string) string {
	return s.cfg.Prefix + name
}

// List returns the objects directly under the prefix, newest first.
func (s *S3Store) List(ctx context.Context) ([]FileInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})

	var files []FileInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.cfg.Prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			files = append(files, newFileInfo(name, aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified)))
		}
	}

	sortNewestFirst(files)
	return files, nil
}

// Put uploads r under a free name. Names are reserved in memory while the
// upload runs, so two concurrent uploads never pick the same key.
func (s *S3Store) Put(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	base, err := CleanName(suggestedName)
	if err != nil {
		return "", err
	}

	name, err := s.reserve(ctx, base)
	if err != nil {
		return "", err
	}
	defer s.release(name)

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.key(name)),
		Body:        io.MultiReader(bytes.NewReader(head), r),
		ContentType: aws.String(mimetype.Detect(head).String()),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	s.logger.Info().Str("filename", name).Msg("File uploaded.")
	return name, nil
}

func (s *S3Store) reserve(ctx context.Context, base string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxSuffixAttempts; attempt++ {
		name := candidateName(base, attempt)
		if _, busy := s.pending[name]; busy {
			continue
		}

		exists, err := s.exists(ctx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			s.pending[name] = struct{}{}
			return name, nil
		}
	}

	return "", fmt.Errorf("no free name for %s after %d attempts", base, maxSuffixAttempts)
}

func (s *S3Store) release(name string) {
	s.mu.Lock()
	delete(s.pending, name)
	s.mu.Unlock()
}

func (s *S3Store) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return true, nil
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", name, err)
}

// Open streams an object body.
func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}

	return out.Body, nil
}

// Delete removes an object. S3 deletes are idempotent, so existence is checked first
// to report ErrNotFound like the disk store does.
func (s *S3Store) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	exists, err := s.exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	s.logger.Info().Str("filename", name).Msg("File deleted.")
	return nil
}
