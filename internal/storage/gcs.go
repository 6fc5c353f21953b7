package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStore implements ObjectStore on Google Cloud Storage. Authentication is
// handled via Application Default Credentials.
type GCSStore struct {
	client    *storage.Client
	bucket    string
	projectID string
	logger    *zap.Logger
}

// NewGCSStore initializes a GCS client for the given bucket.
func NewGCSStore(ctx context.Context, bucket, projectID string, logger *zap.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage.bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, projectID: projectID, logger: logger}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *GCSStore) EnsureBucket(ctx context.Context) error {
	bkt := s.client.Bucket(s.bucket)
	_, err := bkt.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("get bucket %q attributes: %w", s.bucket, err)
	}
	if err := bkt.Create(ctx, s.projectID, nil); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	s.logger.Info("created storage bucket", zap.String("bucket", s.bucket))
	return nil
}

// Upload streams the local file into the object, sets a content type derived
// from the key's extension, marks the object public-read and returns the
// deterministic public URL.
func (s *GCSStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	obj := s.client.Bucket(s.bucket).Object(key)
	wc := obj.NewWriter(ctx)
	wc.ContentType = ContentTypeFor(key)

	if _, err := io.Copy(wc, f); err != nil {
		if cerr := wc.Close(); cerr != nil {
			s.logger.Warn("failed to close gcs writer after write failure", zap.Error(cerr))
		}
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer for %s: %w", key, err)
	}

	if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", fmt.Errorf("make object %s public: %w", key, err)
	}

	return s.PublicURL(key), nil
}

// PublicURL returns the stable public address for a stored key.
func (s *GCSStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
