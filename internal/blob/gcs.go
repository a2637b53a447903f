// Package blob provides the byte get/put interface to statement object
// storage, with a GCS implementation and an in-memory one for tests and
// local runs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/service"
)

// GCSStore reads and writes statement files in Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
}

var _ service.BlobStore = (*GCSStore)(nil)

// NewGCSStore creates a GCS-backed store using ambient credentials.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Get downloads one object in full.
func (s *GCSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s/%s: %w", bucket, key, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put uploads one object, replacing any existing content.
func (s *GCSStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
