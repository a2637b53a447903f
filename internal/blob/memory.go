package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/service"
)

// MemoryStore is a map-backed store for tests and single-process local runs.
type MemoryStore struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

var _ service.BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Get returns a copy of the stored object.
func (s *MemoryStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, common.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores a copy of the object, replacing any existing content.
func (s *MemoryStore) Put(_ context.Context, bucket, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[objectKey(bucket, key)] = stored
	return nil
}
