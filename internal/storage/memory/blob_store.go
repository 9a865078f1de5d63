// Package memory keeps archived snapshots in memory for tests and development.
package memory

import (
	"context"
	"sort"
	"sync"
)

// BlobStore stores snapshot documents in a map, keyed by object name.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory archive.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
	}
}

// Save stores a copy of the document.
func (s *BlobStore) Save(_ context.Context, objectName string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[objectName] = append([]byte(nil), data...)
	return nil
}

// Get returns the stored document and whether it exists.
func (s *BlobStore) Get(objectName string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[objectName]
	return data, ok
}

// ObjectNames lists stored object names in sorted order.
func (s *BlobStore) ObjectNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
