package persistence

import (
	"context"
	"sync"
)

// MemoryStore keeps the blob in process memory. It exists for tests and for
// callers that explicitly opt out of durable caching; nothing survives a
// restart.
type MemoryStore struct {
	mu   sync.RWMutex
	blob []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Persistence.
func (s *MemoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.blob == nil {
		return nil, nil
	}
	blob := make([]byte, len(s.blob))
	copy(blob, s.blob)
	return blob, nil
}

// Save implements Persistence.
func (s *MemoryStore) Save(_ context.Context, blob []byte) error {
	stored := make([]byte, len(blob))
	copy(stored, blob)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = stored
	return nil
}
