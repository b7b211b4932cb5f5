package store

import (
	"context"
	"sync"
)

// Compile-time check that MemoryStore implements UserStore.
var _ UserStore = (*MemoryStore)(nil)

// MemoryStore keeps containers for the lifetime of the process. It backs
// tests and development setups where persistence across restarts is not
// needed.
//
// Containers are stored in their encoded form so the memory backend
// exercises the same codec path (including decode-failure-as-miss) as the
// network backends.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Load returns the container for key, or (nil, nil) when absent or
// undecodable.
func (s *MemoryStore) Load(_ context.Context, key string) (*Container, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return decodeContainer(raw), nil
}

// Save stores the container under key, overwriting any previous value.
func (s *MemoryStore) Save(_ context.Context, key string, c *Container) error {
	raw, err := encodeContainer(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

// Delete removes the container for key. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Close releases the store's data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

// put injects raw bytes for a key. Tests use it to simulate corrupted
// persisted data.
func (s *MemoryStore) put(key string, raw []byte) {
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
}
