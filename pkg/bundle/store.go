package bundle

import (
	"context"
	"sort"
	"sync"
)

// Store persists bundle metadata keyed by content hash. The bundle
// directories themselves live on disk; the store only tracks their
// state.
type Store interface {
	// Get returns the bundle for hash, if recorded.
	Get(ctx context.Context, hash string) (Bundle, bool, error)
	// Put inserts or replaces the bundle record.
	Put(ctx context.Context, b Bundle) error
	// Delete removes the record for hash. Deleting an absent hash is
	// not an error.
	Delete(ctx context.Context, hash string) error
	// List returns all records ordered by content hash.
	List(ctx context.Context) ([]Bundle, error)
}

// MemoryStore is an in-memory Store for tests and for running
// without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[string]Bundle)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, hash string) (Bundle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[hash]
	return b, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, b Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.ContentHash] = b
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, hash)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Bundle, 0, len(s.bundles))
	for _, b := range s.bundles {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentHash < out[j].ContentHash })
	return out, nil
}
