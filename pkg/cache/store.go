package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrCacheMiss indicates the requested fingerprint was not found in the store.
var ErrCacheMiss = errors.New("cache miss")

// Store holds completed fetch results keyed by query fingerprint.
// Implementations must support concurrent reads while a fetch is in flight
// and atomic writes when one completes.
type Store interface {
	// Get returns the cached entities for fingerprint, or ErrCacheMiss.
	Get(ctx context.Context, fingerprint string) ([]json.RawMessage, error)

	// Put stores entities under fingerprint, replacing any previous entry.
	Put(ctx context.Context, fingerprint string, entities []json.RawMessage) error
}

// MemoryStore is the default Store: a process-lifetime map owned by one
// client instance. Entries never expire and vanish on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]json.RawMessage),
	}
}

// Get returns the cached entities for fingerprint, or ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, fingerprint string) ([]json.RawMessage, error) {
	s.mu.RLock()
	entities, ok := s.entries[fingerprint]
	s.mu.RUnlock()

	if !ok {
		cacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	cacheHits.WithLabelValues("memory").Inc()
	return entities, nil
}

// Put stores entities under fingerprint, replacing any previous entry.
func (s *MemoryStore) Put(_ context.Context, fingerprint string, entities []json.RawMessage) error {
	s.mu.Lock()
	s.entries[fingerprint] = entities
	s.mu.Unlock()
	return nil
}

// Len returns the number of cached queries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
