package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore keeps session artifacts in process memory, partitioned by
// Context.Scope. It suits interactive processes holding a single session.
type MemoryStore struct {
	// Clock can be used to override measurement of time in tests.
	Clock func() time.Time

	mu     sync.Mutex
	scopes map[string]map[string]memoryEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Clock:  time.Now,
		scopes: make(map[string]map[string]memoryEntry),
	}
}

// Expired values are dropped on read and omitted from the result.
func (s *MemoryStore) Read(_ context.Context, sc Context, keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make(map[string]string, len(keys))
	scope := s.scopes[sc.Scope]
	for _, key := range keys {
		e, ok := scope[key]
		if !ok {
			continue
		}
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(scope, key)
			continue
		}
		out[key] = e.value
	}
	return out, nil
}

// Write stores value under key for the context's namespace.
func (s *MemoryStore) Write(_ context.Context, sc Context, key, value string, opts WriteOptions) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	scope, ok := s.scopes[sc.Scope]
	if !ok {
		scope = make(map[string]memoryEntry)
		s.scopes[sc.Scope] = scope
	}
	e := memoryEntry{value: value}
	if opts.MaxAge > 0 {
		e.expiresAt = s.now().Add(opts.MaxAge)
	}
	scope[key] = e
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, sc Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	scope, ok := s.scopes[sc.Scope]
	if !ok {
		return nil
	}
	delete(scope, key)
	if len(scope) == 0 {
		delete(s.scopes, sc.Scope)
	}
	return nil
}

func (s *MemoryStore) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}
