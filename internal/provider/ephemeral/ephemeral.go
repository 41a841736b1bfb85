// Package ephemeral provides an in-process, map-backed memory
// provider. Entries live until deleted, expired, or the process exits.
// It backs the short-term kind by default and doubles as the provider
// of choice in tests.
package ephemeral

import (
	"context"
	"sync"
	"time"

	"github.com/noema-platform/noema/internal/memory"
)

// Store is an ephemeral map-backed provider with TTL support. Expired
// entries are invisible to Query immediately and reclaimed by Sweep;
// the sweep timer belongs to the caller.
type Store struct {
	mu      sync.RWMutex
	entries map[string]memory.Entry
	kinds   map[memory.Kind]bool
	name    string
}

// New creates an ephemeral store supporting the given kinds.
// With no kinds it defaults to short-term.
func New(kinds ...memory.Kind) *Store {
	if len(kinds) == 0 {
		kinds = []memory.Kind{memory.KindShortTerm}
	}
	supported := make(map[memory.Kind]bool, len(kinds))
	for _, k := range kinds {
		supported[k] = true
	}
	return &Store{
		entries: make(map[string]memory.Entry),
		kinds:   supported,
		name:    "ephemeral",
	}
}

func (s *Store) Name() string { return s.name }

func (s *Store) SupportsKind(k memory.Kind) bool { return s.kinds[k] }

func (s *Store) Store(_ context.Context, e *memory.Entry) error {
	if !s.kinds[e.Kind] {
		return &memory.ValidationError{Reason: "kind " + string(e.Kind) + " not supported by ephemeral store"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = *e
	return nil
}

func (s *Store) Query(_ context.Context, q memory.Query) ([]memory.Entry, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []memory.Entry
	for _, e := range s.entries {
		if e.Expired(now) {
			continue
		}
		if q.Matches(&e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Sweep reclaims expired entries. Provider-local maintenance; invoked
// through the manager's Consolidate.
func (s *Store) Sweep(_ context.Context) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, id)
		}
	}
	return nil
}

// Len returns the number of live entries, expired included until swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
