package core

import (
	"sync"
	"sync/atomic"
)

// Store holds the current Snapshot. Readers load it without locking; writers
// are serialized so every mutation applies to the latest snapshot.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewStore returns a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(emptySnapshot)
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Dispatch applies m to the latest snapshot and publishes the result.
func (s *Store) Dispatch(m Mutation) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Apply(s.current.Load(), m)
	s.current.Store(next)
	return next
}
