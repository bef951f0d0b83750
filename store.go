package scale

import (
	"sync"
	"time"
)

// Store holds the most recently completed Reading. Its lock is independent
// of the ring buffer, so readers never wait on serial traffic.
type Store struct {
	mu        sync.RWMutex
	latest    Reading
	updatedAt time.Time
	count     uint64
}

// Snapshot is a consistent view of a Store.
type Snapshot struct {
	Reading   Reading
	UpdatedAt time.Time // zero until the first publish
	Count     uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Publish replaces the stored reading with a copy of r.
func (s *Store) Publish(r Reading) {
	r = r.Clone()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
	s.updatedAt = now
	s.count++
}

// Latest returns a copy of the stored reading, or the empty reading if
// nothing was published yet.
func (s *Store) Latest() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest.Clone()
}

// Snapshot returns the stored reading together with its publication data.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Reading:   s.latest.Clone(),
		UpdatedAt: s.updatedAt,
		Count:     s.count,
	}
}
