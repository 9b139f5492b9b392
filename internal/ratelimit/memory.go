package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count    int
	start    time.Time
	lastSeen time.Time
}

// MemoryStore is a process-local Store.
//
// Windows live in a mutex-guarded map; idle entries are evicted
// opportunistically every few thousand calls so memory stays bounded.
// Counters are not shared across replicas.
type MemoryStore struct {
	mu       sync.Mutex
	windows  map[string]*window
	ttl      time.Duration
	cleanupN uint64
}

// NewMemoryStore returns an empty MemoryStore that evicts windows idle for ttl.
// A ttl <= 0 defaults to ten minutes.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryStore{
		windows: make(map[string]*window),
		ttl:     ttl,
	}
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, win time.Duration, now time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// GC before touching key so a stale entry for key is dropped too.
	s.cleanupN++
	if s.cleanupN >= 5000 {
		for k, w := range s.windows {
			if now.Sub(w.lastSeen) >= s.ttl && expired(w.start, win, now) {
				delete(s.windows, k)
			}
		}
		s.cleanupN = 0
	}

	w, ok := s.windows[key]
	if !ok || expired(w.start, win, now) {
		w = &window{count: 0, start: now}
		s.windows[key] = w
	}
	w.count++
	w.lastSeen = now
	return w.count, w.start, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
