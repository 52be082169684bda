package memstore

import (
	"context"
	"sync"
	"time"

	"review_analysis/internal/adapters/observability"
	"review_analysis/internal/domain"
)

const storeName = "memory"

type entry struct {
	set     domain.ReviewSet
	expires time.Time
}

// Store keeps review sets in process memory. Values are cloned on the way in and out.
type Store struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

func New(ttl time.Duration) *Store {
	return &Store{m: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (s *Store) Get(ctx context.Context, id string) (domain.ReviewSet, bool, error) {
	s.mu.RLock()
	e, ok := s.m[id]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		observability.ObserveSession(storeName, "miss")
		return domain.ReviewSet{}, false, nil
	}
	observability.ObserveSession(storeName, "hit")
	return e.set.Clone(), true, nil
}

func (s *Store) Put(ctx context.Context, id string, set domain.ReviewSet) error {
	e := entry{set: set.Clone()}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.m[id] = e
	s.mu.Unlock()
	observability.ObserveSession(storeName, "set")
	return nil
}

// Sweep drops expired sessions and reports how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.m {
		if s.expired(e) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(e entry) bool {
	return !e.expires.IsZero() && s.now().After(e.expires)
}
