// Package memory holds session tables in process memory.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wbdash/internal/domain"
)

// EvictionObserver is told how many idle sessions a sweep removed.
type EvictionObserver interface {
	SessionsEvicted(n int)
}

type noopObserver struct{}

func (noopObserver) SessionsEvicted(int) {}

type entry struct {
	table      *domain.Table
	lastAccess time.Time
}

// TableStore implements domain.TableStore. Tables are immutable once stored,
// so Load hands out the shared pointer and Swap replaces it under the lock.
// Entries not accessed for maxIdle are dropped by the eviction sweep.
type TableStore struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	maxIdle  time.Duration
	clock    clockwork.Clock
	observer EvictionObserver
}

var _ domain.TableStore = (*TableStore)(nil)

func NewTableStore(maxIdle time.Duration, clock clockwork.Clock, observer EvictionObserver) *TableStore {
	if observer == nil {
		observer = noopObserver{}
	}
	return &TableStore{
		entries:  make(map[string]*entry),
		maxIdle:  maxIdle,
		clock:    clock,
		observer: observer,
	}
}

func (s *TableStore) Load(_ context.Context, sessionID string) (*domain.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok || s.expired(e) {
		return nil, domain.ErrSessionNotFound
	}
	e.lastAccess = s.clock.Now()
	return e.table, nil
}

func (s *TableStore) Swap(_ context.Context, sessionID string, table *domain.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sessionID] = &entry{table: table, lastAccess: s.clock.Now()}
	return nil
}

func (s *TableStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
	return nil
}

func (s *TableStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *TableStore) expired(e *entry) bool {
	return s.clock.Since(e.lastAccess) >= s.maxIdle
}

// EvictExpired removes idle sessions and returns how many were dropped.
func (s *TableStore) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.observer.SessionsEvicted(evicted)
	}
	return evicted
}

// StartEvictionTimer runs a periodic goroutine that evicts idle sessions.
// Returns a stop function that should be deferred.
func (s *TableStore) StartEvictionTimer(interval time.Duration) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-ticker.Chan():
				if evicted := s.EvictExpired(); evicted > 0 {
					slog.Debug("Evicted idle session tables", "count", evicted, "remaining", s.Len())
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
