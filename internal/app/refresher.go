package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/pscheid92/wbdash/internal/platform/correlation"
	"golang.org/x/sync/singleflight"
)

// Refresh triggers, used as log fields and metric labels.
const (
	TriggerTick    = "tick"
	TriggerManual  = "manual"
	TriggerInitial = "initial"
)

const DefaultRefreshInterval = 60 * time.Second

// TableFetcher produces a freshly fetched observation table.
type TableFetcher interface {
	Fetch(ctx context.Context) (*domain.Table, error)
}

// RefreshObserver records refresh outcomes.
type RefreshObserver interface {
	ObserveRefresh(trigger string, outcome domain.RefreshOutcome, duration time.Duration, rows int)
	SetTrackedSessions(n int)
}

// RefreshStatus is a snapshot of the refresher for the readiness probe.
type RefreshStatus struct {
	LastSuccess     *time.Time `json:"last_success,omitempty"`
	LastFailure     *time.Time `json:"last_failure,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	TrackedSessions int        `json:"tracked_sessions"`
}

type noopRefreshObserver struct{}

func (noopRefreshObserver) ObserveRefresh(string, domain.RefreshOutcome, time.Duration, int) {}
func (noopRefreshObserver) SetTrackedSessions(int)                                           {}

// Refresher keeps the observation table of every active session fresh.
//
// Each tick performs one upstream fetch and swaps the result into all tracked
// sessions. A tick that fires while the previous one is still running is
// dropped, and so is a session refresh while one for the same session is in
// flight. Concurrent fetches share one upstream call. A failed fetch leaves
// every stored table untouched. Sessions not seen for maxIdle are forgotten
// and their table deleted.
type Refresher struct {
	fetcher  TableFetcher
	store    domain.TableStore
	clock    clockwork.Clock
	interval time.Duration
	maxIdle  time.Duration
	observer RefreshObserver

	fetchGroup singleflight.Group
	ticking    atomic.Bool
	wg         sync.WaitGroup

	mu          sync.Mutex
	sessions    map[string]time.Time
	inFlight    map[string]struct{}
	storedAt    map[string]time.Time
	lastSuccess time.Time
	lastFailure time.Time
	lastErr     error
}

type RefresherOption func(*Refresher)

// WithRefreshObserver reports refresh outcomes, e.g. to Prometheus.
func WithRefreshObserver(o RefreshObserver) RefresherOption {
	return func(r *Refresher) { r.observer = o }
}

func NewRefresher(fetcher TableFetcher, store domain.TableStore, clock clockwork.Clock, interval, maxIdle time.Duration, opts ...RefresherOption) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	r := &Refresher{
		fetcher:  fetcher,
		store:    store,
		clock:    clock,
		interval: interval,
		maxIdle:  maxIdle,
		observer: noopRefreshObserver{},
		sessions: make(map[string]time.Time),
		inFlight: make(map[string]struct{}),
		storedAt: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Track registers a session for periodic refresh and marks it as seen.
func (r *Refresher) Track(sessionID string) {
	r.mu.Lock()
	r.sessions[sessionID] = r.clock.Now()
	n := len(r.sessions)
	r.mu.Unlock()

	r.observer.SetTrackedSessions(n)
}

// Status reports the outcome of the most recent fetches and the number of
// tracked sessions.
func (r *Refresher) Status() RefreshStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := RefreshStatus{TrackedSessions: len(r.sessions)}
	if !r.lastSuccess.IsZero() {
		t := r.lastSuccess
		status.LastSuccess = &t
	}
	if !r.lastFailure.IsZero() {
		t := r.lastFailure
		status.LastFailure = &t
		status.LastError = r.lastErr.Error()
	}
	return status
}

// Forget stops refreshing the session and deletes its table.
func (r *Refresher) Forget(ctx context.Context, sessionID string) error {
	r.untrack(sessionID)
	return r.store.Delete(ctx, sessionID)
}

// Run starts the periodic refresh loop. It blocks until ctx is cancelled and
// any tick still running has finished.
func (r *Refresher) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !r.ticking.CompareAndSwap(false, true) {
				slog.DebugContext(ctx, "Refresher: previous tick still running, dropping tick")
				r.observer.ObserveRefresh(TriggerTick, domain.RefreshOutcomeSkipped, 0, 0)
				continue
			}

			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				defer r.ticking.Store(false)
				r.tick(correlation.WithID(ctx, correlation.NewID()))
			}()
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	ids := r.activeSessions(ctx)
	if len(ids) == 0 {
		return
	}

	start := r.clock.Now()
	table, err := r.fetch(ctx)
	elapsed := r.clock.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "Refresher: fetch failed, keeping previous tables", "trigger", TriggerTick, "sessions", len(ids), "error", err)
		r.observer.ObserveRefresh(TriggerTick, domain.RefreshOutcomeFailed, elapsed, 0)
		return
	}

	for _, id := range ids {
		if !r.shouldReplace(id, table) {
			continue
		}
		if err := r.swap(ctx, id, table); err != nil {
			slog.ErrorContext(ctx, "Refresher: failed to store table", "session_id", id, "error", err)
		}
	}

	slog.DebugContext(ctx, "Refresher: refreshed sessions", "sessions", len(ids), "rows", table.Len(), "duration", elapsed)
	r.observer.ObserveRefresh(TriggerTick, domain.RefreshOutcomeRefreshed, elapsed, table.Len())
}

// RefreshSession fetches and stores a fresh table for one session. It returns
// RefreshOutcomeSkipped without fetching when a refresh for the same session
// is already in flight. On failure the stored table is left untouched.
func (r *Refresher) RefreshSession(ctx context.Context, sessionID, trigger string) (domain.RefreshOutcome, error) {
	r.Track(sessionID)

	r.mu.Lock()
	if _, busy := r.inFlight[sessionID]; busy {
		r.mu.Unlock()
		slog.DebugContext(ctx, "Refresher: refresh already in flight", "session_id", sessionID, "trigger", trigger)
		r.observer.ObserveRefresh(trigger, domain.RefreshOutcomeSkipped, 0, 0)
		return domain.RefreshOutcomeSkipped, nil
	}
	r.inFlight[sessionID] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, sessionID)
		r.mu.Unlock()
	}()

	start := r.clock.Now()
	table, err := r.fetch(ctx)
	elapsed := r.clock.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "Refresher: fetch failed, keeping previous table", "session_id", sessionID, "trigger", trigger, "error", err)
		r.observer.ObserveRefresh(trigger, domain.RefreshOutcomeFailed, elapsed, 0)
		return domain.RefreshOutcomeFailed, err
	}

	if err := r.swap(ctx, sessionID, table); err != nil {
		slog.ErrorContext(ctx, "Refresher: failed to store table", "session_id", sessionID, "trigger", trigger, "error", err)
		r.observer.ObserveRefresh(trigger, domain.RefreshOutcomeFailed, elapsed, 0)
		return domain.RefreshOutcomeFailed, err
	}

	r.observer.ObserveRefresh(trigger, domain.RefreshOutcomeRefreshed, elapsed, table.Len())
	return domain.RefreshOutcomeRefreshed, nil
}

// shouldReplace skips sessions with their own refresh in flight and sessions
// already holding a table fetched after this one.
func (r *Refresher) shouldReplace(sessionID string, table *domain.Table) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[sessionID]; busy {
		return false
	}
	return !r.storedAt[sessionID].After(table.FetchedAt)
}

// swap stores the table and remembers its fetch time for shouldReplace.
func (r *Refresher) swap(ctx context.Context, sessionID string, table *domain.Table) error {
	if err := r.store.Swap(ctx, sessionID, table); err != nil {
		return err
	}
	r.mu.Lock()
	if _, tracked := r.sessions[sessionID]; tracked {
		r.storedAt[sessionID] = table.FetchedAt
	}
	r.mu.Unlock()
	return nil
}

// fetch shares one upstream call between concurrent callers. The call is
// detached from the leader's cancellation so a disconnecting browser cannot
// fail the fetch for everyone else; the fetcher applies its own timeout.
func (r *Refresher) fetch(ctx context.Context) (*domain.Table, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.fetchGroup.Do("observations", func() (any, error) {
		return r.fetcher.Fetch(shared)
	})

	now := r.clock.Now()
	r.mu.Lock()
	if err != nil {
		r.lastFailure = now
		r.lastErr = err
	} else {
		r.lastSuccess = now
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return v.(*domain.Table), nil
}

// activeSessions returns the tracked session IDs, forgetting idle ones first.
func (r *Refresher) activeSessions(ctx context.Context) []string {
	now := r.clock.Now()

	r.mu.Lock()
	var active, idle []string
	for id, lastSeen := range r.sessions {
		if r.maxIdle > 0 && now.Sub(lastSeen) >= r.maxIdle {
			idle = append(idle, id)
			delete(r.sessions, id)
			delete(r.storedAt, id)
			continue
		}
		active = append(active, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if len(idle) > 0 {
		r.observer.SetTrackedSessions(n)
	}
	for _, id := range idle {
		if err := r.store.Delete(ctx, id); err != nil {
			slog.WarnContext(ctx, "Refresher: failed to delete idle session table", "session_id", id, "error", err)
			continue
		}
		slog.DebugContext(ctx, "Refresher: session expired", "session_id", id)
	}

	return active
}

func (r *Refresher) untrack(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	delete(r.storedAt, sessionID)
	n := len(r.sessions)
	r.mu.Unlock()

	r.observer.SetTrackedSessions(n)
}
