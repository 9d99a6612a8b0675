package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingObserver struct {
	mu      sync.Mutex
	evicted int
}

func (o *countingObserver) SessionsEvicted(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evicted += n
}

func (o *countingObserver) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.evicted
}

func testTable(rows int) *domain.Table {
	t := &domain.Table{Indicators: []string{"x"}}
	for i := range rows {
		t.Rows = append(t.Rows, domain.Observation{ISO3Code: "USA", Year: 2005 + i})
	}
	return t
}

func TestTableStore_LoadMissing(t *testing.T) {
	store := NewTableStore(time.Hour, clockwork.NewFakeClock(), nil)

	_, err := store.Load(context.Background(), "nope")

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestTableStore_SwapReplacesWholesale(t *testing.T) {
	store := NewTableStore(time.Hour, clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	first, second := testTable(2), testTable(5)
	require.NoError(t, store.Swap(ctx, "s1", first))
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, first, loaded)

	require.NoError(t, store.Swap(ctx, "s1", second))
	loaded, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Same(t, second, loaded)
	assert.Equal(t, 2, first.Len(), "previous table must not be mutated")
}

func TestTableStore_SessionsAreIsolated(t *testing.T) {
	store := NewTableStore(time.Hour, clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	require.NoError(t, store.Swap(ctx, "a", testTable(1)))
	require.NoError(t, store.Swap(ctx, "b", testTable(3)))
	require.NoError(t, store.Delete(ctx, "a"))

	_, err := store.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	b, err := store.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())
}

func TestTableStore_IdleExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	observer := &countingObserver{}
	store := NewTableStore(10*time.Minute, clock, observer)
	ctx := context.Background()

	require.NoError(t, store.Swap(ctx, "idle", testTable(1)))
	require.NoError(t, store.Swap(ctx, "active", testTable(1)))

	clock.Advance(6 * time.Minute)
	_, err := store.Load(ctx, "active")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	_, err = store.Load(ctx, "idle")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.Equal(t, 1, store.EvictExpired())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, observer.total())
}

func TestTableStore_StartEvictionTimer(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := clockwork.NewFakeClock()
	observer := &countingObserver{}
	store := NewTableStore(time.Minute, clock, observer)
	require.NoError(t, store.Swap(context.Background(), "s1", testTable(1)))

	stop := store.StartEvictionTimer(30 * time.Second)
	defer stop()

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(90 * time.Second)

	assert.Eventually(t, func() bool { return observer.total() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, store.Len())
}

func TestTableStore_ConcurrentReadersSeeWholeTables(t *testing.T) {
	store := NewTableStore(time.Hour, clockwork.NewFakeClock(), nil)
	ctx := context.Background()
	require.NoError(t, store.Swap(ctx, "s1", testTable(1)))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Swap(ctx, "s1", testTable(i+1))
		}()
		go func() {
			defer wg.Done()
			table, err := store.Load(ctx, "s1")
			if assert.NoError(t, err) {
				assert.Equal(t, table.Len(), len(table.Rows))
				assert.Positive(t, table.Len())
			}
		}()
	}
	wg.Wait()
}
