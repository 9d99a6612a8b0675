package redis

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/wbdash/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommandObserver struct {
	mu          sync.Mutex
	commands    []string
	dialFailure int
}

func (o *recordingCommandObserver) ObserveRedisCommand(operation, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commands = append(o.commands, operation+":"+status)
}

func (o *recordingCommandObserver) RedisDialFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dialFailure++
}

func (o *recordingCommandObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.commands...)
}

func TestCommandStatus(t *testing.T) {
	assert.Equal(t, "success", commandStatus(nil))
	assert.Equal(t, "success", commandStatus(goredis.Nil))
	assert.Equal(t, "error", commandStatus(errors.New("READONLY")))
}

func TestMetricsHook_ProcessHook(t *testing.T) {
	obs := &recordingCommandObserver{}
	hook := NewMetricsHook(obs)

	process := hook.ProcessHook(func(_ context.Context, cmd goredis.Cmder) error {
		return goredis.Nil
	})

	cmd := goredis.NewStringCmd(context.Background(), "getex", "session_table:x")
	err := process(context.Background(), cmd)

	assert.ErrorIs(t, err, goredis.Nil)
	assert.Equal(t, []string{"getex:success"}, obs.snapshot())
}

func TestMetricsHook_DialFailure(t *testing.T) {
	obs := &recordingCommandObserver{}
	hook := NewMetricsHook(obs)

	dial := hook.DialHook(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	_, err := dial(context.Background(), "tcp", "127.0.0.1:1")

	require.Error(t, err)
	assert.Equal(t, 1, obs.dialFailure)
}

func TestMetricsHook_Integration(t *testing.T) {
	obs := &recordingCommandObserver{}
	ctx := context.Background()

	client := setupTestClient(t)
	client.AddHook(NewMetricsHook(obs))
	store := NewTableStore(client, time.Hour)

	_, err := store.Load(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.Contains(t, obs.snapshot(), "getex:success")
}
