package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"

	"github.com/pscheid92/wbdash/internal/domain"
)

// TableStore implements domain.TableStore on Redis. Each session's table is
// one JSON value (flat records plus fetch metadata); SET replaces it in a
// single command, so readers never observe a partial table. The key expires
// after maxIdle without reads or writes.
type TableStore struct {
	rdb     goredis.Cmdable
	maxIdle time.Duration
}

var _ domain.TableStore = (*TableStore)(nil)

func NewTableStore(rdb goredis.Cmdable, maxIdle time.Duration) *TableStore {
	return &TableStore{rdb: rdb, maxIdle: maxIdle}
}

func (s *TableStore) Load(ctx context.Context, sessionID string) (*domain.Table, error) {
	data, err := s.rdb.GetEx(ctx, tableKey(sessionID), s.maxIdle).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session table: %w", err)
	}

	var table domain.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to decode session table: %w", err)
	}
	return &table, nil
}

func (s *TableStore) Swap(ctx context.Context, sessionID string, table *domain.Table) error {
	encoded, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to encode session table: %w", err)
	}

	if err := s.rdb.Set(ctx, tableKey(sessionID), encoded, s.maxIdle).Err(); err != nil {
		return fmt.Errorf("failed to store session table: %w", err)
	}
	return nil
}

func (s *TableStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, tableKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session table: %w", err)
	}
	return nil
}

func tableKey(sessionID string) string {
	return "session_table:" + sessionID
}
