// Package dedupe guards against reprocessing the same message when several
// pipeline instances consume one feed. The guard is advisory and fails open:
// with Redis unreachable, processing proceeds and reconciliation's immutable
// fields keep duplicates from corrupting rows.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Guard marks message ids as seen in Redis with a TTL. A nil Guard is valid
// and reports everything as first-seen.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

// New builds a Guard, or nil when addr is empty.
func New(addr, password string, db int, ttl time.Duration) *Guard {
	if addr == "" {
		return nil
	}
	return &Guard{
		rdb: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl: ttl,
	}
}

// FirstSeen marks the message id and reports whether this is its first
// sighting inside the TTL window. Errors count as first sightings.
func (g *Guard) FirstSeen(ctx context.Context, id int64) bool {
	if g == nil {
		return true
	}
	ok, err := g.rdb.SetNX(ctx, key(id), 1, g.ttl).Result()
	if err != nil {
		zap.L().Warn("dedupe check failed, processing anyway",
			zap.Int64("message_id", id),
			zap.Error(err))
		return true
	}
	return ok
}

// Forget clears the mark so a failed message can be retried.
func (g *Guard) Forget(ctx context.Context, id int64) {
	if g == nil {
		return
	}
	if err := g.rdb.Del(ctx, key(id)).Err(); err != nil {
		zap.L().Warn("dedupe forget failed",
			zap.Int64("message_id", id),
			zap.Error(err))
	}
}

func (g *Guard) Close() error {
	if g == nil {
		return nil
	}
	return g.rdb.Close()
}

func key(id int64) string {
	return fmt.Sprintf("ordersync:msg:%d", id)
}
