package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGate implements Gate as a fixed-window counter per (scope, user,
// window-bucket), using INCR+EXPIRE so the ceiling check and increment
// happen atomically in a single round trip via a pipeline transaction.
type RedisGate struct {
	client   redis.UniversalClient
	ceilings map[Scope]Ceiling
}

func NewRedisGate(client redis.UniversalClient, ceilings map[Scope]Ceiling) *RedisGate {
	if ceilings == nil {
		ceilings = DefaultCeilings
	}
	return &RedisGate{client: client, ceilings: ceilings}
}

func (g *RedisGate) bucketKey(scope Scope, user string, window int64) string {
	bucket := time.Now().Unix() / window
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, user, bucket)
}

func (g *RedisGate) Allow(ctx context.Context, scope Scope, user string) (bool, error) {
	ceiling, ok := g.ceilings[scope]
	if !ok {
		return false, fmt.Errorf("ratelimit: unknown scope %q", scope)
	}

	key := g.bucketKey(scope, user, ceiling.Window)

	var incr *redis.IntCmd
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Duration(ceiling.Window)*time.Second)
		return nil
	})
	if err != nil {
		return false, err
	}

	count := incr.Val()
	if count > ceiling.Limit {
		// Over ceiling: undo the increment so a rejected call never
		// consumes quota, then report denial.
		g.client.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}

func (g *RedisGate) Remaining(ctx context.Context, scope Scope, user string) (int64, error) {
	ceiling, ok := g.ceilings[scope]
	if !ok {
		return 0, fmt.Errorf("ratelimit: unknown scope %q", scope)
	}

	key := g.bucketKey(scope, user, ceiling.Window)
	count, err := g.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return ceiling.Limit, nil
		}
		return 0, err
	}

	remaining := ceiling.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
