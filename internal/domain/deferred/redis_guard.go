package deferred

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisGuardKey is the single shared key instances race to set/check;
// unlike ratelimit.RedisGate there is no per-scope/per-user dimension,
// the guard flag is fleet-wide.
const redisGuardKey = "deferred:guard:runtime_unavailable"

// RedisGuardFlag implements GuardFlagStore on a SET-with-TTL key,
// mirroring ratelimit.RedisGate's client field and constructor shape.
type RedisGuardFlag struct {
	client redis.UniversalClient
}

func NewRedisGuardFlag(client redis.UniversalClient) *RedisGuardFlag {
	return &RedisGuardFlag{client: client}
}

func (g *RedisGuardFlag) Set(ctx context.Context, ttl time.Duration) error {
	return g.client.Set(ctx, redisGuardKey, "1", ttl).Err()
}

func (g *RedisGuardFlag) IsSet(ctx context.Context) (bool, error) {
	n, err := g.client.Exists(ctx, redisGuardKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
