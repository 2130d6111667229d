package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Presence Store: a per-room Redis hash
// mapping user id → last-seen unix-nano, shared across every gateway
// instance (spec §4.B).
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func presenceKey(room string) string {
	return "presence:" + room
}

func (s *RedisStore) Add(ctx context.Context, room, user string) error {
	return s.client.HSet(ctx, presenceKey(room), user, time.Now().UnixNano()).Err()
}

func (s *RedisStore) Remove(ctx context.Context, room, user string) error {
	return s.client.HDel(ctx, presenceKey(room), user).Err()
}

func (s *RedisStore) Touch(ctx context.Context, room, user string, at time.Time) error {
	return s.client.HSet(ctx, presenceKey(room), user, at.UnixNano()).Err()
}

func (s *RedisStore) Snapshot(ctx context.Context, room string) (Snapshot, error) {
	raw, err := s.client.HGetAll(ctx, presenceKey(room)).Result()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Users:    make([]string, 0, len(raw)),
		LastSeen: make(map[string]time.Time, len(raw)),
	}
	for user, nanosStr := range raw {
		nanos, parseErr := strconv.ParseInt(nanosStr, 10, 64)
		if parseErr != nil {
			continue
		}
		snap.Users = append(snap.Users, user)
		snap.LastSeen[user] = time.Unix(0, nanos)
	}
	return snap, nil
}
