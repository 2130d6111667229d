package moderation

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// drainScript atomically reads and clears a list, so two concurrent
// drainers can never both observe a non-empty result (spec §4.D's
// "rename list or compare-and-swap length" requirement).
const drainScript = `
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
if #ids == 0 then
	return {}
end
redis.call('DEL', KEYS[1])
return ids
`

// RedisBuffer is the production Moderation Buffer: one Redis list per
// room, drained via a Lua script for atomicity across gateway instances.
type RedisBuffer struct {
	client redis.UniversalClient
}

func NewRedisBuffer(client redis.UniversalClient) *RedisBuffer {
	return &RedisBuffer{client: client}
}

func bufferKey(roomID string) string {
	return "moderation:pending:" + roomID
}

func (b *RedisBuffer) Append(ctx context.Context, roomID, messageID string) (int, error) {
	length, err := b.client.RPush(ctx, bufferKey(roomID), messageID).Result()
	if err != nil {
		return 0, err
	}
	return int(length), nil
}

func (b *RedisBuffer) Drain(ctx context.Context, roomID string) ([]string, bool, error) {
	res, err := b.client.Eval(ctx, drainScript, []string{bufferKey(roomID)}).Result()
	if err != nil {
		return nil, false, err
	}

	raw, ok := res.([]interface{})
	if !ok || len(raw) == 0 {
		return nil, false, nil
	}

	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		ids = append(ids, s)
	}
	return ids, true, nil
}
