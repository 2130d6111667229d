// Package moderation implements the Moderation Buffer component (spec
// §4.D): a per-room append-only list of pending message ids that drains
// atomically into a Batch once it reaches a configured threshold.
package moderation

import (
	"context"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// Buffer is the Moderation Buffer contract. Append returns the buffer
// length immediately after the append so the caller can decide whether
// to trigger a drain without a second round trip.
type Buffer interface {
	// Append adds messageID to room's pending list and returns the new
	// length. Debug mode implementations may no-op and always return 0.
	Append(ctx context.Context, roomID, messageID string) (length int, err error)

	// Drain atomically empties room's pending list and returns the ids
	// it held, or ok=false if another caller already drained it (or it
	// was empty). Exactly one concurrent caller observing length >=
	// threshold must receive ok=true.
	Drain(ctx context.Context, roomID string) (ids []string, ok bool, err error)
}

// BatchFactory mints a ModerationBatch id; injected so callers control id
// generation strategy (ulid, uuid, snowflake) without this package
// depending on one.
type BatchFactory func() string

// Config tunes buffer behavior.
type Config struct {
	BatchSize int
	Debug     bool // bypasses buffering entirely (spec §4.D)
}

// MaybeDrain appends messageID and, if the threshold is reached, drains
// the buffer into a new pending ModerationBatch. It returns nil when no
// drain occurred (below threshold, debug mode, or lost the race to
// another drainer).
func MaybeDrain(ctx context.Context, buf Buffer, cfg Config, newID BatchFactory, roomID, messageID string) (*entity.ModerationBatch, error) {
	if cfg.Debug {
		return nil, nil
	}

	length, err := buf.Append(ctx, roomID, messageID)
	if err != nil {
		return nil, err
	}
	if length < cfg.BatchSize {
		return nil, nil
	}

	ids, ok, err := buf.Drain(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !ok || len(ids) == 0 {
		return nil, nil
	}

	return entity.NewModerationBatch(newID(), roomID, ids), nil
}
