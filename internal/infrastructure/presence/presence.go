// Package presence implements the Presence Store component (spec §4.B):
// a per-room online set with per-user last-seen timestamps, shared across
// process instances so any gateway node sees the whole room's occupancy.
package presence

import (
	"context"
	"time"
)

// Snapshot is a point-in-time view of a room's online set.
type Snapshot struct {
	Users    []string
	LastSeen map[string]time.Time
}

// Store is the Presence Store contract. Implementations must be
// concurrency-safe and must make remove-then-add idempotent: a transient
// double-connect must never double-count a user (spec §4.B).
type Store interface {
	// Add marks user online in room. Calling Add twice for the same
	// (room, user) without an intervening Remove is a no-op.
	Add(ctx context.Context, room, user string) error

	// Remove marks user offline in room. Removing an absent user is a
	// no-op, not an error.
	Remove(ctx context.Context, room, user string) error

	// Touch refreshes user's last-seen timestamp, independent of
	// online/offline status.
	Touch(ctx context.Context, room, user string, at time.Time) error

	// Snapshot returns the current online set and last-seen map. Callers
	// may rely on this reflecting any mutation within 200ms.
	Snapshot(ctx context.Context, room string) (Snapshot, error)
}

// RemoveThenAdd performs the canonical reconnect sequence the spec
// mandates: a stale session is cleared before the fresh one is recorded,
// so a transient double-connect settles on exactly one membership.
func RemoveThenAdd(ctx context.Context, s Store, room, user string) error {
	if err := s.Remove(ctx, room, user); err != nil {
		return err
	}
	return s.Add(ctx, room, user)
}
