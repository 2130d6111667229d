// Package deferred implements the Deferred Queue (spec §4.L): replay
// of workflow starts that could not reach the Workflow Runtime when
// first requested, with exponential backoff and a guard flag that
// short-circuits an entire batch once the runtime looks unreachable.
package deferred

import (
	"context"
	"time"
)

// GuardFlagStore tracks the "runtime_unavailable" flag (120s TTL, spec
// §4.L) across process instances — mirrors ratelimit.Gate's split
// between an in-memory test double and a shared backend.
type GuardFlagStore interface {
	// Set raises the flag for ttl.
	Set(ctx context.Context, ttl time.Duration) error
	// IsSet reports whether the flag is currently raised.
	IsSet(ctx context.Context) (bool, error)
}

// GuardFlagTTL is the spec's fixed flag lifetime.
const GuardFlagTTL = 120 * time.Second

// MaxAttempts is the ceiling after which a queued start is abandoned.
const MaxAttempts = 6

// BackoffBase and BackoffMax bound the retry schedule: backoff =
// min(base * 2^(attempts-1), max).
const (
	BackoffBase = 5 * time.Second
	BackoffMax  = 5 * time.Minute
)

func backoffFor(attempts int) time.Duration {
	d := BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d > BackoffMax {
			return BackoffMax
		}
	}
	if d > BackoffMax {
		d = BackoffMax
	}
	return d
}

// WorkflowStarter is the subset of the Workflow Runtime's Runner the
// Deferred Queue needs to re-attempt a start.
type WorkflowStarter interface {
	StartDeferred(ctx context.Context, workflowID string, triggerType string, triggerData map[string]interface{}) error
}

// UnreachableError is returned by a WorkflowStarter when the failure
// looks like runtime unreachability (connection refused, timeout,
// generic "unavailable") rather than a normal step failure — the
// ticker treats this class specially by raising the guard flag and
// stopping the batch early (spec §4.L step 4).
type UnreachableError struct{ Err error }

func (e *UnreachableError) Error() string { return e.Err.Error() }
func (e *UnreachableError) Unwrap() error { return e.Err }
