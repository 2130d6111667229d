// Package ratelimit implements the Rate & Quota Gate component (spec
// §4.C): fixed-window counters keyed by (scope, user, window-bucket),
// where each bucket spans the scope's Ceiling.Window seconds.
package ratelimit

import "context"

// Scope enumerates the actions a Gate guards.
type Scope string

const (
	ScopeChatMessages      Scope = "chat_messages"
	ScopeFileUploads       Scope = "file_uploads"
	ScopeOrchestrationCall Scope = "orchestration_calls"
	ScopeTravelSearch      Scope = "travel_search"
)

// Ceiling is the allowed count per window for a scope.
type Ceiling struct {
	Limit  int64
	Window int64 // seconds
}

// DefaultCeilings mirrors spec §4.C's enumerated scopes. Chat messages
// and file uploads have the same 30/min ceiling but separate counters:
// uploads are checked under the file-uploads scope key and do not use
// up the chat-messages count.
var DefaultCeilings = map[Scope]Ceiling{
	ScopeChatMessages:      {Limit: 30, Window: 60},
	ScopeFileUploads:       {Limit: 30, Window: 60},
	ScopeOrchestrationCall: {Limit: 100, Window: 3600},
	ScopeTravelSearch:      {Limit: 100, Window: 3600},
}

// Gate is the Rate & Quota Gate contract. Allow increments the counter
// atomically and reports whether the action is within its ceiling —
// implementations must never double-count a call that was disallowed.
type Gate interface {
	Allow(ctx context.Context, scope Scope, user string) (bool, error)

	// Remaining reports how many calls are left in the current window,
	// for the get_quotas inbound command (spec §4.E).
	Remaining(ctx context.Context, scope Scope, user string) (int64, error)
}
