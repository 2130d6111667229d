package ratelimit

import (
	"context"
	"testing"
)

func TestAllowDeniesAtCeiling(t *testing.T) {
	ctx := context.Background()
	gate := NewMemoryGate(map[Scope]Ceiling{
		ScopeChatMessages: {Limit: 3, Window: 60},
	})

	for i := 0; i < 3; i++ {
		ok, err := gate.Allow(ctx, ScopeChatMessages, "alice")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected allow %d to succeed", i)
		}
	}

	ok, err := gate.Allow(ctx, ScopeChatMessages, "alice")
	if err != nil {
		t.Fatalf("allow over ceiling: %v", err)
	}
	if ok {
		t.Fatal("expected fourth call to be denied")
	}
}

func TestAllowIsPerUser(t *testing.T) {
	ctx := context.Background()
	gate := NewMemoryGate(map[Scope]Ceiling{
		ScopeChatMessages: {Limit: 1, Window: 60},
	})

	if ok, _ := gate.Allow(ctx, ScopeChatMessages, "alice"); !ok {
		t.Fatal("expected alice's first call to succeed")
	}
	if ok, _ := gate.Allow(ctx, ScopeChatMessages, "bob"); !ok {
		t.Fatal("expected bob's first call to succeed despite alice being at ceiling")
	}
}

func TestRemainingReflectsConsumption(t *testing.T) {
	ctx := context.Background()
	gate := NewMemoryGate(map[Scope]Ceiling{
		ScopeOrchestrationCall: {Limit: 5, Window: 3600},
	})

	remaining, err := gate.Remaining(ctx, ScopeOrchestrationCall, "alice")
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining != 5 {
		t.Fatalf("expected 5 remaining before any calls, got %d", remaining)
	}

	gate.Allow(ctx, ScopeOrchestrationCall, "alice")
	gate.Allow(ctx, ScopeOrchestrationCall, "alice")

	remaining, err = gate.Remaining(ctx, ScopeOrchestrationCall, "alice")
	if err != nil {
		t.Fatalf("remaining after use: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("expected 3 remaining after two calls, got %d", remaining)
	}
}

func TestAllowUnknownScopeErrors(t *testing.T) {
	ctx := context.Background()
	gate := NewMemoryGate(map[Scope]Ceiling{})

	if _, err := gate.Allow(ctx, ScopeChatMessages, "alice"); err == nil {
		t.Fatal("expected error for scope with no configured ceiling")
	}
}
