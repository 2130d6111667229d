package adapters

import (
	"context"
	"testing"

	"github.com/cipherroom/gateway/internal/domain/ratelimit"
)

func TestQuotaAdapterReportsRemainingAcrossScopes(t *testing.T) {
	gate := ratelimit.NewMemoryGate(ratelimit.DefaultCeilings)
	a := NewQuotaAdapter(gate)

	if _, err := gate.Allow(context.Background(), ratelimit.ScopeChatMessages, "u1"); err != nil {
		t.Fatalf("seed allow: %v", err)
	}

	result, err := a.Execute(context.Background(), map[string]interface{}{"user_id": "u1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	quotas := result["quotas"].(map[string]interface{})
	chat := quotas[string(ratelimit.ScopeChatMessages)].(map[string]interface{})
	if chat["remaining"] != ratelimit.DefaultCeilings[ratelimit.ScopeChatMessages].Limit-1 {
		t.Fatalf("expected one call consumed from chat_messages quota, got %v", chat)
	}
}

func TestQuotaAdapterRequiresUserContext(t *testing.T) {
	a := NewQuotaAdapter(ratelimit.NewMemoryGate(ratelimit.DefaultCeilings))
	if _, err := a.Execute(context.Background(), map[string]interface{}{}); err == nil {
		t.Fatal("expected error for missing user context")
	}
}
