package adapters

import (
	"context"
	"testing"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"adapter": s.name}, nil
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry().
		Register("whatsapp", "send_message", &stubAdapter{name: "wa-send"}).
		Register("whatsapp", "get_templates", &stubAdapter{name: "wa-templates"})

	adapter, ok := r.Lookup("whatsapp", "send_message")
	if !ok {
		t.Fatal("expected send_message to be registered")
	}
	result, err := adapter.Execute(context.Background(), nil)
	if err != nil || result["adapter"] != "wa-send" {
		t.Fatalf("unexpected lookup result: %v, %v", result, err)
	}
}

func TestRegistryMissingService(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("unknown", "anything"); ok {
		t.Fatal("expected lookup against an unregistered service to fail")
	}
}

func TestRegistryMissingActionOnKnownService(t *testing.T) {
	r := NewRegistry().Register("whatsapp", "send_message", &stubAdapter{name: "wa-send"})
	if _, ok := r.Lookup("whatsapp", "delete_everything"); ok {
		t.Fatal("expected lookup against an unregistered action to fail")
	}
}
