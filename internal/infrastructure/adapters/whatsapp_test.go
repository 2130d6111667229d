package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWhatsAppSendMessageMocksWithoutCredentials(t *testing.T) {
	a := NewWhatsAppAdapter(WhatsAppConfig{}, nil)
	result, err := a.Adapter("send_message").Execute(context.Background(), map[string]interface{}{
		"phone_number": "+254700000000", "message": "hello",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["mock"] != true {
		t.Fatalf("expected mocked send without credentials, got %v", result)
	}
}

func TestWhatsAppGetTemplatesReturnsFixedList(t *testing.T) {
	a := NewWhatsAppAdapter(WhatsAppConfig{}, nil)
	result, err := a.Adapter("get_templates").Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	templates, ok := result["templates"].([]string)
	if !ok || len(templates) != 3 {
		t.Fatalf("expected 3 fixed templates, got %v", result)
	}
}

func TestWhatsAppSendInvoiceWrapsMessage(t *testing.T) {
	a := NewWhatsAppAdapter(WhatsAppConfig{}, nil)
	result, err := a.Adapter("send_invoice").Execute(context.Background(), map[string]interface{}{
		"phone_number": "+254700000000", "payment_link": "https://pay.example/x",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["mock"] != true {
		t.Fatalf("expected mocked invoice send, got %v", result)
	}
}

func TestWhatsAppSendMessageOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	a := NewWhatsAppAdapter(WhatsAppConfig{AccountSID: "AC1", AuthToken: "tok", FromNumber: "whatsapp:+15550001111"}, nil).
		WithBaseURL(server.URL)

	result, err := a.Adapter("send_message").Execute(context.Background(), map[string]interface{}{
		"phone_number": "whatsapp:+254700000000", "message": "hi",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["status"] != "sent" || result["mock"] != false {
		t.Fatalf("expected live send result, got %v", result)
	}
}

func TestWhatsAppUnknownActionRejected(t *testing.T) {
	a := NewWhatsAppAdapter(WhatsAppConfig{}, nil)
	_, err := a.Adapter("delete_everything").Execute(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}
