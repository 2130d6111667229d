package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMailgunExecuteMocksWithoutCredentials(t *testing.T) {
	a := NewMailgunAdapter(MailgunConfig{}, nil)
	result, err := a.Execute(context.Background(), map[string]interface{}{
		"to": "x@example.com", "subject": "hi", "text": "body",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["mock"] != true {
		t.Fatalf("expected mocked send without credentials, got %v", result)
	}
}

func TestMailgunExecuteRejectsMissingSubject(t *testing.T) {
	a := NewMailgunAdapter(MailgunConfig{APIKey: "k", Domain: "d"}, nil)
	_, err := a.Execute(context.Background(), map[string]interface{}{"to": "x@example.com", "text": "body"})
	if err == nil {
		t.Fatal("expected error for missing subject")
	}
}

func TestMailgunExecuteSendsOverHTTP(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		w.Write([]byte(`{"id":"<msg@mailgun>"}`))
	}))
	defer server.Close()

	a := NewMailgunAdapter(MailgunConfig{APIKey: "secret-key", Domain: "mail.example.com"}, nil).WithBaseURL(server.URL)

	result, err := a.Execute(context.Background(), map[string]interface{}{
		"to": "x@example.com", "subject": "hi", "text": "body",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["id"] != "<msg@mailgun>" {
		t.Fatalf("expected parsed message id, got %v", result)
	}
	if gotAuth != "api:secret-key" {
		t.Fatalf("expected basic auth 'api:secret-key', got %q", gotAuth)
	}
}
