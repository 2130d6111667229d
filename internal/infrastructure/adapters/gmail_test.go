package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cipherroom/gateway/internal/domain/crypto"
	"github.com/cipherroom/gateway/internal/domain/entity"
)

type stubIntegrationRepo struct {
	byKey map[string]*entity.Integration
}

func newStubIntegrationRepo() *stubIntegrationRepo {
	return &stubIntegrationRepo{byKey: make(map[string]*entity.Integration)}
}

func (r *stubIntegrationRepo) key(userID string, typ entity.IntegrationType) string {
	return userID + ":" + string(typ)
}

func (r *stubIntegrationRepo) Find(ctx context.Context, userID string, typ entity.IntegrationType) (*entity.Integration, error) {
	return r.byKey[r.key(userID, typ)], nil
}

func (r *stubIntegrationRepo) Save(ctx context.Context, integration *entity.Integration) error {
	r.byKey[r.key(integration.UserID, integration.Type)] = integration
	return nil
}

func seedGmailIntegration(t *testing.T, repo *stubIntegrationRepo, masterKey [32]byte, userID string, creds oauthCredentials) {
	t.Helper()
	integration := entity.NewIntegration(userID, entity.IntegrationGmail)
	store := newCredentialStore(repo, masterKey)
	if err := store.save(context.Background(), integration, creds); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGmailExecuteRejectsMissingRecipient(t *testing.T) {
	repo := newStubIntegrationRepo()
	var masterKey [32]byte
	a := NewGmailAdapter("id", "secret", repo, masterKey, nil)

	_, err := a.Execute(context.Background(), map[string]interface{}{
		"user_id": "u1", "subject": "hi", "text": "body",
	})
	if err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestGmailExecuteReportsNotConnected(t *testing.T) {
	repo := newStubIntegrationRepo()
	var masterKey [32]byte
	a := NewGmailAdapter("id", "secret", repo, masterKey, nil)

	_, err := a.Execute(context.Background(), map[string]interface{}{
		"user_id": "u1", "to": "x@example.com", "subject": "hi", "text": "body",
	})
	reconnect, ok := err.(*needsReconnect)
	if !ok {
		t.Fatalf("expected a needsReconnect error, got %v", err)
	}
	if reconnect.ActionRequired() != "connect_gmail" {
		t.Fatalf("unexpected action_required: %s", reconnect.ActionRequired())
	}
}

func TestGmailExecuteRefreshesOnExpiryAndSends(t *testing.T) {
	var tokenCalls, sendCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenCalls++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "fresh-token",
				"expires_in":   3600,
			})
		case "/send":
			sendCalls++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "msg-1"})
		}
	}))
	defer server.Close()

	repo := newStubIntegrationRepo()
	var masterKey [32]byte
	seedGmailIntegration(t, repo, masterKey, "u1", oauthCredentials{
		AccessToken: "stale-token", RefreshToken: "refresh-1", ExpiresAt: 1,
	})

	a := NewGmailAdapter("id", "secret", repo, masterKey, nil).WithEndpoints(server.URL+"/token", server.URL+"/send")

	result, err := a.Execute(context.Background(), map[string]interface{}{
		"user_id": "u1", "to": "x@example.com", "subject": "hi", "text": "body",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["id"] != "msg-1" {
		t.Fatalf("expected sent message id, got %v", result)
	}
	if tokenCalls != 1 {
		t.Fatalf("expected exactly one refresh since the stored token was expired, got %d", tokenCalls)
	}
	if sendCalls != 1 {
		t.Fatalf("expected exactly one send once a fresh token was in hand, got %d", sendCalls)
	}

	integration, _ := repo.Find(context.Background(), "u1", entity.IntegrationGmail)
	if integration == nil {
		t.Fatal("expected integration persisted with refreshed credentials")
	}
}

func TestGmailExecuteRetriesOnceAfter401(t *testing.T) {
	var sendCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "fresh-token", "expires_in": 3600})
		case "/send":
			sendCalls++
			if sendCalls == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "msg-2"})
		}
	}))
	defer server.Close()

	repo := newStubIntegrationRepo()
	var masterKey [32]byte
	seedGmailIntegration(t, repo, masterKey, "u1", oauthCredentials{
		AccessToken: "still-valid-but-rejected", RefreshToken: "refresh-1",
	})

	a := NewGmailAdapter("id", "secret", repo, masterKey, nil).WithEndpoints(server.URL+"/token", server.URL+"/send")

	result, err := a.Execute(context.Background(), map[string]interface{}{
		"user_id": "u1", "to": "x@example.com", "subject": "hi", "text": "body",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["id"] != "msg-2" {
		t.Fatalf("expected the retried send to succeed, got %v", result)
	}
	if sendCalls != 2 {
		t.Fatalf("expected exactly one retry after the 401, got %d send calls", sendCalls)
	}
}

func TestCredentialSealBytesRoundTrips(t *testing.T) {
	var masterKey [32]byte
	for i := range masterKey {
		masterKey[i] = byte(i)
	}
	plaintext := []byte(`{"access_token":"abc"}`)
	sealed, err := crypto.SealBytes(masterKey, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	recovered, err := crypto.UnsealBytes(masterKey, sealed)
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if string(recovered) != string(plaintext) {
		t.Fatalf("expected round trip, got %q", recovered)
	}
}
