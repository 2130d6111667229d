package adapters

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cipherroom/gateway/internal/domain/crypto"
	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
)

// oauthCredentials is the JSON shape sealed at rest under the
// deployment master key, replacing the Python source's TokenEncryption
// + json.dumps/loads round trip with crypto.SealBytes/UnsealBytes.
type oauthCredentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds, 0 = no expiry tracked
}

func (c oauthCredentials) expired() bool {
	if c.ExpiresAt == 0 {
		return false
	}
	return time.Now().Unix() >= c.ExpiresAt-60
}

// credentialStore decrypts/encrypts a single integration's OAuth
// credentials, scoped to one master key. One instance is shared by
// every adapter that needs per-user OAuth state (currently Gmail).
type credentialStore struct {
	integrations repository.IntegrationRepository
	masterKey    [crypto.KeySize]byte
}

func newCredentialStore(integrations repository.IntegrationRepository, masterKey [crypto.KeySize]byte) *credentialStore {
	return &credentialStore{integrations: integrations, masterKey: masterKey}
}

// load fetches and decrypts a user's credentials for typ. Reports
// connected=false with a nil error if the user has no connected
// integration of that type.
func (s *credentialStore) load(ctx context.Context, userID string, typ entity.IntegrationType) (*entity.Integration, oauthCredentials, bool, error) {
	integration, err := s.integrations.Find(ctx, userID, typ)
	if err != nil {
		return nil, oauthCredentials{}, false, err
	}
	if integration == nil || !integration.IsConnected {
		return integration, oauthCredentials{}, false, nil
	}

	plaintext, err := crypto.UnsealBytes(s.masterKey, integration.SealedCredentials)
	if err != nil {
		return integration, oauthCredentials{}, false, err
	}
	var creds oauthCredentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return integration, oauthCredentials{}, false, err
	}
	return integration, creds, true, nil
}

// save re-seals creds and persists them on integration.
func (s *credentialStore) save(ctx context.Context, integration *entity.Integration, creds oauthCredentials) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	sealed, err := crypto.SealBytes(s.masterKey, plaintext)
	if err != nil {
		return err
	}
	integration.Connect(sealed)
	return s.integrations.Save(ctx, integration)
}
