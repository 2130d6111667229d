package entity

import "time"

// IntegrationType names an external service a user has connected
// (spec §4.O). Each value corresponds to one adapter in the External
// Adapters catalog that needs per-user OAuth state.
type IntegrationType string

const (
	IntegrationGmail IntegrationType = "gmail"
)

// Integration is a user's connection to one external service: sealed
// OAuth credentials plus enough metadata for the adapter to present a
// useful "not connected" message without ever holding the unsealed
// secret outside of a single adapter call.
type Integration struct {
	UserID            string
	Type              IntegrationType
	IsConnected       bool
	SealedCredentials []byte
	Metadata          map[string]string
	UpdatedAt         time.Time
}

func NewIntegration(userID string, typ IntegrationType) *Integration {
	return &Integration{
		UserID:   userID,
		Type:     typ,
		Metadata: make(map[string]string),
	}
}

// Connect seals and stores fresh credentials, marking the integration
// connected.
func (i *Integration) Connect(sealed []byte) {
	i.SealedCredentials = sealed
	i.IsConnected = true
	i.UpdatedAt = time.Now()
}

// Disconnect clears credentials without deleting the row, so a
// reconnect can reuse the same integration record.
func (i *Integration) Disconnect() {
	i.SealedCredentials = nil
	i.IsConnected = false
	i.UpdatedAt = time.Now()
}
