package models

import "time"

// IntegrationModel is the row shape for a user's connection to one
// external service. SealedCredentials is the crypto.SealBytes output —
// ciphertext only, never a plaintext token column.
type IntegrationModel struct {
	UserID            string `gorm:"primaryKey;size:64"`
	Type              string `gorm:"primaryKey;size:32"`
	IsConnected       bool
	SealedCredentials []byte `gorm:"type:blob"`
	Metadata          string `gorm:"type:text"` // JSON encoded map[string]string
	UpdatedAt         time.Time
}

func (IntegrationModel) TableName() string {
	return "integrations"
}
