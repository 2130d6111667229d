package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageModel is the row shape for a persisted chat message. Content is
// never stored in plaintext — only the sealed envelope fields.
type MessageModel struct {
	ID                string `gorm:"primaryKey;size:64"`
	RoomID            string `gorm:"index;size:64;not null"`
	AuthorMemberID    string `gorm:"size:64;not null"`
	ParentID          string `gorm:"size:64"`
	Ciphertext        string `gorm:"type:text"`
	Nonce             string `gorm:"size:32"`
	AudioReference    string `gorm:"size:255"`
	IsVoice           bool
	HasAssistantVoice bool
	CreatedAt         time.Time `gorm:"index"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

func (MessageModel) TableName() string {
	return "messages"
}
