package models

import "time"

// ModerationBatchModel is the row shape for a drained batch of messages
// awaiting (or having undergone) moderation review.
type ModerationBatchModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	RoomID       string `gorm:"index;size:64;not null"`
	MessageIDs   string `gorm:"type:text"` // JSON encoded []string
	Status       string `gorm:"size:16;index"`
	FlaggedCount int
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

func (ModerationBatchModel) TableName() string {
	return "moderation_batches"
}

// UserModerationStatusModel is the row shape for a (user, room) flag
// count and mute state.
type UserModerationStatusModel struct {
	UserID    string `gorm:"primaryKey;size:64"`
	RoomID    string `gorm:"primaryKey;size:64"`
	FlagCount int
	IsMuted   bool
}

func (UserModerationStatusModel) TableName() string {
	return "user_moderation_statuses"
}
