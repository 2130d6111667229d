package models

import "time"

// RoomModel is the row shape for an end-to-end-encrypted group chat room.
type RoomModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255"`
	SealedKey []byte `gorm:"type:blob"`
	CreatedAt time.Time
}

func (RoomModel) TableName() string {
	return "rooms"
}

// MemberModel is the row shape for a (user, room) membership association.
type MemberModel struct {
	ID       string `gorm:"primaryKey;size:64"`
	UserID   string `gorm:"index;size:64;not null"`
	RoomID   string `gorm:"index;size:64;not null"`
	LastSeen time.Time
}

func (MemberModel) TableName() string {
	return "members"
}
