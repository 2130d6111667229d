package models

import "time"

// RoomContextModel is the row shape for a room's rolling conversational
// state. ActiveTopics is JSON encoded; daily summaries and notes are
// child rows joined by RoomID.
type RoomContextModel struct {
	RoomID                string `gorm:"primaryKey;size:64"`
	Summary               string `gorm:"type:text"`
	ActiveTopics          string `gorm:"type:text"` // JSON encoded []string
	MessagesSinceCompress int
	LastCompressedAt      time.Time
}

func (RoomContextModel) TableName() string {
	return "room_contexts"
}

// DailySummaryModel is a per-date child row of a RoomContextModel.
type DailySummaryModel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	RoomID  string `gorm:"index;size:64;not null"`
	Date    string `gorm:"size:10;index"`
	Content string `gorm:"type:text"`
}

func (DailySummaryModel) TableName() string {
	return "daily_summaries"
}

// RoomNoteModel is the row shape for a typed annotation attached to a
// room's context.
type RoomNoteModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	RoomID          string `gorm:"index;size:64;not null"`
	NoteType        string `gorm:"size:16"`
	Content         string `gorm:"type:text"`
	Priority        string `gorm:"size:16"`
	SourceMessageID string `gorm:"size:64"`
	Tags            string `gorm:"type:text"` // JSON encoded []string
	Creator         string `gorm:"size:64"`
	CreatedAt       time.Time
}

func (RoomNoteModel) TableName() string {
	return "room_notes"
}
