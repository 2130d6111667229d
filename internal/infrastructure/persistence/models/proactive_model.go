package models

import "time"

// ProactiveSignalsModel is the row shape for the per-(user, room)
// idle/activity accounting the Proactive Engine consults. The counter
// maps and dismissal set are JSON encoded — this row is read and
// rewritten wholesale on every update, never queried by counter value.
type ProactiveSignalsModel struct {
	UserID           string `gorm:"primaryKey;size:64"`
	RoomID           string `gorm:"primaryKey;size:64"`
	CountsByAction   string `gorm:"type:text"`
	CountsByCategory string `gorm:"type:text"`
	LastAction       string `gorm:"size:64"`
	LastActionAt     time.Time
	LastNudgeAt      time.Time
	LastNudgeReason  string `gorm:"size:64"`
	DismissedAt      string `gorm:"type:text"`
}

func (ProactiveSignalsModel) TableName() string {
	return "proactive_signals"
}
