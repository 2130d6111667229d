package models

import "time"

// DeferredExecutionModel is the row shape for a queued workflow run
// awaiting replay because the Workflow Runtime was unreachable when it
// was requested.
type DeferredExecutionModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	WorkflowID    string `gorm:"index;size:64;not null"`
	TriggerType   string `gorm:"size:16"`
	TriggerData   string `gorm:"type:text"` // JSON encoded map[string]interface{}
	Attempts      int
	NextAttemptAt time.Time `gorm:"index"`
	LastError     string    `gorm:"type:text"`
	Status        string    `gorm:"size:16;index"`
	CreatedAt     time.Time
}

func (DeferredExecutionModel) TableName() string {
	return "deferred_executions"
}
