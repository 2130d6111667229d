package models

import "time"

// WorkflowDefinitionModel is the row shape for a durable, user-authored
// automation. Triggers, steps, and policy are JSON encoded — their
// shapes vary per trigger/step type and gain nothing from relational
// decomposition.
type WorkflowDefinitionModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"uniqueIndex;size:128;not null"`
	Description string `gorm:"type:text"`
	Triggers    string `gorm:"type:text"` // JSON encoded []entity.Trigger
	Steps       string `gorm:"type:text"` // JSON encoded []entity.Step
	Policy      string `gorm:"type:text"` // JSON encoded *entity.Policy, empty if nil
	CreatedAt   time.Time
}

func (WorkflowDefinitionModel) TableName() string {
	return "workflow_definitions"
}

// WorkflowExecutionModel is the row shape for one run of a
// WorkflowDefinition.
type WorkflowExecutionModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	WorkflowID    string `gorm:"index;size:64;not null"`
	ExternalRunID string `gorm:"size:64;index"`
	TriggerType   string `gorm:"size:16"`
	TriggerData   string `gorm:"type:text"` // JSON encoded map[string]interface{}
	Status        string `gorm:"size:16;index"`
	StartedAt     time.Time
	CompletedAt   *time.Time
	ResultContext string `gorm:"type:text"` // JSON encoded map[string]interface{}
	ErrorMessage  string `gorm:"type:text"`
}

func (WorkflowExecutionModel) TableName() string {
	return "workflow_executions"
}
