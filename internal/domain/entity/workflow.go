package entity

import "time"

// TriggerType enumerates how a workflow may be started (spec §3).
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerWebhook  TriggerType = "webhook"
	TriggerSchedule TriggerType = "schedule"
)

// Trigger describes one way a workflow can be started.
type Trigger struct {
	Type TriggerType

	// Webhook fields.
	Service string
	Event   string
	Config  map[string]interface{}

	// Schedule fields.
	Cron     string
	Timezone string
}

// OnError is a step's failure policy.
type OnError string

const (
	OnErrorStop     OnError = "stop"
	OnErrorContinue OnError = "continue"
)

// Step is one unit of work in a workflow's ordered step list (spec §3).
type Step struct {
	ID        string
	Service   string
	Action    string
	Params    map[string]interface{}
	Condition string
	OnError   OnError
}

// Policy constrains money-moving steps: the allowed destination phone
// numbers and the maximum single withdrawal amount (spec §3).
type Policy struct {
	AllowedPhoneNumbers []string
	MaxWithdrawAmount   float64
}

// WorkflowDefinition is a durable, user-authored automation: a named set
// of triggers and an ordered list of steps, with an optional policy that
// is mandatory whenever any step performs a money-moving action (spec §3).
type WorkflowDefinition struct {
	id          string
	name        string
	description string
	triggers    []Trigger
	steps       []Step
	policy      *Policy
	createdAt   time.Time
}

// NewWorkflowDefinition validates and constructs a workflow definition.
func NewWorkflowDefinition(id, name, description string, triggers []Trigger, steps []Step, policy *Policy) (*WorkflowDefinition, error) {
	if len(steps) == 0 {
		return nil, ErrWorkflowNoSteps
	}
	seen := make(map[string]bool, len(steps))
	needsPolicy := false
	for _, s := range steps {
		if seen[s.ID] {
			return nil, ErrDuplicateStepID
		}
		seen[s.ID] = true
		if s.Service == "payments" && s.Action == "withdraw" {
			needsPolicy = true
		}
	}
	if needsPolicy && policy == nil {
		return nil, ErrWorkflowPolicyMissing
	}

	return &WorkflowDefinition{
		id:          id,
		name:        name,
		description: description,
		triggers:    append([]Trigger(nil), triggers...),
		steps:       append([]Step(nil), steps...),
		policy:      policy,
		createdAt:   time.Now(),
	}, nil
}

// ReconstructWorkflowDefinition rebuilds a workflow from persisted state,
// skipping invariant checks — they held at write time.
func ReconstructWorkflowDefinition(id, name, description string, triggers []Trigger, steps []Step, policy *Policy, createdAt time.Time) *WorkflowDefinition {
	return &WorkflowDefinition{
		id:          id,
		name:        name,
		description: description,
		triggers:    append([]Trigger(nil), triggers...),
		steps:       append([]Step(nil), steps...),
		policy:      policy,
		createdAt:   createdAt,
	}
}

func (w *WorkflowDefinition) ID() string             { return w.id }
func (w *WorkflowDefinition) Name() string           { return w.name }
func (w *WorkflowDefinition) Description() string    { return w.description }
func (w *WorkflowDefinition) Triggers() []Trigger    { return append([]Trigger(nil), w.triggers...) }
func (w *WorkflowDefinition) Steps() []Step          { return append([]Step(nil), w.steps...) }
func (w *WorkflowDefinition) Policy() *Policy        { return w.policy }
func (w *WorkflowDefinition) CreatedAt() time.Time   { return w.createdAt }

// StepByID looks up a step by id.
func (w *WorkflowDefinition) StepByID(id string) (Step, bool) {
	for _, s := range w.steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// ExecutionStatus is the lifecycle state of a WorkflowExecution.
type ExecutionStatus string

const (
	ExecPending   ExecutionStatus = "pending"
	ExecRunning   ExecutionStatus = "running"
	ExecCompleted ExecutionStatus = "completed"
	ExecFailed    ExecutionStatus = "failed"
	ExecCancelled ExecutionStatus = "cancelled"
)

// WorkflowExecution is one run of a WorkflowDefinition (spec §3).
type WorkflowExecution struct {
	id            string
	workflowID    string
	externalRunID string
	triggerType   TriggerType
	triggerData   map[string]interface{}
	status        ExecutionStatus
	startedAt     time.Time
	completedAt   *time.Time
	resultContext map[string]interface{}
	errorMessage  string
}

func NewWorkflowExecution(id, workflowID, externalRunID string, triggerType TriggerType, triggerData map[string]interface{}) *WorkflowExecution {
	return &WorkflowExecution{
		id:            id,
		workflowID:    workflowID,
		externalRunID: externalRunID,
		triggerType:   triggerType,
		triggerData:   triggerData,
		status:        ExecPending,
		startedAt:     time.Now(),
		resultContext: make(map[string]interface{}),
	}
}

func ReconstructWorkflowExecution(
	id, workflowID, externalRunID string, triggerType TriggerType, triggerData map[string]interface{},
	status ExecutionStatus, startedAt time.Time, completedAt *time.Time,
	resultContext map[string]interface{}, errorMessage string,
) *WorkflowExecution {
	return &WorkflowExecution{
		id:            id,
		workflowID:    workflowID,
		externalRunID: externalRunID,
		triggerType:   triggerType,
		triggerData:   triggerData,
		status:        status,
		startedAt:     startedAt,
		completedAt:   completedAt,
		resultContext: resultContext,
		errorMessage:  errorMessage,
	}
}

func (e *WorkflowExecution) ID() string                         { return e.id }
func (e *WorkflowExecution) WorkflowID() string                 { return e.workflowID }
func (e *WorkflowExecution) ExternalRunID() string              { return e.externalRunID }
func (e *WorkflowExecution) TriggerType() TriggerType            { return e.triggerType }
func (e *WorkflowExecution) TriggerData() map[string]interface{} { return e.triggerData }
func (e *WorkflowExecution) Status() ExecutionStatus             { return e.status }
func (e *WorkflowExecution) StartedAt() time.Time                { return e.startedAt }
func (e *WorkflowExecution) CompletedAt() *time.Time             { return e.completedAt }
func (e *WorkflowExecution) ResultContext() map[string]interface{} { return e.resultContext }
func (e *WorkflowExecution) ErrorMessage() string                { return e.errorMessage }

func (e *WorkflowExecution) MarkRunning() { e.status = ExecRunning }

func (e *WorkflowExecution) RecordStepResult(stepID string, result interface{}) {
	e.resultContext[stepID] = result
}

func (e *WorkflowExecution) Complete() {
	e.status = ExecCompleted
	now := time.Now()
	e.completedAt = &now
}

func (e *WorkflowExecution) Fail(message string) {
	e.status = ExecFailed
	e.errorMessage = message
	now := time.Now()
	e.completedAt = &now
}

func (e *WorkflowExecution) Cancel() {
	e.status = ExecCancelled
	now := time.Now()
	e.completedAt = &now
}
