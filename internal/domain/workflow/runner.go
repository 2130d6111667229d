package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// StatusDuplicate is returned by Start when an identical trigger
// arrives again inside the dedup window (spec §4.K).
const StatusDuplicate entity.ExecutionStatus = "duplicate"

// Runner starts workflow runs from any trigger source (manual,
// webhook, schedule) and hands them to the Executor, enforcing
// idempotency before a new WorkflowExecution is even created.
type Runner struct {
	definitions WorkflowDefinitionFinder
	executions  WorkflowExecutionSaver
	idempotency IdempotencyStore
	executor    *Executor
	logger      *zap.Logger
}

// WorkflowDefinitionFinder is the read-side of the workflow catalog
// the Runner needs to resolve a trigger to a definition.
type WorkflowDefinitionFinder interface {
	FindByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error)
}

func NewRunner(definitions WorkflowDefinitionFinder, executions WorkflowExecutionSaver, idempotency IdempotencyStore, executor *Executor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idempotency == nil {
		idempotency = NewInMemoryIdempotencyStore()
	}
	return &Runner{
		definitions: definitions,
		executions:  executions,
		idempotency: idempotency,
		executor:    executor,
		logger:      logger,
	}
}

// Start resolves workflowName, checks idempotency, and runs the
// workflow to completion (or failure), returning the finished
// execution. A duplicate trigger within the 90-second window returns
// an execution whose Status is StatusDuplicate without running
// anything (spec §4.K).
func (r *Runner) Start(ctx context.Context, workflowName, userID, roomID string, triggerType entity.TriggerType, triggerData map[string]interface{}) (*entity.WorkflowExecution, error) {
	wf, err := r.definitions.FindByName(ctx, workflowName)
	if err != nil {
		return nil, fmt.Errorf("workflow: resolve %q: %w", workflowName, err)
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow: %q not found", workflowName)
	}

	key := IdempotencyKey(userID, workflowName, triggerData)
	if !r.idempotency.Claim(key, time.Now()) {
		now := time.Now()
		return entity.ReconstructWorkflowExecution(
			uuid.NewString(), wf.ID(), uuid.NewString(), triggerType, triggerData,
			StatusDuplicate, now, &now, map[string]interface{}{}, "duplicate trigger within dedup window",
		), nil
	}

	exec := entity.NewWorkflowExecution(uuid.NewString(), wf.ID(), uuid.NewString(), triggerType, triggerData)
	if err := r.executor.Run(ctx, wf, exec, userID, roomID); err != nil {
		return nil, fmt.Errorf("workflow: run %q: %w", workflowName, err)
	}
	return exec, nil
}
