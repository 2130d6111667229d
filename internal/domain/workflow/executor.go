// Package workflow implements the Workflow Runtime (spec §4.K): a
// durable, sequential step executor generalized from the Agent
// Orchestrator's DAG executor in the project it was adapted from. Where the
// DAG executor fans dependency-ready nodes out across goroutines, this
// executor walks a WorkflowDefinition's steps strictly in declared
// order — spec §9's redesign note drops the dependency graph in favor
// of a flat ordered list, so there is nothing left to parallelize.
package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/dispatch"
	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/service"
)

// StepDispatcher executes one verified step and returns its uniform
// {"status": ..., ...} result map (component J).
type StepDispatcher interface {
	Execute(ctx context.Context, step entity.Step, execCtx *dispatch.ExecutionContext) map[string]interface{}
}

// RetryPolicy is exponential backoff for a single step, replacing the
// Python runtime's decorator-based retry (spec §9 redesign note).
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// DefaultRetryPolicy is the spec's fixed backoff schedule: 2s initial,
// 30s ceiling, 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Initial: 2 * time.Second, Max: 30 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		d = p.Max
	}
	return d
}

// Sleeper lets tests substitute an instant clock for time.Sleep.
type Sleeper func(time.Duration)

// ExecContextBuilder builds the per-step execution context (policy,
// results so far) that the dispatcher needs, given the workflow
// definition and the execution's accumulated result context.
type ExecContextBuilder func(wf *entity.WorkflowDefinition, exec *entity.WorkflowExecution, userID, roomID string) *dispatch.ExecutionContext

// Executor runs a WorkflowDefinition's steps against a WorkflowExecution,
// persisting status transitions as it goes (spec §4.K).
type Executor struct {
	dispatcher  StepDispatcher
	execs       WorkflowExecutionSaver
	retry       RetryPolicy
	sleep       Sleeper
	buildCtx    ExecContextBuilder
	stepBudget  time.Duration
	logger      *zap.Logger
}

// WorkflowExecutionSaver persists a WorkflowExecution's state after
// every status transition, so an observer polling by external run id
// sees progress mid-run (spec §4.K durability requirement).
type WorkflowExecutionSaver interface {
	Save(ctx context.Context, exec *entity.WorkflowExecution) error
}

func NewExecutor(dispatcher StepDispatcher, execs WorkflowExecutionSaver, buildCtx ExecContextBuilder, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		dispatcher: dispatcher,
		execs:      execs,
		retry:      DefaultRetryPolicy(),
		sleep:      time.Sleep,
		buildCtx:   buildCtx,
		stepBudget: 5 * time.Minute,
		logger:     logger,
	}
}

// WithRetryPolicy overrides the default backoff schedule (tests use
// this to shrink delays to zero).
func (e *Executor) WithRetryPolicy(p RetryPolicy) *Executor { e.retry = p; return e }

// WithSleeper overrides the backoff clock.
func (e *Executor) WithSleeper(s Sleeper) *Executor { e.sleep = s; return e }

// WithStepBudget overrides the per-step time budget guardrail.
func (e *Executor) WithStepBudget(d time.Duration) *Executor { e.stepBudget = d; return e }

// Run executes every step of wf in order against exec, persisting the
// execution's state after each transition. It never returns a Go error
// for a step-level failure — that is recorded on exec itself — only
// for an inability to persist state.
func (e *Executor) Run(ctx context.Context, wf *entity.WorkflowDefinition, exec *entity.WorkflowExecution, userID, roomID string) error {
	exec.MarkRunning()
	if err := e.save(ctx, exec); err != nil {
		return err
	}

	condCtx := map[string]interface{}{
		"user_id": userID,
		"room_id": roomID,
		"results": exec.ResultContext(),
	}

	for _, step := range wf.Steps() {
		ok, err := EvalCondition(step.Condition, condCtx)
		if err != nil {
			e.logger.Warn("workflow: condition evaluation failed, skipping step",
				zap.String("step_id", step.ID), zap.Error(err))
			continue
		}
		if !ok {
			exec.RecordStepResult(step.ID, map[string]interface{}{"status": "skipped"})
			continue
		}

		result := e.executeStepWithRetry(ctx, wf, exec, step, userID, roomID)
		exec.RecordStepResult(step.ID, result)
		condCtx["results"] = compactContext(exec.ResultContext())

		if result["status"] == "error" && step.OnError != entity.OnErrorContinue {
			msg := fmt.Sprintf("step %s failed: %v", step.ID, result["error"])
			exec.Fail(msg)
			return e.save(ctx, exec)
		}
	}

	exec.Complete()
	return e.save(ctx, exec)
}

func (e *Executor) executeStepWithRetry(ctx context.Context, wf *entity.WorkflowDefinition, exec *entity.WorkflowExecution, step entity.Step, userID, roomID string) map[string]interface{} {
	guard := service.NewCostGuard(0, e.stepBudget, e.logger)
	var result map[string]interface{}

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		if err := guard.CheckBudget(); err != nil {
			return map[string]interface{}{"status": "error", "error": err.Error()}
		}
		execCtx := e.buildCtx(wf, exec, userID, roomID)
		result = e.dispatcher.Execute(ctx, step, execCtx)
		if result["status"] != "error" {
			return result
		}
		if attempt < e.retry.MaxAttempts {
			e.sleep(e.retry.delay(attempt))
		}
	}
	return result
}

func (e *Executor) save(ctx context.Context, exec *entity.WorkflowExecution) error {
	if e.execs == nil {
		return nil
	}
	stored := entity.ReconstructWorkflowExecution(
		exec.ID(), exec.WorkflowID(), exec.ExternalRunID(), exec.TriggerType(), exec.TriggerData(),
		exec.Status(), exec.StartedAt(), exec.CompletedAt(),
		compactContext(exec.ResultContext()), exec.ErrorMessage(),
	)
	return e.execs.Save(ctx, stored)
}

// DefaultExecContextBuilder adapts a WorkflowExecution's accumulated
// result context into the shape component J's dispatcher expects.
func DefaultExecContextBuilder(wf *entity.WorkflowDefinition, exec *entity.WorkflowExecution, userID, roomID string) *dispatch.ExecutionContext {
	results := make(map[string]map[string]interface{}, len(exec.ResultContext()))
	for id, v := range exec.ResultContext() {
		if m, ok := v.(map[string]interface{}); ok {
			results[id] = m
		}
	}
	return &dispatch.ExecutionContext{
		UserID:  userID,
		RoomID:  roomID,
		Policy:  wf.Policy(),
		Results: results,
	}
}
