package application

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/dispatch"
	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/domain/workflow"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence"
)

type stubStepDispatcher struct{}

func (d *stubStepDispatcher) Execute(ctx context.Context, step entity.Step, execCtx *dispatch.ExecutionContext) map[string]interface{} {
	return map[string]interface{}{"status": dispatch.StatusSuccess}
}

func mustTestWorkflow(t *testing.T, name, service, event string) *entity.WorkflowDefinition {
	t.Helper()
	wf, err := entity.NewWorkflowDefinition(name, name, "", []entity.Trigger{
		{Type: entity.TriggerWebhook, Service: service, Event: event},
	}, []entity.Step{{ID: "step_1", Service: service, Action: "notify"}}, nil)
	if err != nil {
		t.Fatalf("build workflow: %v", err)
	}
	return wf
}

func newTestRouter(t *testing.T) (*WebhookRouter, repository.WorkflowRepository, repository.DeferredExecutionRepository) {
	t.Helper()
	workflows := persistence.NewMemoryWorkflowRepository()
	executions := persistence.NewMemoryWorkflowExecutionRepository()
	deferredRepo := persistence.NewMemoryDeferredExecutionRepository()

	executor := workflow.NewExecutor(&stubStepDispatcher{}, executions, workflow.DefaultExecContextBuilder, nil)
	runner := workflow.NewRunner(workflows, executions, nil, executor, nil)

	return NewWebhookRouter(workflows, runner, deferredRepo, nil, zap.NewNop()), workflows, deferredRepo
}

func TestWebhookRouterDispatchesToMatchingEvent(t *testing.T) {
	router, workflows, deferredRepo := newTestRouter(t)

	wf := mustTestWorkflow(t, "payment received", "stripe", "payment.success")
	if err := workflows.Save(context.Background(), wf); err != nil {
		t.Fatalf("save workflow: %v", err)
	}

	if err := router.DispatchWebhook(context.Background(), "stripe", "payment.success", map[string]interface{}{"amount": 100}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	due, err := deferredRepo.FindDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no deferred execution after a successful start, got %d", len(due))
	}
}

func TestWebhookRouterIgnoresNonMatchingEvent(t *testing.T) {
	router, workflows, _ := newTestRouter(t)

	wf := mustTestWorkflow(t, "payment received", "stripe", "payment.success")
	if err := workflows.Save(context.Background(), wf); err != nil {
		t.Fatalf("save workflow: %v", err)
	}

	if err := router.DispatchWebhook(context.Background(), "stripe", "payment.refunded", nil); err != nil {
		t.Fatalf("dispatch should be a no-op, got error: %v", err)
	}
}

func TestWebhookRouterTriggerWithEmptyEventMatchesAny(t *testing.T) {
	router, workflows, deferredRepo := newTestRouter(t)

	wf := mustTestWorkflow(t, "any stripe event", "stripe", "")
	if err := workflows.Save(context.Background(), wf); err != nil {
		t.Fatalf("save workflow: %v", err)
	}

	if err := router.DispatchWebhook(context.Background(), "stripe", "payment.refunded", nil); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	due, err := deferredRepo.FindDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected the catch-all trigger to start directly, got %d deferred", len(due))
	}
}

// triggerOnlyRepo wraps a real WorkflowRepository so FindByTriggerService
// surfaces a definition that FindByName can no longer resolve, simulating
// the workflow being deleted between the webhook lookup and the start.
type triggerOnlyRepo struct {
	repository.WorkflowRepository
	stale *entity.WorkflowDefinition
}

func (r *triggerOnlyRepo) FindByTriggerService(ctx context.Context, service string) ([]*entity.WorkflowDefinition, error) {
	return []*entity.WorkflowDefinition{r.stale}, nil
}

func (r *triggerOnlyRepo) FindByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error) {
	return nil, errors.New("workflow not found")
}

func TestWebhookRouterEnqueuesDeferredOnStartFailure(t *testing.T) {
	workflows := persistence.NewMemoryWorkflowRepository()
	executions := persistence.NewMemoryWorkflowExecutionRepository()
	deferredRepo := persistence.NewMemoryDeferredExecutionRepository()
	executor := workflow.NewExecutor(&stubStepDispatcher{}, executions, workflow.DefaultExecContextBuilder, nil)

	stale := mustTestWorkflow(t, "payment received", "stripe", "payment.success")
	wrapped := &triggerOnlyRepo{WorkflowRepository: workflows, stale: stale}
	runner := workflow.NewRunner(wrapped, executions, nil, executor, nil)
	router := NewWebhookRouter(wrapped, runner, deferredRepo, nil, zap.NewNop())

	if err := router.DispatchWebhook(context.Background(), "stripe", "payment.success", map[string]interface{}{"amount": 100}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	due, err := deferredRepo.FindDue(context.Background(), 10)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected the failed start to fall back to the deferred queue, got %d", len(due))
	}
	if due[0].WorkflowID() != "payment received" {
		t.Fatalf("expected the deferred entry to carry the workflow name, got %q", due[0].WorkflowID())
	}
}

func TestDeferredStarterForwardsWorkflowNameToRunner(t *testing.T) {
	workflows := persistence.NewMemoryWorkflowRepository()
	executions := persistence.NewMemoryWorkflowExecutionRepository()
	executor := workflow.NewExecutor(&stubStepDispatcher{}, executions, workflow.DefaultExecContextBuilder, nil)
	runner := workflow.NewRunner(workflows, executions, nil, executor, nil)

	wf := mustTestWorkflow(t, "trip planner", "travel", "")
	if err := workflows.Save(context.Background(), wf); err != nil {
		t.Fatalf("save workflow: %v", err)
	}

	s := &deferredStarter{runner: runner}
	if err := s.StartDeferred(context.Background(), "trip planner", string(entity.TriggerWebhook), nil); err != nil {
		t.Fatalf("start deferred: %v", err)
	}

	if err := s.StartDeferred(context.Background(), "no such workflow", string(entity.TriggerWebhook), nil); err == nil {
		t.Fatal("expected an error starting an unresolvable workflow name")
	}
}
