package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/cipherroom/gateway/internal/domain/dispatch"
	"github.com/cipherroom/gateway/internal/domain/entity"
)

type stubDispatcher struct {
	byAction map[string][]map[string]interface{} // queued results per action, popped in order
	calls    int
}

func (d *stubDispatcher) Execute(ctx context.Context, step entity.Step, execCtx *dispatch.ExecutionContext) map[string]interface{} {
	d.calls++
	queue := d.byAction[step.Action]
	if len(queue) == 0 {
		return map[string]interface{}{"status": "success"}
	}
	next := queue[0]
	d.byAction[step.Action] = queue[1:]
	return next
}

type stubExecSaver struct{ saved []*entity.WorkflowExecution }

func (s *stubExecSaver) Save(ctx context.Context, exec *entity.WorkflowExecution) error {
	s.saved = append(s.saved, exec)
	return nil
}

func mustWorkflow(t *testing.T, steps []entity.Step) *entity.WorkflowDefinition {
	t.Helper()
	wf, err := entity.NewWorkflowDefinition("wf1", "trip planner", "", []entity.Trigger{{Type: entity.TriggerManual}}, steps, nil)
	if err != nil {
		t.Fatalf("build workflow: %v", err)
	}
	return wf
}

func TestExecutorRunsStepsInOrderAndCompletes(t *testing.T) {
	wf := mustWorkflow(t, []entity.Step{
		{ID: "step_1", Service: "travel", Action: "search_flights"},
		{ID: "step_2", Service: "email", Action: "send_email"},
	})
	exec := entity.NewWorkflowExecution("e1", wf.ID(), "run-1", entity.TriggerManual, nil)
	d := &stubDispatcher{byAction: map[string][]map[string]interface{}{}}
	saver := &stubExecSaver{}
	ex := NewExecutor(d, saver, DefaultExecContextBuilder, nil).WithSleeper(func(time.Duration) {})

	if err := ex.Run(context.Background(), wf, exec, "u1", "r1"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.Status() != entity.ExecCompleted {
		t.Fatalf("expected completed, got %s", exec.Status())
	}
	if d.calls != 2 {
		t.Fatalf("expected both steps dispatched, got %d calls", d.calls)
	}
}

func TestExecutorStopsOnErrorByDefault(t *testing.T) {
	wf := mustWorkflow(t, []entity.Step{
		{ID: "step_1", Service: "travel", Action: "search_flights"},
		{ID: "step_2", Service: "email", Action: "send_email"},
	})
	exec := entity.NewWorkflowExecution("e1", wf.ID(), "run-1", entity.TriggerManual, nil)
	d := &stubDispatcher{byAction: map[string][]map[string]interface{}{
		"search_flights": {{"status": "error", "error": "boom"}, {"status": "error", "error": "boom"}, {"status": "error", "error": "boom"}},
	}}
	saver := &stubExecSaver{}
	ex := NewExecutor(d, saver, DefaultExecContextBuilder, nil).WithSleeper(func(time.Duration) {})

	if err := ex.Run(context.Background(), wf, exec, "u1", "r1"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.Status() != entity.ExecFailed {
		t.Fatalf("expected failed, got %s", exec.Status())
	}
	if d.calls != 3 {
		t.Fatalf("expected 3 retry attempts on step 1 and no dispatch of step 2, got %d calls", d.calls)
	}
}

func TestExecutorContinuesOnErrorWhenStepAllowsIt(t *testing.T) {
	wf := mustWorkflow(t, []entity.Step{
		{ID: "step_1", Service: "travel", Action: "search_flights", OnError: entity.OnErrorContinue},
		{ID: "step_2", Service: "email", Action: "send_email"},
	})
	exec := entity.NewWorkflowExecution("e1", wf.ID(), "run-1", entity.TriggerManual, nil)
	d := &stubDispatcher{byAction: map[string][]map[string]interface{}{
		"search_flights": {{"status": "error", "error": "boom"}, {"status": "error", "error": "boom"}, {"status": "error", "error": "boom"}},
	}}
	saver := &stubExecSaver{}
	ex := NewExecutor(d, saver, DefaultExecContextBuilder, nil).WithSleeper(func(time.Duration) {})

	if err := ex.Run(context.Background(), wf, exec, "u1", "r1"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if exec.Status() != entity.ExecCompleted {
		t.Fatalf("expected completed despite step_1 erroring, got %s", exec.Status())
	}
	if d.calls != 4 {
		t.Fatalf("expected 3 attempts on step_1 plus 1 on step_2, got %d", d.calls)
	}
}

func TestExecutorSkipsStepWhenConditionFalse(t *testing.T) {
	wf := mustWorkflow(t, []entity.Step{
		{ID: "step_1", Service: "travel", Action: "search_flights"},
		{ID: "step_2", Service: "email", Action: "send_email", Condition: "results.step_1.status == \"never\""},
	})
	exec := entity.NewWorkflowExecution("e1", wf.ID(), "run-1", entity.TriggerManual, nil)
	d := &stubDispatcher{byAction: map[string][]map[string]interface{}{}}
	saver := &stubExecSaver{}
	ex := NewExecutor(d, saver, DefaultExecContextBuilder, nil).WithSleeper(func(time.Duration) {})

	if err := ex.Run(context.Background(), wf, exec, "u1", "r1"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if d.calls != 1 {
		t.Fatalf("expected step_2 skipped by its condition, got %d calls", d.calls)
	}
	if got := exec.ResultContext()["step_2"].(map[string]interface{})["status"]; got != "skipped" {
		t.Fatalf("expected step_2 recorded as skipped, got %v", got)
	}
}
