package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

type stubDefinitionFinder struct{ byName map[string]*entity.WorkflowDefinition }

func (f *stubDefinitionFinder) FindByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error) {
	return f.byName[name], nil
}

func TestRunnerStartsAndCompletesWorkflow(t *testing.T) {
	wf := mustWorkflow(t, []entity.Step{{ID: "step_1", Service: "travel", Action: "search_flights"}})
	finder := &stubDefinitionFinder{byName: map[string]*entity.WorkflowDefinition{"trip planner": wf}}
	d := &stubDispatcher{byAction: map[string][]map[string]interface{}{}}
	ex := NewExecutor(d, &stubExecSaver{}, DefaultExecContextBuilder, nil).WithSleeper(func(time.Duration) {})
	r := NewRunner(finder, &stubExecSaver{}, nil, ex, nil)

	exec, err := r.Start(context.Background(), "trip planner", "u1", "r1", entity.TriggerManual, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if exec.Status() != entity.ExecCompleted {
		t.Fatalf("expected completed, got %s", exec.Status())
	}
}

func TestRunnerReturnsDuplicateWithoutRunning(t *testing.T) {
	wf := mustWorkflow(t, []entity.Step{{ID: "step_1", Service: "travel", Action: "search_flights"}})
	finder := &stubDefinitionFinder{byName: map[string]*entity.WorkflowDefinition{"trip planner": wf}}
	d := &stubDispatcher{byAction: map[string][]map[string]interface{}{}}
	ex := NewExecutor(d, &stubExecSaver{}, DefaultExecContextBuilder, nil).WithSleeper(func(time.Duration) {})
	r := NewRunner(finder, &stubExecSaver{}, nil, ex, nil)

	triggerData := map[string]interface{}{"source": "telegram"}
	if _, err := r.Start(context.Background(), "trip planner", "u1", "r1", entity.TriggerManual, triggerData); err != nil {
		t.Fatalf("start: %v", err)
	}
	exec2, err := r.Start(context.Background(), "trip planner", "u1", "r1", entity.TriggerManual, triggerData)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if exec2.Status() != StatusDuplicate {
		t.Fatalf("expected duplicate status, got %s", exec2.Status())
	}
	if d.calls != 1 {
		t.Fatalf("expected the duplicate trigger to skip dispatching entirely, got %d calls", d.calls)
	}
}

func TestRunnerErrorsOnUnknownWorkflow(t *testing.T) {
	finder := &stubDefinitionFinder{byName: map[string]*entity.WorkflowDefinition{}}
	ex := NewExecutor(&stubDispatcher{byAction: map[string][]map[string]interface{}{}}, &stubExecSaver{}, DefaultExecContextBuilder, nil)
	r := NewRunner(finder, &stubExecSaver{}, nil, ex, nil)

	if _, err := r.Start(context.Background(), "missing", "u1", "r1", entity.TriggerManual, nil); err == nil {
		t.Fatal("expected an error for an unresolvable workflow name")
	}
}
