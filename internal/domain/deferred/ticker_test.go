package deferred

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

type stubDeferredRepo struct {
	items []*entity.DeferredExecution
	saved []*entity.DeferredExecution
}

func (r *stubDeferredRepo) FindByID(ctx context.Context, id string) (*entity.DeferredExecution, error) {
	for _, it := range r.items {
		if it.ID() == id {
			return it, nil
		}
	}
	return nil, nil
}

func (r *stubDeferredRepo) FindDue(ctx context.Context, limit int) ([]*entity.DeferredExecution, error) {
	var due []*entity.DeferredExecution
	for _, it := range r.items {
		if it.IsDue() && it.Status() == entity.DeferredQueued {
			due = append(due, it)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (r *stubDeferredRepo) Save(ctx context.Context, d *entity.DeferredExecution) error {
	r.saved = append(r.saved, d)
	return nil
}

type stubStarter struct {
	err   error
	calls int
}

func (s *stubStarter) StartDeferred(ctx context.Context, workflowID, triggerType string, triggerData map[string]interface{}) error {
	s.calls++
	return s.err
}

func TestTickerStartsDueItem(t *testing.T) {
	item := entity.NewDeferredExecution("d1", "wf1", entity.TriggerManual, nil)
	repo := &stubDeferredRepo{items: []*entity.DeferredExecution{item}}
	starter := &stubStarter{}
	ticker := NewTicker(repo, NewMemoryGuardFlag(), starter, nil)

	if err := ticker.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if item.Status() != entity.DeferredStarted {
		t.Fatalf("expected started, got %s", item.Status())
	}
	if starter.calls != 1 {
		t.Fatalf("expected one start attempt, got %d", starter.calls)
	}
}

func TestTickerSkipsBatchWhenGuardFlagSet(t *testing.T) {
	item := entity.NewDeferredExecution("d1", "wf1", entity.TriggerManual, nil)
	repo := &stubDeferredRepo{items: []*entity.DeferredExecution{item}}
	guard := NewMemoryGuardFlag()
	guard.Set(context.Background(), time.Minute)
	starter := &stubStarter{}
	ticker := NewTicker(repo, guard, starter, nil)

	if err := ticker.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if starter.calls != 0 {
		t.Fatalf("expected no start attempts while guard flag is set, got %d", starter.calls)
	}
}

func TestTickerRetriesWithBackoffOnFailure(t *testing.T) {
	item := entity.NewDeferredExecution("d1", "wf1", entity.TriggerManual, nil)
	repo := &stubDeferredRepo{items: []*entity.DeferredExecution{item}}
	starter := &stubStarter{err: errors.New("adapter rejected request")}
	ticker := NewTicker(repo, NewMemoryGuardFlag(), starter, nil)

	if err := ticker.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if item.Status() != entity.DeferredQueued {
		t.Fatalf("expected queued for retry, got %s", item.Status())
	}
	if item.Attempts() != 1 {
		t.Fatalf("expected 1 attempt recorded, got %d", item.Attempts())
	}
	if !item.NextAttemptAt().After(time.Now()) {
		t.Fatal("expected next attempt scheduled in the future")
	}
}

func TestTickerAbandonsAfterMaxAttempts(t *testing.T) {
	item := entity.NewDeferredExecution("d1", "wf1", entity.TriggerManual, nil)
	for i := 0; i < MaxAttempts-1; i++ {
		item.ScheduleRetry("boom", 0)
	}
	repo := &stubDeferredRepo{items: []*entity.DeferredExecution{item}}
	starter := &stubStarter{err: errors.New("still failing")}
	ticker := NewTicker(repo, NewMemoryGuardFlag(), starter, nil)

	if err := ticker.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if item.Status() != entity.DeferredAbandoned {
		t.Fatalf("expected abandoned after exhausting retries, got %s", item.Status())
	}
}

func TestTickerRaisesGuardFlagOnUnreachableError(t *testing.T) {
	item := entity.NewDeferredExecution("d1", "wf1", entity.TriggerManual, nil)
	repo := &stubDeferredRepo{items: []*entity.DeferredExecution{item}}
	starter := &stubStarter{err: &UnreachableError{Err: errors.New("connection refused")}}
	guard := NewMemoryGuardFlag()
	ticker := NewTicker(repo, guard, starter, nil)

	if err := ticker.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	set, _ := guard.IsSet(context.Background())
	if !set {
		t.Fatal("expected guard flag raised after an unreachable-runtime error")
	}
}
