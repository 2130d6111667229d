package task

import (
	"context"
	"testing"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/intent"
)

func schemasFixture() map[string]intent.ActionSchema {
	return map[string]intent.ActionSchema{
		"send_email": {
			Service: "email",
			Params: map[string]intent.ParamSpec{
				"to":   {Required: true},
				"text": {Required: true},
			},
		},
		"book_travel_item": {
			Service: "travel",
			Params: map[string]intent.ParamSpec{
				"item_type": {Required: true},
				"item_id":   {Required: true},
			},
		},
	}
}

type stubResults struct {
	rs  *entity.ResultSet
	err error
}

func (s *stubResults) Find(ctx context.Context, userID, roomID, action string) (*entity.ResultSet, error) {
	return s.rs, s.err
}

type stubSummary struct {
	text string
	err  error
}

func (s *stubSummary) LastSummary(ctx context.Context, roomID string) (string, error) {
	return s.text, s.err
}

type stubDismiss struct {
	userID, roomID, reason string
}

func (s *stubDismiss) RecordDismissal(ctx context.Context, userID, roomID, reason string) error {
	s.userID, s.roomID, s.reason = userID, roomID, reason
	return nil
}

func mustIntent(t *testing.T, action string, params map[string]interface{}, confidence float64, missing []string, clarifying string) *entity.Intent {
	t.Helper()
	in, err := entity.NewIntent(action, params, confidence, missing, clarifying, action)
	if err != nil {
		t.Fatalf("build intent: %v", err)
	}
	return in
}

func TestUpdateMergesNonEmptyParams(t *testing.T) {
	m := NewMachine(schemasFixture(), &stubResults{}, &stubSummary{}, nil)
	in := mustIntent(t, "send_email", map[string]interface{}{"to": "a@b.com"}, 0.9, []string{"text"}, "What should the email say?")
	task := m.Init("u1", "r1", in, 100)

	followUp := mustIntent(t, "send_email", map[string]interface{}{"text": "hello there"}, 0.8, nil, "")
	if discard := m.Update(task, followUp); discard {
		t.Fatal("should not discard when action matches")
	}
	if !task.IsReady() {
		t.Fatalf("expected task ready after filling text slot, missing=%v", task.MissingSlots)
	}
	if task.Parameters["text"] != "hello there" {
		t.Fatalf("expected merged text param, got %v", task.Parameters["text"])
	}
}

func TestUpdateDiscardsOnConfidentActionSwitch(t *testing.T) {
	m := NewMachine(schemasFixture(), &stubResults{}, &stubSummary{}, nil)
	in := mustIntent(t, "send_email", map[string]interface{}{"to": "a@b.com"}, 0.9, []string{"text"}, "What should the email say?")
	task := m.Init("u1", "r1", in, 100)

	followUp := mustIntent(t, "book_travel_item", map[string]interface{}{"item_type": "flight"}, 0.7, []string{"item_id"}, "Which one?")
	if discard := m.Update(task, followUp); !discard {
		t.Fatal("expected confident action switch to discard the in-flight task")
	}
}

func TestUpdateIgnoresLowConfidenceActionSwitch(t *testing.T) {
	m := NewMachine(schemasFixture(), &stubResults{}, &stubSummary{}, nil)
	in := mustIntent(t, "send_email", map[string]interface{}{"to": "a@b.com"}, 0.9, []string{"text"}, "What should the email say?")
	task := m.Init("u1", "r1", in, 100)

	followUp := mustIntent(t, "book_travel_item", map[string]interface{}{}, 0.4, nil, "")
	if discard := m.Update(task, followUp); discard {
		t.Fatal("low-confidence switch should not discard the in-flight task")
	}
}

func TestElevateForOptionContextReopensWhenNoResultSet(t *testing.T) {
	m := NewMachine(schemasFixture(), &stubResults{rs: nil}, &stubSummary{}, nil)
	in := mustIntent(t, "book_travel_item", map[string]interface{}{"item_type": "flight", "item_id": "2"}, 0.9, nil, "")
	task := m.Init("u1", "r1", in, 100)

	if err := m.ElevateForOptionContext(context.Background(), task); err != nil {
		t.Fatalf("elevate: %v", err)
	}
	if task.IsReady() {
		t.Fatal("expected task to re-open awaiting option context")
	}
	found := false
	for _, s := range task.MissingSlots {
		if s == optionContextSlot {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected synthetic option_context slot, got %v", task.MissingSlots)
	}
}

func TestElevateForOptionContextStaysReadyWithRecentResults(t *testing.T) {
	rs := entity.NewResultSet("u1", "r1", "book_travel_item", []map[string]interface{}{{"id": "1"}}, nil, 100)
	m := NewMachine(schemasFixture(), &stubResults{rs: rs}, &stubSummary{}, nil)
	in := mustIntent(t, "book_travel_item", map[string]interface{}{"item_type": "flight", "item_id": "2"}, 0.9, nil, "")
	task := m.Init("u1", "r1", in, 100)

	if err := m.ElevateForOptionContext(context.Background(), task); err != nil {
		t.Fatalf("elevate: %v", err)
	}
	if !task.IsReady() {
		t.Fatal("expected task to remain ready with a recent result set on hand")
	}
}

func TestApplySummaryShorthandFillsBodyParam(t *testing.T) {
	m := NewMachine(schemasFixture(), &stubResults{}, &stubSummary{text: "launch moved to friday"}, nil)
	in := mustIntent(t, "send_email", map[string]interface{}{"to": "a@b.com"}, 0.9, []string{"text"}, "What should the email say?")
	task := m.Init("u1", "r1", in, 100)

	if err := m.ApplySummaryShorthand(context.Background(), task, "email it to the team"); err != nil {
		t.Fatalf("apply summary shorthand: %v", err)
	}
	if task.Parameters["text"] != "launch moved to friday" {
		t.Fatalf("expected summary injected as text param, got %v", task.Parameters["text"])
	}
	if !task.IsReady() {
		t.Fatal("expected task ready after summary shorthand fill")
	}
}

func TestApplySummaryShorthandNoopsWithoutTrigger(t *testing.T) {
	m := NewMachine(schemasFixture(), &stubResults{}, &stubSummary{text: "launch moved to friday"}, nil)
	in := mustIntent(t, "send_email", map[string]interface{}{"to": "a@b.com"}, 0.9, []string{"text"}, "What should the email say?")
	task := m.Init("u1", "r1", in, 100)

	if err := m.ApplySummaryShorthand(context.Background(), task, "what's the weather like"); err != nil {
		t.Fatalf("apply summary shorthand: %v", err)
	}
	if task.IsReady() {
		t.Fatal("expected task to remain awaiting_slots when the message does not match the shorthand")
	}
}

func TestDismissRecordsReason(t *testing.T) {
	d := &stubDismiss{}
	m := NewMachine(schemasFixture(), &stubResults{}, &stubSummary{}, d)
	in := mustIntent(t, "send_email", map[string]interface{}{"to": "a@b.com"}, 0.9, []string{"text"}, "What should the email say?")
	task := m.Init("u1", "r1", in, 100)

	if err := m.Dismiss(context.Background(), task, "user_cancelled"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if d.reason != "user_cancelled" || d.userID != "u1" || d.roomID != "r1" {
		t.Fatalf("expected dismissal recorded, got %+v", d)
	}
}
