package plan

import (
	"context"
	"testing"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/intent"
)

func schemasFixture() map[string]intent.ActionSchema {
	return map[string]intent.ActionSchema{
		"search_flights": {Service: "travel", Params: map[string]intent.ParamSpec{
			"origin":         {Required: true},
			"destination":    {Required: true},
			"departure_date": {Required: true},
		}},
		"book_travel_item": {Service: "travel", Params: map[string]intent.ParamSpec{
			"item_type": {Required: true},
			"item_id":   {Required: true, Type: "integer"},
		}},
		"send_email": {Service: "email", Params: map[string]intent.ParamSpec{
			"to":   {Required: true},
			"text": {Required: true},
		}},
	}
}

type stubResults struct {
	rs *entity.ResultSet
}

func (s *stubResults) Find(ctx context.Context, userID, roomID, action string) (*entity.ResultSet, error) {
	return s.rs, nil
}

func TestReviewStepsEmptyPlanAsksUser(t *testing.T) {
	v := NewVerifier(schemasFixture(), nil)
	got := v.ReviewSteps(context.Background(), "u1", "r1", nil)
	if got.Verdict != VerdictAskUser {
		t.Fatalf("expected ask_user for an empty plan, got %s", got.Verdict)
	}
}

func TestReviewStepsNormalizesAliasesAndApproves(t *testing.T) {
	v := NewVerifier(schemasFixture(), nil)
	steps := []entity.Step{
		{Action: "send_email", Params: map[string]interface{}{"recipient": "a@b.com", "body": "hi"}},
	}
	got := v.ReviewSteps(context.Background(), "u1", "r1", steps)
	if got.Verdict != VerdictApprove {
		t.Fatalf("expected approve, got %s (%s)", got.Verdict, got.AssistantMessage)
	}
	if got.Steps[0].Params["to"] != "a@b.com" || got.Steps[0].Params["text"] != "hi" {
		t.Fatalf("expected aliases rewritten, got %+v", got.Steps[0].Params)
	}
}

func TestReviewStepsCoercesNumericStrings(t *testing.T) {
	v := NewVerifier(schemasFixture(), nil)
	steps := []entity.Step{
		{Action: "book_travel_item", Params: map[string]interface{}{"item_type": "flight", "item_id": "3"}},
	}
	got := v.ReviewSteps(context.Background(), "u1", "r1", steps)
	if got.Verdict != VerdictApprove {
		t.Fatalf("expected approve, got %s (%s)", got.Verdict, got.AssistantMessage)
	}
	if got.Steps[0].Params["item_id"] != 3 {
		t.Fatalf("expected item_id coerced to int 3, got %#v", got.Steps[0].Params["item_id"])
	}
}

func TestReviewStepsReordersBookingAfterSearch(t *testing.T) {
	v := NewVerifier(schemasFixture(), nil)
	steps := []entity.Step{
		{ID: "a", Action: "book_travel_item", Params: map[string]interface{}{"item_type": "flight"}},
		{ID: "b", Action: "search_flights", Params: map[string]interface{}{"origin": "NBO", "destination": "LHR", "departure_date": "2026-08-01"}},
	}
	got := v.ReviewSteps(context.Background(), "u1", "r1", steps)
	if got.Verdict != VerdictAskUser {
		t.Fatalf("expected ask_user because item_id is still missing after reorder, got %s", got.Verdict)
	}
	if got.Steps[0].Action != "search_flights" {
		t.Fatalf("expected search step moved ahead of the booking step, got order: %s, %s", got.Steps[0].Action, got.Steps[1].Action)
	}
}

func TestReviewStepsDelaysDeliveryNeedingResults(t *testing.T) {
	v := NewVerifier(schemasFixture(), nil)
	steps := []entity.Step{
		{ID: "a", Action: "send_email", Params: map[string]interface{}{"to": "a@b.com", "text": "here are the results"}},
		{ID: "b", Action: "search_flights", Params: map[string]interface{}{"origin": "NBO", "destination": "LHR", "departure_date": "2026-08-01"}},
	}
	got := v.ReviewSteps(context.Background(), "u1", "r1", steps)
	if got.Steps[0].Action != "search_flights" {
		t.Fatalf("expected delivery step delayed past the search step, got order: %s, %s", got.Steps[0].Action, got.Steps[1].Action)
	}
}

func TestReviewStepsReportsMissingParam(t *testing.T) {
	v := NewVerifier(schemasFixture(), nil)
	steps := []entity.Step{
		{Action: "send_email", Params: map[string]interface{}{"to": "a@b.com"}},
	}
	got := v.ReviewSteps(context.Background(), "u1", "r1", steps)
	if got.Verdict != VerdictAskUser || got.Reason != "missing_param" {
		t.Fatalf("expected missing_param ask_user, got %+v", got)
	}
	if len(got.MissingFields) != 1 || got.MissingFields[0].Param != "text" {
		t.Fatalf("expected missing text param, got %+v", got.MissingFields)
	}
}

func TestReviewStepsUnknownActionAsksUser(t *testing.T) {
	v := NewVerifier(schemasFixture(), nil)
	steps := []entity.Step{{Action: "launch_missiles", Params: map[string]interface{}{}}}
	got := v.ReviewSteps(context.Background(), "u1", "r1", steps)
	if got.Verdict != VerdictAskUser || got.Reason != "unknown_action" {
		t.Fatalf("expected unknown_action ask_user, got %+v", got)
	}
}

func TestReviewStepsNeedsOptionContextWithoutRecentResults(t *testing.T) {
	v := NewVerifier(schemasFixture(), &stubResults{rs: nil})
	steps := []entity.Step{
		{Action: "book_travel_item", Params: map[string]interface{}{"item_type": "flight", "item_id": 2}},
	}
	got := v.ReviewSteps(context.Background(), "u1", "r1", steps)
	if got.Verdict != VerdictAskUser || got.Reason != "needs_option_context" {
		t.Fatalf("expected needs_option_context ask_user, got %+v", got)
	}
}

func TestReviewExecutionResultSurfacesStepErrors(t *testing.T) {
	results := map[string]interface{}{
		"step_1": map[string]interface{}{"status": "error", "error": "adapter timeout"},
	}
	msg := ReviewExecutionResult(results, nil)
	if msg == "" {
		t.Fatal("expected a surfaced error message")
	}
}

func TestReviewExecutionResultFlagsMissingSteps(t *testing.T) {
	wf, err := entity.NewWorkflowDefinition("wf1", "trip", "", []entity.Trigger{{Type: entity.TriggerManual}}, []entity.Step{
		{ID: "step_1", Service: "travel", Action: "search_flights"},
		{ID: "step_2", Service: "email", Action: "send_email"},
	}, nil)
	if err != nil {
		t.Fatalf("build workflow: %v", err)
	}
	results := map[string]interface{}{
		"step_1": map[string]interface{}{"status": "ok"},
	}
	msg := ReviewExecutionResult(results, wf)
	if msg == "" {
		t.Fatal("expected missing-step message for step_2")
	}
}

func TestReviewExecutionResultNilOnFullSuccess(t *testing.T) {
	wf, err := entity.NewWorkflowDefinition("wf1", "trip", "", []entity.Trigger{{Type: entity.TriggerManual}}, []entity.Step{
		{ID: "step_1", Service: "travel", Action: "search_flights"},
	}, nil)
	if err != nil {
		t.Fatalf("build workflow: %v", err)
	}
	results := map[string]interface{}{
		"step_1": map[string]interface{}{"status": "ok"},
	}
	msg := ReviewExecutionResult(results, wf)
	if msg != "" {
		t.Fatalf("expected no message on full success, got %q", msg)
	}
}
