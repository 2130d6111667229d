package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/plan"
)

type stubAdapter struct {
	result map[string]interface{}
	err    error
	got    map[string]interface{}
}

func (a *stubAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	a.got = params
	return a.result, a.err
}

type stubRegistry struct {
	adapters map[string]Adapter
}

func (r *stubRegistry) Lookup(service, action string) (Adapter, bool) {
	a, ok := r.adapters[service+"."+action]
	return a, ok
}

type stubSummarizer struct {
	text string
	err  error
}

func (s *stubSummarizer) Generate(ctx context.Context, results map[string]map[string]interface{}) (string, error) {
	return s.text, s.err
}

func TestExecuteUnsupportedAction(t *testing.T) {
	d := NewDispatcher(&stubRegistry{adapters: map[string]Adapter{}}, nil)
	got := d.Execute(context.Background(), entity.Step{Service: "weather", Action: "get_weather"}, &ExecutionContext{})
	if got["status"] != StatusError || got["error"] != "unsupported" {
		t.Fatalf("expected unsupported error, got %+v", got)
	}
}

func TestExecuteResolvesTemplateExpressions(t *testing.T) {
	adapter := &stubAdapter{result: map[string]interface{}{"sent": true}}
	registry := &stubRegistry{adapters: map[string]Adapter{"email.send_email": adapter}}
	d := NewDispatcher(registry, nil)

	execCtx := &ExecutionContext{
		UserID: "u1", RoomID: "r1",
		Results: map[string]map[string]interface{}{
			"step_1": {"status": "success", "data": map[string]interface{}{"city": "Nairobi"}},
		},
	}
	step := entity.Step{
		Service: "email", Action: "send_email",
		Params: map[string]interface{}{
			"to":   "a@b.com",
			"text": "Weather in {{results.step_1.data.city}}",
		},
	}
	got := d.Execute(context.Background(), step, execCtx)
	if got["status"] != StatusSuccess {
		t.Fatalf("expected success, got %+v", got)
	}
	if adapter.got["text"] != "Weather in Nairobi" {
		t.Fatalf("expected resolved template in text, got %v", adapter.got["text"])
	}
}

func TestExecuteSingleExpressionReturnsTypedValue(t *testing.T) {
	adapter := &stubAdapter{result: map[string]interface{}{"ok": true}}
	registry := &stubRegistry{adapters: map[string]Adapter{"travel.book_travel_item": adapter}}
	d := NewDispatcher(registry, nil)

	execCtx := &ExecutionContext{
		Results: map[string]map[string]interface{}{
			"step_1": {"status": "success", "data": map[string]interface{}{"item_id": 7}},
		},
	}
	step := entity.Step{
		Service: "travel", Action: "book_travel_item",
		Params: map[string]interface{}{"item_id": "{{results.step_1.data.item_id}}"},
	}
	d.Execute(context.Background(), step, execCtx)
	if adapter.got["item_id"] != 7 {
		t.Fatalf("expected typed value 7 preserved, got %#v", adapter.got["item_id"])
	}
}

func TestExecuteEnforcesPaymentPolicyViolation(t *testing.T) {
	adapter := &stubAdapter{result: map[string]interface{}{"ok": true}}
	registry := &stubRegistry{adapters: map[string]Adapter{"payments.withdraw": adapter}}
	d := NewDispatcher(registry, nil)

	execCtx := &ExecutionContext{
		Policy: &entity.Policy{AllowedPhoneNumbers: []string{"+254700000000"}, MaxWithdrawAmount: 1000},
	}
	step := entity.Step{
		Service: "payments", Action: "withdraw",
		Params: map[string]interface{}{"amount": "5000", "phone_number": "+254700000000"},
	}
	got := d.Execute(context.Background(), step, execCtx)
	if got["status"] != StatusError {
		t.Fatalf("expected policy violation error, got %+v", got)
	}
}

func TestExecuteAllowsPaymentWithinPolicy(t *testing.T) {
	adapter := &stubAdapter{result: map[string]interface{}{"ok": true}}
	registry := &stubRegistry{adapters: map[string]Adapter{"payments.withdraw": adapter}}
	d := NewDispatcher(registry, nil)

	execCtx := &ExecutionContext{
		Policy: &entity.Policy{AllowedPhoneNumbers: []string{"+254700000000"}, MaxWithdrawAmount: 1000},
	}
	step := entity.Step{
		Service: "payments", Action: "withdraw",
		Params: map[string]interface{}{"amount": "500", "phone_number": "+254700000000"},
	}
	got := d.Execute(context.Background(), step, execCtx)
	if got["status"] != StatusSuccess {
		t.Fatalf("expected success within policy, got %+v", got)
	}
}

func TestExecuteSubstitutesAutoSummaryWithLLM(t *testing.T) {
	adapter := &stubAdapter{result: map[string]interface{}{"sent": true}}
	registry := &stubRegistry{adapters: map[string]Adapter{"email.send_email": adapter}}
	d := NewDispatcher(registry, &stubSummarizer{text: "- flights found: 3 options"})

	execCtx := &ExecutionContext{Results: map[string]map[string]interface{}{
		"step_1": {"status": "success"},
	}}
	step := entity.Step{
		Service: "email", Action: "send_email",
		Params: map[string]interface{}{"to": "a@b.com", "text": plan.AutoSummaryToken},
	}
	d.Execute(context.Background(), step, execCtx)
	if adapter.got["text"] != "- flights found: 3 options" {
		t.Fatalf("expected LLM summary substituted, got %v", adapter.got["text"])
	}
}

func TestExecuteFallsBackToDeterministicSummaryOnLLMFailure(t *testing.T) {
	adapter := &stubAdapter{result: map[string]interface{}{"sent": true}}
	registry := &stubRegistry{adapters: map[string]Adapter{"whatsapp.send_whatsapp": adapter}}
	d := NewDispatcher(registry, &stubSummarizer{err: errors.New("llm down")})

	execCtx := &ExecutionContext{Results: map[string]map[string]interface{}{
		"step_1": {"status": "success"},
	}}
	step := entity.Step{
		Service: "whatsapp", Action: "send_whatsapp",
		Params: map[string]interface{}{"phone_number": "+254700000000", "message": plan.AutoSummaryToken},
	}
	d.Execute(context.Background(), step, execCtx)
	if adapter.got["message"] != "- step_1: success" {
		t.Fatalf("expected deterministic fallback summary, got %v", adapter.got["message"])
	}
}

func TestExecuteLegacySendMessageAliasesToWhatsapp(t *testing.T) {
	adapter := &stubAdapter{result: map[string]interface{}{"sent": true}}
	registry := &stubRegistry{adapters: map[string]Adapter{"whatsapp.send_whatsapp": adapter}}
	d := NewDispatcher(registry, nil)

	step := entity.Step{Service: "whatsapp", Action: "send_message", Params: map[string]interface{}{"message": "hi"}}
	got := d.Execute(context.Background(), step, &ExecutionContext{})
	if got["status"] != StatusSuccess {
		t.Fatalf("expected legacy send_message to alias to send_whatsapp adapter, got %+v", got)
	}
}
