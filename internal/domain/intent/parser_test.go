package intent

import (
	"context"
	"testing"
)

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.response, s.err
}

func TestParseValidResponseComputesMissingSlots(t *testing.T) {
	llm := &stubLLM{response: `{"action": "search_hotels", "confidence": 0.9, "parameters": {"location": "Nairobi"}, "raw_query": "hotels in Nairobi"}`}
	p := NewParser(llm, DefaultSchemas())

	got, err := p.Parse(context.Background(), "hotels in Nairobi", Context{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Action != "search_hotels" {
		t.Fatalf("unexpected action: %s", got.Action)
	}
	if got.IsComplete() {
		t.Fatal("expected missing check_in_date/check_out_date to leave the intent incomplete")
	}
	if got.ClarifyingQuestion == "" {
		t.Fatal("expected a clarifying question for the missing slot")
	}
}

func TestParseUnsupportedActionDegradesToGeneralChat(t *testing.T) {
	llm := &stubLLM{response: `{"action": "launch_missiles", "confidence": 0.9, "raw_query": "x"}`}
	p := NewParser(llm, DefaultSchemas())

	got, err := p.Parse(context.Background(), "x", Context{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Action != "general_chat" {
		t.Fatalf("expected unsupported action to degrade to general_chat, got %s", got.Action)
	}
	if got.Confidence >= 0.9 {
		t.Fatalf("expected confidence to be halved, got %f", got.Confidence)
	}
}

func TestParseMalformedJSONFallsBackToRuleBasedEmail(t *testing.T) {
	llm := &stubLLM{response: "not json"}
	p := NewParser(llm, DefaultSchemas())

	got, err := p.Parse(context.Background(), `email alex@example.com saying hi there`, Context{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Action != "send_email" {
		t.Fatalf("expected rule-based email fallback, got action %s", got.Action)
	}
	if got.Parameters["to"] != "alex@example.com" {
		t.Fatalf("expected extracted email address, got %v", got.Parameters["to"])
	}
}

func TestParseMalformedJSONWithNoEmailFallsBackToGeneralChat(t *testing.T) {
	llm := &stubLLM{response: "not json"}
	p := NewParser(llm, DefaultSchemas())

	got, err := p.Parse(context.Background(), "hello there", Context{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Action != "general_chat" {
		t.Fatalf("expected general_chat fallback, got %s", got.Action)
	}
}

func TestParseLowConfidencePrefersRuleBasedEmail(t *testing.T) {
	llm := &stubLLM{response: `{"action": "general_chat", "confidence": 0.2, "raw_query": "x"}`}
	p := NewParser(llm, DefaultSchemas())

	got, err := p.Parse(context.Background(), "email bob@example.com saying thanks", Context{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Action != "send_email" {
		t.Fatalf("expected low-confidence general_chat to be overridden by rule-based email, got %s", got.Action)
	}
}
