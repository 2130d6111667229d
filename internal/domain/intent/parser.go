// Package intent implements the Intent Parser component (spec §4.G):
// LLM-driven JSON extraction over a user message, with deterministic
// slot-schema validation layered on top. Grounded directly on
// original_source/Backend/orchestration/intent_parser.py.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// lowConfidenceThreshold mirrors the Python parser's
// _LOW_CONFIDENCE_THRESHOLD: below this, or on a general_chat verdict,
// the deterministic email fallback gets a chance to override the LLM.
const lowConfidenceThreshold = 0.45

// SupportedActions enumerates every action the parser will accept from
// the LLM; anything else degrades to general_chat at half confidence.
var SupportedActions = map[string]bool{
	"find_jobs": true, "schedule_meeting": true, "check_payments": true,
	"search_info": true, "general_chat": true, "get_weather": true,
	"search_gif": true, "convert_currency": true, "set_reminder": true,
	"send_email": true, "send_whatsapp": true, "create_invoice": true,
	"create_workflow": true, "search_buses": true, "search_hotels": true,
	"search_flights": true, "search_transfers": true, "search_events": true,
	"create_itinerary": true, "view_itinerary": true, "add_to_itinerary": true,
	"book_travel_item": true, "check_quotas": true,
}

// actionSchemaAliases normalizes a legacy action name onto its current
// one before slot-schema lookup.
var actionSchemaAliases = map[string]string{
	"send_message": "send_whatsapp",
}

// ParamSpec describes one action parameter's slot-fill requirement.
// Type is optional and only consulted by the Plan Verifier's type
// coercion step (component I); the empty string means "no coercion".
type ParamSpec struct {
	Required bool
	Type     string // "", "integer", or "number"
}

// ActionSchema is the required-parameter list for one action, used to
// compute missing_slots deterministically rather than trusting the LLM's
// own accounting (spec §4.G).
type ActionSchema struct {
	Service string
	Params  map[string]ParamSpec
}

// ModelClient generates JSON-mode completions; satisfied by the shared
// LLM router.
type ModelClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Context carries optional grounding the caller already has on hand.
type Context struct {
	History string
	Extra   map[string]interface{}
}

// Parser parses a natural-language message into a structured Intent.
type Parser struct {
	llm     ModelClient
	schemas map[string]ActionSchema
}

func NewParser(llm ModelClient, schemas map[string]ActionSchema) *Parser {
	return &Parser{llm: llm, schemas: schemas}
}

// rawIntent is the wire shape the LLM is asked to emit.
type rawIntent struct {
	Action             string                 `json:"action"`
	Confidence         float64                `json:"confidence"`
	Parameters         map[string]interface{} `json:"parameters"`
	MissingSlots       []string               `json:"missing_slots"`
	ClarifyingQuestion string                 `json:"clarifying_question"`
	RawQuery           string                 `json:"raw_query"`
}

// Parse runs the LLM extraction, deterministic validation, and the
// low-confidence rule-based email fallback, in that order (spec §4.G).
func (p *Parser) Parse(ctx context.Context, message string, userCtx Context) (*entity.Intent, error) {
	systemPrompt := buildSystemPrompt()
	userPrompt := buildUserPrompt(message, userCtx)

	raw, err := p.llm.Generate(ctx, systemPrompt, userPrompt)
	intent, parseErr := func() (*entity.Intent, error) {
		if err != nil {
			return nil, err
		}
		ri, jsonErr := extractIntent(raw)
		if jsonErr != nil {
			return nil, jsonErr
		}
		return p.validateAndBuild(ri, message)
	}()

	if parseErr != nil {
		if fallback := p.ruleBasedEmailIntent(message); fallback != nil {
			return fallback, nil
		}
		return entity.NewIntent("general_chat", nil, 0.3, nil, "", message)
	}

	if intent.Confidence < lowConfidenceThreshold || intent.Action == "general_chat" {
		if fallback := p.ruleBasedEmailIntent(message); fallback != nil {
			return fallback, nil
		}
	}
	return intent, nil
}

func (p *Parser) validateAndBuild(ri rawIntent, originalMessage string) (*entity.Intent, error) {
	action := ri.Action
	confidence := ri.Confidence
	if action == "" {
		action = "general_chat"
		confidence = 0.0
	}
	if action == "send_message" {
		action = "send_whatsapp"
	}
	if !SupportedActions[action] {
		action = "general_chat"
		confidence *= 0.5
	}

	rawQuery := ri.RawQuery
	if rawQuery == "" {
		rawQuery = originalMessage
	}

	missingSlots, clarifying := p.computeMissingSlots(action, ri.Parameters)
	if len(ri.MissingSlots) > 0 {
		missingSlots = ri.MissingSlots
		clarifying = ri.ClarifyingQuestion
	}
	if clarifying == "" && len(missingSlots) > 0 {
		clarifying = missingParamMessage(missingSlots[0])
	}

	return entity.NewIntent(action, ri.Parameters, confidence, missingSlots, clarifying, rawQuery)
}

func (p *Parser) computeMissingSlots(action string, params map[string]interface{}) ([]string, string) {
	if action == "" || action == "general_chat" {
		return nil, ""
	}
	lookup := action
	if alias, ok := actionSchemaAliases[action]; ok {
		lookup = alias
	}
	schema, ok := p.schemas[lookup]
	if !ok {
		return nil, ""
	}

	var missing []string
	for name, spec := range schema.Params {
		if !spec.Required {
			continue
		}
		if _, present := params[name]; !present {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil, ""
	}
	return missing, missingParamMessage(missing[0])
}

var missingParamPrompts = map[string]string{
	"departure_date": "What departure date should I use? (YYYY-MM-DD)",
	"travel_date":    "What travel date should I use? (YYYY-MM-DD)",
	"check_in_date":  "What is the check-in date? (YYYY-MM-DD)",
	"check_out_date": "What is the check-out date? (YYYY-MM-DD)",
	"origin":         "What is the origin city or airport code?",
	"destination":    "What is the destination city or airport code?",
	"location":       "Which city should I search in?",
	"item_id":        "Which option should I book? You can say things like 'book flight 1'.",
	"to":             "Which email address should I send this to?",
	"text":           "What should the email say?",
	"message":        "What should the message say?",
	"content":        "What should the reminder say?",
	"time":           "When should I set the reminder?",
	"phone_number":   "Which phone number should I use?",
}

func missingParamMessage(param string) string {
	if msg, ok := missingParamPrompts[param]; ok {
		return msg
	}
	return fmt.Sprintf("I need the %s to proceed.", param)
}

var (
	sendVerbRe  = regexp.MustCompile(`(?i)\b(send|email|mail)\b`)
	emailAddrRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	subjectRe   = regexp.MustCompile(`(?i)\bsubject\b[:\-]?\s*"?([^"\n]+)`)
	bodyRe      = regexp.MustCompile(`(?i)\b(?:saying|message|msg|text|body)\b[:\-]?\s*"?(.+)`)
	quotedRe    = regexp.MustCompile(`"([^"\n]+)"`)
)

// ruleBasedEmailIntent is a deterministic fallback for the single most
// common failure mode of low-confidence LLM extraction: a plain
// "email x@y.com saying ..." request.
func (p *Parser) ruleBasedEmailIntent(message string) *entity.Intent {
	if message == "" || !sendVerbRe.MatchString(message) {
		return nil
	}
	emailMatch := emailAddrRe.FindString(message)
	if emailMatch == "" {
		return nil
	}

	params := map[string]interface{}{"to": emailMatch}
	if m := subjectRe.FindStringSubmatch(message); len(m) > 1 {
		params["subject"] = strings.Trim(strings.TrimSpace(m[1]), `"`)
	}

	body := ""
	if m := bodyRe.FindStringSubmatch(message); len(m) > 1 {
		body = strings.Trim(strings.TrimSpace(m[1]), `"`)
	}
	if body == "" {
		if m := quotedRe.FindStringSubmatch(message); len(m) > 1 {
			body = strings.TrimSpace(m[1])
		}
	}
	if body != "" {
		params["text"] = body
	}

	intent, err := entity.NewIntent("send_email", params, 0.85, nil, "", message)
	if err != nil {
		return nil
	}
	return intent
}

func extractIntent(raw string) (rawIntent, error) {
	var ri rawIntent
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ri, fmt.Errorf("intent: no JSON object found in LLM response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &ri); err != nil {
		return ri, fmt.Errorf("intent: invalid JSON from LLM: %w", err)
	}
	return ri, nil
}

func buildUserPrompt(message string, userCtx Context) string {
	var sb strings.Builder
	if userCtx.History != "" {
		sb.WriteString("Conversation history (most recent last):\n")
		sb.WriteString(userCtx.History)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "User message: %q", message)
	if len(userCtx.Extra) > 0 {
		if extra, err := json.Marshal(userCtx.Extra); err == nil {
			sb.WriteString("\n\nUser context: ")
			sb.Write(extra)
		}
	}
	return sb.String()
}

func buildSystemPrompt() string {
	return systemPrompt
}
