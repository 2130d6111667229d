// Package plan implements the Plan Verifier (spec §4.I): deterministic
// fixups over an ad-hoc multi-step plan before it reaches the
// Dispatcher, grounded directly on
// original_source/Backend/orchestration/manager_verifier.py.
package plan

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/intent"
	"github.com/cipherroom/gateway/internal/domain/task"
)

// AutoSummaryToken is the sentinel a step's text/message parameter
// carries when it should be replaced with an LLM-generated summary of
// prior-step results at dispatch time (component J).
const AutoSummaryToken = "__AUTO_SUMMARY__"

// Verdict is the outcome of a plan review.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictAskUser Verdict = "ask_user"
)

// MissingField names one step's unfilled required parameter.
type MissingField struct {
	StepID string
	Param  string
}

// Review is the verifier's decision plus the (possibly reordered and
// fixed-up) step list.
type Review struct {
	Verdict          Verdict
	Reason           string
	AssistantMessage string
	Steps            []entity.Step
	MissingFields    []MissingField
}

// ResultSetLoader is satisfied by component H's ResultSetLoader; kept
// as its own alias so this package's public API doesn't force callers
// to import component H just to supply a result-set lookup.
type ResultSetLoader = task.ResultSetLoader

var aliasesByAction = map[string]map[string]string{
	"send_email":    {"body": "text", "message": "text", "recipient": "to", "email": "to"},
	"send_whatsapp": {"text": "message", "phone": "phone_number"},
}

// Verifier reviews ad-hoc step plans against the action-schema registry
// shared with the Intent Parser (component G) and the Adaptive Task
// Machine (component H).
type Verifier struct {
	schemas map[string]intent.ActionSchema
	results ResultSetLoader
}

func NewVerifier(schemas map[string]intent.ActionSchema, results ResultSetLoader) *Verifier {
	return &Verifier{schemas: schemas, results: results}
}

// ReviewSteps runs the full fixup-then-validate pipeline of spec §4.I
// over a plan: id normalization, parameter aliasing, type coercion,
// booking/delivery reordering, missing-slot detection, and — when a
// result-set loader is configured — the option-context check shared
// with component H.
func (v *Verifier) ReviewSteps(ctx context.Context, userID, roomID string, steps []entity.Step) Review {
	if len(steps) == 0 {
		return Review{Verdict: VerdictAskUser, Reason: "empty_plan", AssistantMessage: "I need a bit more detail to proceed."}
	}

	steps = cloneSteps(steps)
	steps = reorderBookingSteps(steps)
	steps = reorderDeliverySteps(steps)
	steps = ensureStepIDs(steps)

	var missing []MissingField
	for i := range steps {
		schema, ok := v.schemas[aliasedAction(steps[i].Action)]
		if !ok {
			return Review{
				Verdict:          VerdictAskUser,
				Reason:           "unknown_action",
				AssistantMessage: "I couldn't map one of the actions. Please rephrase with explicit steps.",
				Steps:            steps,
			}
		}

		params := normalizeAliases(steps[i].Params, steps[i].Action)
		params = coerceParamTypes(params, schema)
		steps[i].Params = params

		for name, spec := range schema.Params {
			if spec.Required && !hasValue(params, name) {
				missing = append(missing, MissingField{StepID: steps[i].ID, Param: name})
			}
		}
	}

	if len(missing) > 0 {
		return Review{
			Verdict:          VerdictAskUser,
			Reason:           "missing_param",
			AssistantMessage: missingParamMessage(missing[0].Param),
			Steps:            steps,
			MissingFields:    missing,
		}
	}

	if v.results != nil {
		for i := range steps {
			schema := v.schemas[aliasedAction(steps[i].Action)]
			if !task.NeedsOptionContext(schema, steps[i].Params) {
				continue
			}
			rs, err := v.results.Find(ctx, userID, roomID, steps[i].Action)
			if err != nil {
				continue
			}
			if rs != nil && len(rs.Options) > 0 {
				continue
			}
			return Review{
				Verdict:          VerdictAskUser,
				Reason:           "needs_option_context",
				AssistantMessage: task.FormatOptionDependencyPrompt(schema, steps[i].Action),
				Steps:            steps,
			}
		}
	}

	return Review{Verdict: VerdictApprove, Reason: "approved", Steps: steps}
}

// ReviewExecutionResult inspects a completed (or partially completed)
// workflow run and, if anything went wrong or a step's result is
// missing, returns a user-facing explanation; an empty string means
// nothing is worth surfacing.
func ReviewExecutionResult(results map[string]interface{}, wf *entity.WorkflowDefinition) string {
	var errs []string
	for key, v := range results {
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		if status, _ := m["status"].(string); status == "error" {
			errText, _ := m["error"].(string)
			if errText == "" {
				errText = "Unknown error"
			}
			errs = append(errs, fmt.Sprintf("%s: %s", key, errText))
			if len(errs) == 3 {
				break
			}
		}
	}
	if len(errs) > 0 {
		return "I hit a snag while running the workflow. " + strings.Join(errs, "; ")
	}

	if wf == nil {
		return ""
	}
	var missingSteps []string
	for _, s := range wf.Steps() {
		if _, ok := results[s.ID]; !ok {
			missingSteps = append(missingSteps, s.ID)
			if len(missingSteps) == 3 {
				break
			}
		}
	}
	if len(missingSteps) > 0 {
		return "I could not confirm results for every step. Missing results for: " +
			strings.Join(missingSteps, ", ") + ". Want me to retry or adjust?"
	}
	return ""
}

func aliasedAction(action string) string {
	if alias, ok := actionAliasTargets[action]; ok {
		return alias
	}
	return action
}

// actionAliasTargets mirrors the Intent Parser's legacy-action remap so
// a step authored under the old name still resolves in the schema
// registry (spec §4.G/§4.I consistency).
var actionAliasTargets = map[string]string{
	"send_message": "send_whatsapp",
}

func normalizeAliases(params map[string]interface{}, action string) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	aliases, ok := aliasesByAction[aliasedAction(action)]
	if !ok {
		return out
	}
	for source, target := range aliases {
		value, present := out[source]
		if !present {
			continue
		}
		if _, targetPresent := out[target]; targetPresent {
			continue
		}
		if isEmptyParam(value) {
			continue
		}
		out[target] = value
	}
	return out
}

func coerceParamTypes(params map[string]interface{}, schema intent.ActionSchema) map[string]interface{} {
	for name, spec := range schema.Params {
		value, present := params[name]
		if !present {
			continue
		}
		str, isString := value.(string)
		if !isString {
			continue
		}
		switch spec.Type {
		case "integer":
			if n, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
				params[name] = n
			}
		case "number":
			if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
				params[name] = f
			}
		}
	}
	return params
}

func reorderBookingSteps(steps []entity.Step) []entity.Step {
	if len(steps) < 2 {
		return steps
	}
	for idx := range steps {
		if steps[idx].Action != "book_travel_item" {
			continue
		}
		if hasValue(steps[idx].Params, "item_id") {
			continue
		}
		for later := idx + 1; later < len(steps); later++ {
			if strings.HasPrefix(steps[later].Action, "search_") {
				steps[idx], steps[later] = steps[later], steps[idx]
				break
			}
		}
	}
	return steps
}

var deliveryActions = map[string]bool{"send_email": true, "send_whatsapp": true, "send_message": true}

func reorderDeliverySteps(steps []entity.Step) []entity.Step {
	if len(steps) < 2 {
		return steps
	}
	var ordered, delayed []entity.Step
	for _, s := range steps {
		if deliveryActions[s.Action] && deliveryNeedsResults(s) {
			delayed = append(delayed, s)
		} else {
			ordered = append(ordered, s)
		}
	}
	if len(delayed) == 0 {
		return steps
	}
	return append(ordered, delayed...)
}

func deliveryNeedsResults(s entity.Step) bool {
	bodyParam := "message"
	if s.Action == "send_email" {
		bodyParam = "text"
	}
	raw, present := s.Params[bodyParam]
	if !present {
		return true
	}
	text, _ := raw.(string)
	if text == "" || text == AutoSummaryToken {
		return true
	}
	lowered := strings.ToLower(text)
	for _, token := range []string{"results", "summary", "options", "details"} {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}

func ensureStepIDs(steps []entity.Step) []entity.Step {
	seen := make(map[string]bool, len(steps))
	for i := range steps {
		id := steps[i].ID
		if id == "" {
			id = fmt.Sprintf("step_%d", i+1)
		}
		base, counter := id, 1
		for seen[id] {
			counter++
			id = fmt.Sprintf("%s_%d", base, counter)
		}
		steps[i].ID = id
		seen[id] = true
	}
	return steps
}

func cloneSteps(in []entity.Step) []entity.Step {
	out := make([]entity.Step, len(in))
	for i, s := range in {
		params := make(map[string]interface{}, len(s.Params))
		for k, v := range s.Params {
			params[k] = v
		}
		s.Params = params
		out[i] = s
	}
	return out
}

func hasValue(params map[string]interface{}, name string) bool {
	v, ok := params[name]
	if !ok {
		return false
	}
	return !isEmptyParam(v)
}

func isEmptyParam(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	}
	return false
}

var missingParamPrompts = map[string]string{
	"check_in_date":  " (YYYY-MM-DD)",
	"check_out_date": " (YYYY-MM-DD)",
	"travel_date":    " (YYYY-MM-DD)",
	"departure_date": " (YYYY-MM-DD)",
	"start_date":     " (YYYY-MM-DD)",
	"end_date":       " (YYYY-MM-DD)",
	"time":           " (e.g., 15:00)",
}

func missingParamMessage(param string) string {
	label := strings.ReplaceAll(param, "_", " ")
	suffix := missingParamPrompts[param]
	if suffix == "" && strings.Contains(param, "date") {
		suffix = " (YYYY-MM-DD)"
	} else if suffix == "" && strings.Contains(param, "time") {
		suffix = " (e.g., 15:00)"
	}
	return fmt.Sprintf("I still need %s%s to proceed.", label, suffix)
}
