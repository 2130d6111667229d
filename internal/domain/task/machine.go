// Package task implements the Adaptive Task Machine (spec §4.H): the
// per-(user, room) ephemeral state that accumulates slot values across a
// multi-turn conversation until an intent is ready to dispatch. Grounded
// directly on original_source/Backend/orchestration/adaptive_task.py.
package task

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/intent"
)

// optionContextSlot is the synthetic missing-slot name injected when an
// action needs an option-id but no recent result set of the matching
// action exists to resolve it against.
const optionContextSlot = "option_context"

// actionSwitchThreshold mirrors the Python module's judgment call: a
// follow-up utterance only discards the in-flight task when the parser
// is confident it describes a different action.
const actionSwitchThreshold = 0.6

// summaryParamCandidates lists the parameter names the "send it"
// shorthand is allowed to fill, tried in order.
var summaryParamCandidates = []string{"text", "message", "content"}

// optionParamHints names parameters that, when their value looks like a
// small integer, are almost certainly a reference into a prior result
// set rather than free text (e.g. "book item 2").
var optionParamHints = map[string]bool{"item_id": true, "option": true, "selection": true}

var summaryShorthandRe = regexp.MustCompile(`(?i)\b(send|email|mail)\b.*\b(it|that|them|results?|summary|details)\b`)

// ResultSetLoader resolves the most recently cached search result set
// for a (user, room, action) triple, used to decide whether an
// option-id parameter can be resolved without re-running a search.
type ResultSetLoader interface {
	Find(ctx context.Context, userID, roomID, action string) (*entity.ResultSet, error)
}

// SummaryProvider returns the most recent assistant-authored summary
// text for a room (component F's rolling summary), used by the
// "send/email it" shorthand.
type SummaryProvider interface {
	LastSummary(ctx context.Context, roomID string) (string, error)
}

// DismissalRecorder records why an in-flight task was abandoned, for
// the Proactive Engine's de-dup accounting (spec §4.M).
type DismissalRecorder interface {
	RecordDismissal(ctx context.Context, userID, roomID, reason string) error
}

// Machine drives the task lifecycle against the slot schema shared with
// the Intent Parser (component G), so a required-param change in one
// registry never drifts out of sync with the other.
type Machine struct {
	schemas map[string]intent.ActionSchema
	results ResultSetLoader
	summary SummaryProvider
	dismiss DismissalRecorder
}

func NewMachine(schemas map[string]intent.ActionSchema, results ResultSetLoader, summary SummaryProvider, dismiss DismissalRecorder) *Machine {
	return &Machine{schemas: schemas, results: results, summary: summary, dismiss: dismiss}
}

// Init starts a fresh task from a just-parsed intent.
func (m *Machine) Init(userID, roomID string, in *entity.Intent, nowUnix int64) *entity.TaskState {
	return entity.NewTaskState(userID, roomID, in, nowUnix)
}

// Update folds a follow-up utterance's parsed intent into an in-flight
// task. It reports discard=true when the follow-up confidently names a
// different action, in which case the caller should treat the task as
// abandoned (spec §4.H).
func (m *Machine) Update(task *entity.TaskState, followUp *entity.Intent) (discard bool) {
	if followUp.Action != "" && followUp.Action != task.Action && followUp.Confidence >= actionSwitchThreshold {
		return true
	}

	values := make(map[string]interface{}, len(followUp.Parameters))
	for k, v := range followUp.Parameters {
		if isEmptyValue(v) {
			continue
		}
		values[k] = v
	}
	task.Fill(values)
	return false
}

// ElevateForOptionContext checks whether a now-ready task names an
// option-id parameter that can only be resolved against a recent result
// set of the matching action; if none exists it re-opens the task with
// the synthetic option_context slot and a prompt to search first.
func (m *Machine) ElevateForOptionContext(ctx context.Context, task *entity.TaskState) error {
	if !task.IsReady() {
		return nil
	}
	schema, ok := m.schemas[task.Action]
	if !ok || !m.needsOptionContext(schema, task.Parameters) {
		return nil
	}

	rs, err := m.results.Find(ctx, task.UserID, task.RoomID, task.Action)
	if err != nil {
		return err
	}
	if rs != nil && len(rs.Options) > 0 {
		return nil
	}

	task.MissingSlots = append(task.MissingSlots, optionContextSlot)
	task.Status = entity.TaskAwaitingSlots
	task.LastPrompt = FormatOptionDependencyPrompt(schema, task.Action)
	return nil
}

func (m *Machine) needsOptionContext(schema intent.ActionSchema, params map[string]interface{}) bool {
	return NeedsOptionContext(schema, params)
}

// NeedsOptionContext reports whether a required parameter looks like a
// reference into a prior result set (e.g. "book item 2") rather than
// free text supplied directly by the user. Exported so the Plan
// Verifier (component I) can run the same check against a standalone
// step, per spec §4.I.6.
func NeedsOptionContext(schema intent.ActionSchema, params map[string]interface{}) bool {
	for name, spec := range schema.Params {
		if !spec.Required {
			continue
		}
		value, present := params[name]
		if !present {
			continue
		}
		if isOptionSelection(name, value) {
			return true
		}
	}
	return false
}

func isOptionSelection(paramName string, value interface{}) bool {
	if !optionParamHints[paramName] && !strings.HasSuffix(paramName, "_id") {
		return false
	}
	switch v := value.(type) {
	case int, int64, float64:
		return true
	case string:
		_, err := strconv.Atoi(strings.TrimSpace(v))
		return err == nil
	}
	return false
}

// FormatOptionDependencyPrompt builds the user-facing prompt asking for
// a search to be run before an option-id parameter can be resolved.
func FormatOptionDependencyPrompt(schema intent.ActionSchema, action string) string {
	label := strings.ReplaceAll(action, "_", " ")
	if schema.Service != "" {
		return "I need a recent list of " + schema.Service + " options before I can pick an option number. What should I search for first?"
	}
	return "I need a recent list of options before I can pick an option number for " + label + ". What should I search for first?"
}

// ApplySummaryShorthand injects the room's most recent assistant
// summary as the task's body/text parameter when the raw utterance
// matches a pattern like "send it" or "email them the summary" and the
// action has an unfilled summary-shaped required parameter.
func (m *Machine) ApplySummaryShorthand(ctx context.Context, task *entity.TaskState, rawMessage string) error {
	if !shouldUseSummary(rawMessage) {
		return nil
	}
	schema, ok := m.schemas[task.Action]
	if !ok {
		return nil
	}

	for _, candidate := range summaryParamCandidates {
		spec, required := schema.Params[candidate]
		if !required || !spec.Required {
			continue
		}
		if _, filled := task.Parameters[candidate]; filled {
			continue
		}
		summary, err := m.summary.LastSummary(ctx, task.RoomID)
		if err != nil || summary == "" {
			return err
		}
		task.Fill(map[string]interface{}{candidate: summary})
		return nil
	}
	return nil
}

func shouldUseSummary(message string) bool {
	if message == "" {
		return false
	}
	lowered := strings.ToLower(message)
	if !strings.Contains(lowered, "send") && !strings.Contains(lowered, "email") && !strings.Contains(lowered, "mail") {
		return false
	}
	return summaryShorthandRe.MatchString(lowered)
}

// Dismiss records why an in-flight task was abandoned, so the Proactive
// Engine does not immediately re-nudge about the same abandoned task. It
// does not delete or reset the task state itself.
func (m *Machine) Dismiss(ctx context.Context, task *entity.TaskState, reason string) error {
	if m.dismiss == nil {
		return nil
	}
	return m.dismiss.RecordDismissal(ctx, task.UserID, task.RoomID, reason)
}

func isEmptyValue(v interface{}) bool {
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
