// Package dispatch implements the Dispatcher (spec §4.J): the uniform
// execute(step, context) -> result entry point that routes a verified
// step to an external-service adapter, grounded directly on
// original_source/Backend/orchestration/mcp_router.py and
// base_connector.py.
package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/plan"
)

// Uniform result status values, matching the Python router's contract.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// actionAliases mirrors the Intent Parser's legacy-action remap
// (component G) so a step authored under the old name still resolves
// to the right adapter and delivery-summary handling.
var actionAliases = map[string]string{
	"send_message": "send_whatsapp",
}

// Adapter executes one (service, action) capability against resolved
// parameters (component O).
type Adapter interface {
	Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

// Registry maps a (service, action) pair to the adapter that serves
// it, backed by the External Adapters catalog (component O).
type Registry interface {
	Lookup(service, action string) (Adapter, bool)
}

// SummaryGenerator produces a short bullet summary of accumulated step
// results, used to fill the auto-summary sentinel in delivery steps.
type SummaryGenerator interface {
	Generate(ctx context.Context, results map[string]map[string]interface{}) (string, error)
}

// ExecutionContext carries everything a step's template expressions
// and policy checks may need (spec §4.J).
type ExecutionContext struct {
	UserID  string
	RoomID  string
	Policy  *entity.Policy
	Results map[string]map[string]interface{}
}

// Dispatcher routes verified steps to their adapters.
type Dispatcher struct {
	registry Registry
	summary  SummaryGenerator
}

func NewDispatcher(registry Registry, summary SummaryGenerator) *Dispatcher {
	return &Dispatcher{registry: registry, summary: summary}
}

// Execute runs one step. It never returns a Go error for an expected
// failure mode (unsupported action, policy violation, adapter error):
// those surface as {"status": "error", "error": "..."} in the result
// map, matching the Python router's contract.
func (d *Dispatcher) Execute(ctx context.Context, step entity.Step, execCtx *ExecutionContext) map[string]interface{} {
	action := aliasedAction(step.Action)
	adapter, ok := d.registry.Lookup(step.Service, action)
	if !ok {
		return errorResult("unsupported")
	}

	params := resolveParams(step.Params, execCtx)

	if isMoneyMoving(step) {
		if violation := enforcePolicy(params, execCtx.Policy); violation != "" {
			return errorResult(violation)
		}
	}

	if isDeliveryAction(action) {
		d.substituteAutoSummary(ctx, action, params, execCtx)
	}

	data, err := adapter.Execute(ctx, params)
	if err != nil {
		return errorResult(err.Error())
	}
	return map[string]interface{}{"status": StatusSuccess, "data": data}
}

func aliasedAction(action string) string {
	if alias, ok := actionAliases[action]; ok {
		return alias
	}
	return action
}

func isMoneyMoving(step entity.Step) bool {
	return step.Service == "payments" && aliasedAction(step.Action) == "withdraw"
}

func enforcePolicy(params map[string]interface{}, policy *entity.Policy) string {
	if policy == nil {
		return "this workflow has no payment policy configured"
	}
	if raw, ok := params["amount"]; ok {
		if amount, ok := toFloat(raw); ok && policy.MaxWithdrawAmount > 0 && amount > policy.MaxWithdrawAmount {
			return fmt.Sprintf("amount %.2f exceeds the workflow's maximum of %.2f", amount, policy.MaxWithdrawAmount)
		}
	}
	if raw, ok := params["phone_number"]; ok {
		if phone, ok := raw.(string); ok && len(policy.AllowedPhoneNumbers) > 0 {
			allowed := false
			for _, p := range policy.AllowedPhoneNumbers {
				if p == phone {
					allowed = true
					break
				}
			}
			if !allowed {
				return fmt.Sprintf("phone number %s is not on the workflow's allowed list", phone)
			}
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func isDeliveryAction(action string) bool {
	return action == "send_email" || action == "send_whatsapp"
}

func (d *Dispatcher) substituteAutoSummary(ctx context.Context, action string, params map[string]interface{}, execCtx *ExecutionContext) {
	bodyParam := "message"
	if action == "send_email" {
		bodyParam = "text"
	}
	raw, ok := params[bodyParam].(string)
	if !ok || raw != plan.AutoSummaryToken {
		return
	}

	summary := ""
	if d.summary != nil {
		if s, err := d.summary.Generate(ctx, execCtx.Results); err == nil && s != "" {
			summary = s
		}
	}
	if summary == "" {
		summary = deterministicSummary(execCtx.Results)
	}
	params[bodyParam] = summary
}

func deterministicSummary(results map[string]map[string]interface{}) string {
	if len(results) == 0 {
		return "No results to summarize."
	}
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		status, _ := results[id]["status"].(string)
		if status == "" {
			status = "unknown"
		}
		sb.WriteString("- ")
		sb.WriteString(id)
		sb.WriteString(": ")
		sb.WriteString(status)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

var (
	placeholderRe = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)
	wholeExprRe   = regexp.MustCompile(`^\{\{\s*([^}]+?)\s*\}\}$`)
)

// resolveParams resolves every `{{path.to.value}}` template expression
// in a step's parameters against the execution context. A parameter
// value that is exactly one expression returns the typed value found
// at that path; a value with surrounding text is stringified (spec
// §4.J).
func resolveParams(params map[string]interface{}, execCtx *ExecutionContext) map[string]interface{} {
	root := map[string]interface{}{
		"user_id": execCtx.UserID,
		"room_id": execCtx.RoomID,
		"results": resultsToInterfaceMap(execCtx.Results),
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = resolveValue(v, root)
	}
	return out
}

func resolveValue(v interface{}, root map[string]interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return resolveString(x, root)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, vv := range x {
			out[k] = resolveValue(vv, root)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, vv := range x {
			out[i] = resolveValue(vv, root)
		}
		return out
	default:
		return v
	}
}

func resolveString(s string, root map[string]interface{}) interface{} {
	if m := wholeExprRe.FindStringSubmatch(s); m != nil {
		if val, ok := pathLookup(m[1], root); ok {
			return val
		}
		return ""
	}
	if !placeholderRe.MatchString(s) {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		expr := placeholderRe.FindStringSubmatch(match)[1]
		val, ok := pathLookup(expr, root)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})
}

func pathLookup(path string, root map[string]interface{}) (interface{}, bool) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	var cur interface{} = root
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func resultsToInterfaceMap(results map[string]map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(results))
	for k, v := range results {
		inner := make(map[string]interface{}, len(v))
		for kk, vv := range v {
			inner[kk] = vv
		}
		out[k] = inner
	}
	return out
}

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"status": StatusError, "error": msg}
}
