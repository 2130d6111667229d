package workflow

import "sort"

// Compaction limits for the result context persisted alongside a
// WorkflowExecution (spec §4.K): a long-running workflow's step
// results must not grow the persisted row without bound, so the
// context is trimmed before each save, not just once at the end. This
// is a distinct concern from conversational compaction, which
// summarizes message history through an LLM — there is no dialogue
// here to summarize, only nested data to bound.
const (
	maxListItems    = 5
	maxDictKeys     = 50
	maxStringLength = 2000
	maxDepth        = 4
)

// compactContext returns a depth- and size-bounded copy of a result
// context, trimming lists, maps, and strings that exceed the limits.
func compactContext(ctx map[string]interface{}) map[string]interface{} {
	out, _ := compactValue(ctx, 0).(map[string]interface{})
	return out
}

func compactValue(v interface{}, depth int) interface{} {
	if depth >= maxDepth {
		return truncatedMarker(v)
	}
	switch x := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > maxDictKeys {
			keys = keys[:maxDictKeys]
		}
		out := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			out[k] = compactValue(x[k], depth+1)
		}
		return out
	case []interface{}:
		n := len(x)
		if n > maxListItems {
			n = maxListItems
		}
		out := make([]interface{}, n)
		for i := 0; i < n; i++ {
			out[i] = compactValue(x[i], depth+1)
		}
		return out
	case string:
		if len(x) > maxStringLength {
			return x[:maxStringLength] + "...(truncated)"
		}
		return x
	default:
		return x
	}
}

func truncatedMarker(v interface{}) interface{} {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return "...(depth truncated)"
	default:
		return v
	}
}
