package workflow

import "testing"

func TestCompactContextTrimsOversizedList(t *testing.T) {
	items := make([]interface{}, 10)
	for i := range items {
		items[i] = i
	}
	got := compactContext(map[string]interface{}{"step_1": map[string]interface{}{"items": items}})
	list := got["step_1"].(map[string]interface{})["items"].([]interface{})
	if len(list) != maxListItems {
		t.Fatalf("expected list trimmed to %d, got %d", maxListItems, len(list))
	}
}

func TestCompactContextTrimsLongString(t *testing.T) {
	long := make([]byte, maxStringLength+500)
	for i := range long {
		long[i] = 'x'
	}
	got := compactContext(map[string]interface{}{"step_1": map[string]interface{}{"text": string(long)}})
	text := got["step_1"].(map[string]interface{})["text"].(string)
	if len(text) <= maxStringLength || len(text) >= len(long) {
		t.Fatalf("expected string truncated with a suffix marker, got length %d", len(text))
	}
}

func TestCompactContextBoundsDepth(t *testing.T) {
	deep := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": map[string]interface{}{
					"d": map[string]interface{}{"e": "too deep"},
				},
			},
		},
	}
	got := compactContext(deep)
	level := got["a"].(map[string]interface{})["b"].(map[string]interface{})["c"].(map[string]interface{})
	if _, ok := level["d"].(map[string]interface{}); ok {
		t.Fatal("expected the fourth level to be replaced with a truncation marker, not kept as a map")
	}
}
