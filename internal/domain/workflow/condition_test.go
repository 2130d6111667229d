package workflow

import "testing"

func TestEvalConditionEmptyIsTrue(t *testing.T) {
	ok, err := EvalCondition("", nil)
	if err != nil || !ok {
		t.Fatalf("expected empty condition to be true, got %v, %v", ok, err)
	}
}

func TestEvalConditionComparison(t *testing.T) {
	ctx := map[string]interface{}{"results": map[string]interface{}{
		"step_1": map[string]interface{}{"data": map[string]interface{}{"amount": 42.0}},
	}}
	ok, err := EvalCondition("results.step_1.data.amount > 10", ctx)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v, %v", ok, err)
	}
	ok, err = EvalCondition("results.step_1.data.amount <= 10", ctx)
	if err != nil || ok {
		t.Fatalf("expected false, got %v, %v", ok, err)
	}
}

func TestEvalConditionLogicalOperators(t *testing.T) {
	ctx := map[string]interface{}{"status": "success", "count": 3.0}
	ok, err := EvalCondition(`status == "success" && count > 1`, ctx)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v, %v", ok, err)
	}
	ok, err = EvalCondition(`status == "failed" || count > 1`, ctx)
	if err != nil || !ok {
		t.Fatalf("expected true via or, got %v, %v", ok, err)
	}
	ok, err = EvalCondition(`!(status == "failed")`, ctx)
	if err != nil || !ok {
		t.Fatalf("expected true via negation, got %v, %v", ok, err)
	}
}

func TestEvalConditionMembership(t *testing.T) {
	ctx := map[string]interface{}{"status": "error"}
	ok, err := EvalCondition(`status in ["error", "failed"]`, ctx)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v, %v", ok, err)
	}
	ok, err = EvalCondition(`status in ["success"]`, ctx)
	if err != nil || ok {
		t.Fatalf("expected false, got %v, %v", ok, err)
	}
}

func TestEvalConditionMissingPathIsNeitherTrueNorError(t *testing.T) {
	_, err := EvalCondition("results.missing.field == 1", map[string]interface{}{"results": map[string]interface{}{}})
	if err != nil {
		t.Fatalf("expected no error for a missing path, got %v", err)
	}
}

func TestEvalConditionRejectsMalformedExpression(t *testing.T) {
	_, err := EvalCondition("status ==", map[string]interface{}{"status": "ok"})
	if err == nil {
		t.Fatal("expected an error for a malformed condition")
	}
}
