package workflow

import (
	"testing"
	"time"
)

func TestIdempotencyKeyStableAcrossMapOrder(t *testing.T) {
	a := IdempotencyKey("u1", "trip", map[string]interface{}{"a": 1, "b": 2})
	b := IdempotencyKey("u1", "trip", map[string]interface{}{"b": 2, "a": 1})
	if a != b {
		t.Fatalf("expected stable key regardless of map iteration order, got %s != %s", a, b)
	}
}

func TestIdempotencyKeyDiffersOnPayload(t *testing.T) {
	a := IdempotencyKey("u1", "trip", map[string]interface{}{"a": 1})
	b := IdempotencyKey("u1", "trip", map[string]interface{}{"a": 2})
	if a == b {
		t.Fatal("expected differing payloads to hash differently")
	}
}

func TestInMemoryIdempotencyStoreDeduplicatesWithinWindow(t *testing.T) {
	s := NewInMemoryIdempotencyStore()
	now := time.Now()
	if !s.Claim("k1", now) {
		t.Fatal("expected first claim to succeed")
	}
	if s.Claim("k1", now.Add(10*time.Second)) {
		t.Fatal("expected second claim inside the dedup window to fail")
	}
	if !s.Claim("k1", now.Add(DuplicateWindow+time.Second)) {
		t.Fatal("expected claim after the window to succeed")
	}
}
