package presence

import (
	"context"
	"testing"
)

func TestRemoveThenAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := RemoveThenAdd(ctx, store, "room1", "alice"); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if err := RemoveThenAdd(ctx, store, "room1", "alice"); err != nil {
		t.Fatalf("duplicate connect: %v", err)
	}

	snap, err := store.Snapshot(ctx, "room1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Users) != 1 {
		t.Fatalf("expected exactly one user after double-connect, got %d", len(snap.Users))
	}
}

func TestRemoveAbsentUserIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Remove(context.Background(), "room1", "nobody"); err != nil {
		t.Fatalf("remove of absent user should not error: %v", err)
	}
}
