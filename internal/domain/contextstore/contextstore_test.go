package contextstore

import (
	"context"
	"testing"
	"time"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

type stubRepo struct {
	rc *entity.RoomContext
}

func (s *stubRepo) FindByRoomID(ctx context.Context, roomID string) (*entity.RoomContext, error) {
	return s.rc, nil
}
func (s *stubRepo) Save(ctx context.Context, rc *entity.RoomContext) error {
	s.rc = rc
	return nil
}

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func TestShouldRefreshRespectsMinThresholds(t *testing.T) {
	rc := entity.NewRoomContext("room1")
	cfg := DefaultConfig()

	if ShouldRefresh(rc, cfg) {
		t.Fatal("fresh context with no messages should not trigger a refresh")
	}

	for i := 0; i < cfg.MinMessages; i++ {
		rc.IncrementMessageCount()
	}
	if ShouldRefresh(rc, cfg) {
		t.Fatal("message count alone should not trigger refresh before min interval elapses")
	}
}

func TestShouldRefreshTriggersOnHardMax(t *testing.T) {
	rc := entity.NewRoomContext("room1")
	cfg := DefaultConfig()
	for i := 0; i < cfg.MaxMessages; i++ {
		rc.IncrementMessageCount()
	}
	if !ShouldRefresh(rc, cfg) {
		t.Fatal("hitting the hard max message count should force a refresh")
	}
}

func TestRefreshSkipsOnInvalidJSON(t *testing.T) {
	ctx := context.Background()
	rc := entity.NewRoomContext("room1")
	repo := &stubRepo{rc: rc}
	llm := &stubLLM{response: "not json at all"}

	err := Refresh(ctx, repo, llm, DefaultConfig(), func() string { return "note-1" }, "room1", nil)
	if err != nil {
		t.Fatalf("invalid JSON should be skipped, not errored: %v", err)
	}
	if repo.rc.Summary() != "" {
		t.Fatal("expected no state change on invalid JSON")
	}
}

func TestRefreshAppliesValidResponse(t *testing.T) {
	ctx := context.Background()
	rc := entity.NewRoomContext("room1")
	repo := &stubRepo{rc: rc}
	llm := &stubLLM{response: `{"summary": "the team agreed on a launch date", "active_topics": ["launch"], "notes": [{"type": "decision", "content": "ship friday", "priority": "high"}], "highlights": []}`}

	if err := Refresh(ctx, repo, llm, DefaultConfig(), func() string { return "note-1" }, "room1", nil); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if repo.rc.Summary() != "the team agreed on a launch date" {
		t.Fatalf("unexpected summary: %q", repo.rc.Summary())
	}
	if len(repo.rc.Notes()) != 1 {
		t.Fatalf("expected 1 note, got %d", len(repo.rc.Notes()))
	}
}

func TestRefreshDedupsRecentIdenticalNote(t *testing.T) {
	ctx := context.Background()
	rc := entity.NewRoomContext("room1")
	existing := entity.NewRoomNote("note-0", "room1", entity.NoteDecision, "ship friday", entity.PriorityHigh, "assistant")
	rc.AddNote(existing)
	repo := &stubRepo{rc: rc}
	llm := &stubLLM{response: `{"summary": "s", "active_topics": [], "notes": [{"type": "decision", "content": "ship friday", "priority": "high"}], "highlights": []}`}

	if err := Refresh(ctx, repo, llm, DefaultConfig(), func() string { return "note-2" }, "room1", nil); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(repo.rc.Notes()) != 1 {
		t.Fatalf("expected duplicate note within TTL to be skipped, got %d notes", len(repo.rc.Notes()))
	}
}

func TestRefreshAllowsNoteAfterTTLExpires(t *testing.T) {
	ctx := context.Background()
	rc := entity.NewRoomContext("room1")
	stale := entity.ReconstructRoomNote("note-0", "room1", entity.NoteDecision, "ship friday", entity.PriorityHigh, "", nil, "assistant", time.Now().Add(-8*24*time.Hour))
	rc.AddNote(stale)
	repo := &stubRepo{rc: rc}
	llm := &stubLLM{response: `{"summary": "s", "active_topics": [], "notes": [{"type": "decision", "content": "ship friday", "priority": "high"}], "highlights": []}`}

	if err := Refresh(ctx, repo, llm, DefaultConfig(), func() string { return "note-2" }, "room1", nil); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(repo.rc.Notes()) != 2 {
		t.Fatalf("expected a note older than the TTL window to not count as a duplicate, got %d notes", len(repo.rc.Notes()))
	}
}
