// Package contextstore implements the Context Store component (spec
// §4.F): a throttled, asynchronous per-room summary/notes refresh
// driven by an LLM, adapted from the teacher's LLM-backed conversation
// summarizer (internal/domain/context/summarizer.go) — generalized from
// "compress an agent's own chat history" to "distill a room's ongoing
// conversation for later grounding."
package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
)

// ModelClient generates text from a prompt; satisfied by the shared LLM
// router (same contract as the teacher's context.ModelClient).
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RecentMessage is a decrypted message handed to the refresh prompt.
type RecentMessage struct {
	AuthorMemberID string
	Content        string
	Timestamp      time.Time
}

// Config tunes the throttle (spec §4.F: "at least N messages AND at
// least M minutes elapsed ... or a hard maximum").
type Config struct {
	MinMessages int
	MinInterval time.Duration
	MaxMessages int
	MaxInterval time.Duration
	RecentLimit int // K: how many recent messages to pull for the prompt
	NoteTTL     time.Duration

	// PromptTokenBudget caps how many of the RecentLimit messages the
	// refresh prompt actually quotes, via SelectWindow. Zero disables
	// the cap and sends every message RecentLimit allowed through.
	PromptTokenBudget int
	PreserveRecent    int
}

func DefaultConfig() Config {
	return Config{
		MinMessages:       20,
		MinInterval:       5 * time.Minute,
		MaxMessages:       200,
		MaxInterval:       30 * time.Minute,
		RecentLimit:       50,
		NoteTTL:           7 * 24 * time.Hour,
		PromptTokenBudget: 6000,
		PreserveRecent:    10,
	}
}

// ShouldRefresh reports whether rc has crossed the throttle gate.
func ShouldRefresh(rc *entity.RoomContext, cfg Config) bool {
	elapsed := time.Since(rc.LastCompressedAt())
	count := rc.MessagesSinceCompress()

	if count >= cfg.MaxMessages || elapsed >= cfg.MaxInterval {
		return true
	}
	return count >= cfg.MinMessages && elapsed >= cfg.MinInterval
}

// refreshResponse is the JSON shape the LLM is asked to produce
// (spec §4.F step 3).
type refreshResponse struct {
	Summary      string          `json:"summary"`
	ActiveTopics []string        `json:"active_topics"`
	Notes        []noteResponse  `json:"notes"`
	Highlights   []string        `json:"highlights"`
}

type noteResponse struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

var validNoteTypes = map[string]entity.RoomNoteType{
	"decision":    entity.NoteDecision,
	"action_item": entity.NoteActionItem,
	"insight":     entity.NoteInsight,
	"reminder":    entity.NoteReminder,
	"reference":   entity.NoteReference,
}

var validPriorities = map[string]entity.RoomNotePriority{
	"low":    entity.PriorityLow,
	"medium": entity.PriorityMedium,
	"high":   entity.PriorityHigh,
}

// IDFactory mints a RoomNote id.
type IDFactory func() string

// Refresh runs the throttled-refresh worker body for one room. It never
// blocks a user message — callers invoke it from a goroutine. Invalid
// JSON from the LLM skips the refresh with no state changes
// (spec §4.F failure mode).
func Refresh(ctx context.Context, repo repository.RoomContextRepository, llm ModelClient, cfg Config, newID IDFactory, roomID string, recent []RecentMessage) error {
	rc, err := repo.FindByRoomID(ctx, roomID)
	if err != nil {
		return err
	}

	windowed := SelectWindow(NewSimpleTokenizer(), recent, WindowConfig{
		MaxTokens:      cfg.PromptTokenBudget,
		PreserveRecent: cfg.PreserveRecent,
	})

	raw, err := llm.Generate(ctx, buildPrompt(rc, windowed))
	if err != nil {
		return fmt.Errorf("contextstore: generate refresh: %w", err)
	}

	var resp refreshResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil
	}
	if !validateResponse(resp) {
		return nil
	}

	rc.ApplyCompression(resp.Summary, resp.ActiveTopics)

	now := time.Now()
	for _, nr := range resp.Notes {
		noteType := validNoteTypes[nr.Type]
		priority := validPriorities[nr.Priority]
		if isDuplicateRecentNote(rc, nr.Content, noteType, now, cfg.NoteTTL) {
			continue
		}
		note := entity.NewRoomNote(newID(), roomID, noteType, nr.Content, priority, "assistant")
		rc.AddNote(note)
	}

	date := now.Format("2006-01-02")
	existing, _ := rc.DailySummary(date)
	content := resp.Summary
	if existing != nil {
		content = existing.Content() + "\n" + resp.Summary
	}
	rc.UpsertDailySummary(entity.NewDailySummary(date, content))

	return repo.Save(ctx, rc)
}

func isDuplicateRecentNote(rc *entity.RoomContext, content string, noteType entity.RoomNoteType, now time.Time, ttl time.Duration) bool {
	for _, n := range rc.Notes() {
		if n.Type() != noteType || n.Content() != content {
			continue
		}
		if now.Sub(n.CreatedAt()) <= ttl {
			return true
		}
	}
	return false
}

func validateResponse(resp refreshResponse) bool {
	for _, n := range resp.Notes {
		if _, ok := validNoteTypes[n.Type]; !ok {
			return false
		}
		if _, ok := validPriorities[n.Priority]; !ok {
			return false
		}
	}
	return true
}

func buildPrompt(rc *entity.RoomContext, recent []RecentMessage) string {
	var sb strings.Builder
	sb.WriteString("You maintain a rolling summary of a group chat room.\n")
	sb.WriteString("Existing summary: ")
	sb.WriteString(rc.Summary())
	sb.WriteString("\n\nRecent messages:\n")
	for _, m := range recent {
		fmt.Fprintf(&sb, "[%s] %s\n", m.AuthorMemberID, m.Content)
	}
	sb.WriteString("\nRespond with a single JSON object: ")
	sb.WriteString(`{"summary": "...", "active_topics": ["..."], "notes": [{"type": "decision|action_item|insight|reminder|reference", "content": "...", "priority": "low|medium|high"}], "highlights": ["..."]}`)
	return sb.String()
}

// extractJSON strips any leading/trailing prose a chat-tuned model adds
// around the JSON object, so a response like "Here you go:\n{...}" still
// parses.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}
