package contextstore

import (
	"strings"
	"testing"
	"time"
)

func TestSelectWindowKeepsEverythingUnderBudget(t *testing.T) {
	recent := []RecentMessage{
		{AuthorMemberID: "u1", Content: "hi", Timestamp: time.Now()},
		{AuthorMemberID: "u2", Content: "hello", Timestamp: time.Now()},
	}

	out := SelectWindow(NewSimpleTokenizer(), recent, WindowConfig{MaxTokens: 1000, PreserveRecent: 1})
	if len(out) != 2 {
		t.Fatalf("expected both messages kept, got %d", len(out))
	}
}

func TestSelectWindowDropsOldestFirst(t *testing.T) {
	long := strings.Repeat("word ", 200)
	recent := make([]RecentMessage, 0, 20)
	for i := 0; i < 20; i++ {
		recent = append(recent, RecentMessage{AuthorMemberID: "u1", Content: long, Timestamp: time.Now()})
	}

	out := SelectWindow(NewSimpleTokenizer(), recent, WindowConfig{MaxTokens: 500, PreserveRecent: 3})
	if len(out) < 3 {
		t.Fatalf("expected at least PreserveRecent messages kept, got %d", len(out))
	}
	if len(out) >= len(recent) {
		t.Fatal("expected some oldest messages to be dropped under a tight budget")
	}
}

func TestSelectWindowNeverDropsBelowPreserveRecent(t *testing.T) {
	long := strings.Repeat("word ", 500)
	recent := []RecentMessage{
		{Content: long}, {Content: long}, {Content: long}, {Content: long},
	}

	out := SelectWindow(NewSimpleTokenizer(), recent, WindowConfig{MaxTokens: 1, PreserveRecent: 2})
	if len(out) != 2 {
		t.Fatalf("expected exactly PreserveRecent=2 messages kept, got %d", len(out))
	}
}
