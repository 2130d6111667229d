package contextstore

import "unicode/utf8"

// Tokenizer estimates how many model tokens a string costs. The refresh
// prompt (buildPrompt) uses it to decide how many recent messages it can
// afford to include before trimming the oldest ones.
type Tokenizer interface {
	Count(text string) int
}

// SimpleTokenizer estimates tokens from rune counts rather than calling
// out to a real tokenizer: CJK characters run roughly two per token,
// everything else roughly four characters per token.
type SimpleTokenizer struct {
	charsPerToken float64
}

func NewSimpleTokenizer() *SimpleTokenizer {
	return &SimpleTokenizer{charsPerToken: 4.0}
}

func (t *SimpleTokenizer) Count(text string) int {
	cjk := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		}
	}
	total := utf8.RuneCountInString(text)
	rest := total - cjk
	return int(float64(cjk)/2.0+float64(rest)/t.charsPerToken) + 1
}

// WindowConfig bounds how much of a room's recent history the refresh
// prompt is allowed to quote.
type WindowConfig struct {
	MaxTokens      int
	PreserveRecent int // always kept regardless of budget
}

// SelectWindow drops the oldest messages in recent until the remainder
// fits within cfg.MaxTokens, always keeping at least the last
// cfg.PreserveRecent messages. recent is assumed oldest-first; the
// message repository returns newest-first, so the caller reverses it.
func SelectWindow(tokenizer Tokenizer, recent []RecentMessage, cfg WindowConfig) []RecentMessage {
	if cfg.MaxTokens <= 0 || len(recent) <= cfg.PreserveRecent {
		return recent
	}

	kept := make([]RecentMessage, len(recent))
	copy(kept, recent)

	total := 0
	costs := make([]int, len(kept))
	for i, m := range kept {
		costs[i] = tokenizer.Count(m.Content)
		total += costs[i]
	}

	for total > cfg.MaxTokens && len(kept) > cfg.PreserveRecent {
		total -= costs[0]
		kept = kept[1:]
		costs = costs[1:]
	}

	return kept
}
