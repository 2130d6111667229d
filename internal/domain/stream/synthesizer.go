// Package stream implements the Streaming Synthesizer (spec §4.N):
// buffering of token-by-token LLM output into flushed chunks under a
// size/time/final policy, grounded directly on
// original_source/fix_streaming_whitespace_v2.py's `broadcast_chunk`
// closure (`stream_state['buffer']`/`last_send`/`first_token_sent`,
// the exact three-way OR flush condition, and the leading-whitespace
// filter on the first token).
package stream

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Flush thresholds, generalized from the source's hardcoded 20
// chars / 0.2s into named constants (spec §4.N: 20 chars / 200ms).
const (
	FlushCharThreshold = 20
	FlushIdleThreshold = 200 * time.Millisecond
)

// Sink receives flushed chunks. The interfaces layer's websocket hub
// implements this to fan a chunk out to a room's connected sessions —
// kept as an interface here so the domain package never imports the
// transport layer.
type Sink interface {
	Emit(ctx context.Context, chunk string, isFinal bool) error
}

// Synthesizer buffers one assistant turn's streamed tokens for a
// single sink. It is not safe to reuse across turns; construct a new
// one per streaming response.
type Synthesizer struct {
	mu             sync.Mutex
	buffer         strings.Builder
	fullText       strings.Builder
	lastSend       time.Time
	firstTokenSent bool
	sink           Sink
	now            func() time.Time
}

func NewSynthesizer(sink Sink) *Synthesizer {
	return &Synthesizer{sink: sink, now: time.Now}
}

// WithClock overrides the time source (tests use this to make the
// idle-threshold branch deterministic).
func (s *Synthesizer) WithClock(now func() time.Time) *Synthesizer {
	s.now = now
	return s
}

// Push appends one streamed chunk and flushes to the sink if any of
// the three policies trip: buffered length > FlushCharThreshold,
// elapsed time since last flush > FlushIdleThreshold, or isFinal.
// A final chunk is always emitted, even if the buffer is empty, so
// the client gets an unambiguous end-of-turn signal (spec §4.N).
func (s *Synthesizer) Push(ctx context.Context, chunkText string, isFinal bool) error {
	s.mu.Lock()

	if !s.firstTokenSent && !isFinal {
		if strings.TrimSpace(chunkText) == "" {
			s.mu.Unlock()
			return nil
		}
		chunkText = strings.TrimLeft(chunkText, " \t\n\r")
		s.firstTokenSent = true
	}

	s.buffer.WriteString(chunkText)
	s.fullText.WriteString(chunkText)

	now := s.now()
	joined := s.buffer.String()
	// s.lastSend starts at the zero time, so the elapsed-time check is
	// always true on the very first push — the first token flushes
	// immediately rather than waiting out the idle threshold, matching
	// the source's last_send=0 initialization.
	shouldFlush := len(joined) > FlushCharThreshold || now.Sub(s.lastSend) > FlushIdleThreshold || isFinal

	if !shouldFlush {
		s.mu.Unlock()
		return nil
	}
	if joined == "" && !isFinal {
		s.mu.Unlock()
		return nil
	}

	s.buffer.Reset()
	s.lastSend = now
	s.mu.Unlock()

	return s.sink.Emit(ctx, joined, isFinal)
}

// FullText returns everything pushed so far, independent of flush
// buffering — used once the stream ends to persist the canonical
// assistant message (spec §4.N).
func (s *Synthesizer) FullText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullText.String()
}
