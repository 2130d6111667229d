package stream

import (
	"context"
	"testing"
	"time"
)

type recordingSink struct {
	chunks  []string
	finals  []bool
}

func (s *recordingSink) Emit(ctx context.Context, chunk string, isFinal bool) error {
	s.chunks = append(s.chunks, chunk)
	s.finals = append(s.finals, isFinal)
	return nil
}

func TestPushDropsLeadingWhitespaceOnlyChunks(t *testing.T) {
	sink := &recordingSink{}
	s := NewSynthesizer(sink)
	if err := s.Push(context.Background(), "   ", false); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(sink.chunks) != 0 {
		t.Fatalf("expected whitespace-only leading chunk dropped, got %v", sink.chunks)
	}
}

func TestPushTrimsLeadingWhitespaceOfFirstToken(t *testing.T) {
	sink := &recordingSink{}
	clock := time.Now()
	s := NewSynthesizer(sink).WithClock(func() time.Time { return clock })

	long := "          this is a long enough chunk to flush"
	if err := s.Push(context.Background(), long, false); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(sink.chunks) != 1 {
		t.Fatalf("expected one flush, got %d", len(sink.chunks))
	}
	if sink.chunks[0][0] == ' ' {
		t.Fatalf("expected leading whitespace trimmed, got %q", sink.chunks[0])
	}
}

func TestPushFlushesOnCharThreshold(t *testing.T) {
	sink := &recordingSink{}
	clock := time.Now()
	s := NewSynthesizer(sink).WithClock(func() time.Time { return clock })

	if err := s.Push(context.Background(), "this is more than twenty characters", false); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(sink.chunks) != 1 {
		t.Fatal("expected a flush once buffer exceeds the char threshold")
	}
}

func TestPushHoldsShortChunkUntilIdleThreshold(t *testing.T) {
	sink := &recordingSink{}
	clock := time.Now()
	s := NewSynthesizer(sink).WithClock(func() time.Time { return clock })

	// The very first chunk always flushes immediately: last_send has
	// no prior value yet, exactly mirroring the source's
	// `stream_state['last_send'] = 0` giving an unconditionally large
	// elapsed time on the first comparison.
	if err := s.Push(context.Background(), "hi", false); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(sink.chunks) != 1 || sink.chunks[0] != "hi" {
		t.Fatalf("expected the first chunk to flush immediately, got %v", sink.chunks)
	}

	if err := s.Push(context.Background(), " there", false); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(sink.chunks) != 1 {
		t.Fatalf("expected the short second chunk held in the buffer, got %v", sink.chunks)
	}

	clock = clock.Add(300 * time.Millisecond)
	if err := s.Push(context.Background(), " friend", false); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(sink.chunks) != 2 || sink.chunks[1] != " there friend" {
		t.Fatalf("expected idle-threshold flush of accumulated buffer, got %v", sink.chunks)
	}
}

func TestPushAlwaysEmitsFinalEvenIfEmpty(t *testing.T) {
	sink := &recordingSink{}
	s := NewSynthesizer(sink)

	if err := s.Push(context.Background(), "", true); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(sink.chunks) != 1 || !sink.finals[0] {
		t.Fatalf("expected final chunk always emitted, got %v / %v", sink.chunks, sink.finals)
	}
}

func TestFullTextAccumulatesIndependentlyOfFlushing(t *testing.T) {
	sink := &recordingSink{}
	clock := time.Now()
	s := NewSynthesizer(sink).WithClock(func() time.Time { return clock })

	s.Push(context.Background(), "hi", false)
	s.Push(context.Background(), " there", false)
	s.Push(context.Background(), "", true)

	if s.FullText() != "hi there" {
		t.Fatalf("expected full text accumulated regardless of flush batching, got %q", s.FullText())
	}
}
