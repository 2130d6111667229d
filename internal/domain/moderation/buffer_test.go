package moderation

import (
	"context"
	"sync"
	"testing"
)

func TestMaybeDrainTriggersAtThreshold(t *testing.T) {
	ctx := context.Background()
	buf := NewMemoryBuffer()
	cfg := Config{BatchSize: 3}
	newID := func() string { return "batch-1" }

	for i := 0; i < 2; i++ {
		b, err := MaybeDrain(ctx, buf, cfg, newID, "room1", "msg")
		if err != nil {
			t.Fatalf("maybe drain: %v", err)
		}
		if b != nil {
			t.Fatalf("expected no batch before threshold, got one at append %d", i)
		}
	}

	b, err := MaybeDrain(ctx, buf, cfg, newID, "room1", "msg-3")
	if err != nil {
		t.Fatalf("maybe drain at threshold: %v", err)
	}
	if b == nil {
		t.Fatal("expected a batch once threshold reached")
	}
	if len(b.MessageIDs()) != 3 {
		t.Fatalf("expected 3 ids in drained batch, got %d", len(b.MessageIDs()))
	}
}

func TestMaybeDrainSkippedInDebugMode(t *testing.T) {
	ctx := context.Background()
	buf := NewMemoryBuffer()
	cfg := Config{BatchSize: 1, Debug: true}

	b, err := MaybeDrain(ctx, buf, cfg, func() string { return "x" }, "room1", "msg")
	if err != nil {
		t.Fatalf("maybe drain: %v", err)
	}
	if b != nil {
		t.Fatal("expected debug mode to bypass buffering entirely")
	}
}

func TestConcurrentDrainersProduceExactlyOneBatch(t *testing.T) {
	ctx := context.Background()
	buf := NewMemoryBuffer()

	for i := 0; i < 10; i++ {
		buf.Append(ctx, "room1", "msg")
	}

	var wg sync.WaitGroup
	drains := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, ok, err := buf.Drain(ctx, "room1")
			if err != nil {
				t.Errorf("drain: %v", err)
			}
			drains[idx] = ok
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, ok := range drains {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful drain among concurrent observers, got %d", successes)
	}
}
