package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

func errUnknownScope(scope Scope) error {
	return fmt.Errorf("ratelimit: unknown scope %q", scope)
}

type bucketCounter struct {
	bucket int64
	count  int64
}

// MemoryGate is an in-process Gate for tests and single-instance
// development, mirroring RedisGate's fixed-window semantics.
type MemoryGate struct {
	mu       sync.Mutex
	ceilings map[Scope]Ceiling
	counters map[string]*bucketCounter
}

func NewMemoryGate(ceilings map[Scope]Ceiling) *MemoryGate {
	if ceilings == nil {
		ceilings = DefaultCeilings
	}
	return &MemoryGate{
		ceilings: ceilings,
		counters: make(map[string]*bucketCounter),
	}
}

func (g *MemoryGate) key(scope Scope, user string) string {
	return string(scope) + ":" + user
}

func (g *MemoryGate) currentBucket(window int64) int64 {
	return time.Now().Unix() / window
}

func (g *MemoryGate) Allow(ctx context.Context, scope Scope, user string) (bool, error) {
	ceiling, ok := g.ceilings[scope]
	if !ok {
		return false, errUnknownScope(scope)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := g.key(scope, user)
	bucket := g.currentBucket(ceiling.Window)

	c, ok := g.counters[key]
	if !ok || c.bucket != bucket {
		c = &bucketCounter{bucket: bucket}
		g.counters[key] = c
	}

	if c.count+1 > ceiling.Limit {
		return false, nil
	}
	c.count++
	return true, nil
}

func (g *MemoryGate) Remaining(ctx context.Context, scope Scope, user string) (int64, error) {
	ceiling, ok := g.ceilings[scope]
	if !ok {
		return 0, errUnknownScope(scope)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := g.key(scope, user)
	bucket := g.currentBucket(ceiling.Window)

	c, ok := g.counters[key]
	if !ok || c.bucket != bucket {
		return ceiling.Limit, nil
	}

	remaining := ceiling.Limit - c.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
