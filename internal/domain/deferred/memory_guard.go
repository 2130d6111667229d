package deferred

import (
	"context"
	"sync"
	"time"
)

// MemoryGuardFlag is an in-process GuardFlagStore for tests and
// single-instance deployments, mirroring ratelimit.MemoryGate's role
// alongside its Redis/Kafka-backed counterpart.
type MemoryGuardFlag struct {
	mu      sync.Mutex
	setAt   time.Time
	expires time.Time
}

func NewMemoryGuardFlag() *MemoryGuardFlag { return &MemoryGuardFlag{} }

func (f *MemoryGuardFlag) Set(ctx context.Context, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setAt = time.Now()
	f.expires = f.setAt.Add(ttl)
	return nil
}

func (f *MemoryGuardFlag) IsSet(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expires.IsZero() {
		return false, nil
	}
	return time.Now().Before(f.expires), nil
}
