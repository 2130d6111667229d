package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryDeferredExecutionRepository is an in-memory DeferredExecutionRepository.
type MemoryDeferredExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*entity.DeferredExecution
}

func NewMemoryDeferredExecutionRepository() repository.DeferredExecutionRepository {
	return &MemoryDeferredExecutionRepository{executions: make(map[string]*entity.DeferredExecution)}
}

func (r *MemoryDeferredExecutionRepository) FindByID(ctx context.Context, id string) (*entity.DeferredExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.executions[id]
	if !ok {
		return nil, errors.NewNotFoundError("deferred execution not found")
	}
	return d, nil
}

func (r *MemoryDeferredExecutionRepository) FindDue(ctx context.Context, limit int) ([]*entity.DeferredExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	due := make([]*entity.DeferredExecution, 0)
	for _, d := range r.executions {
		if d.Status() == entity.DeferredQueued && !d.NextAttemptAt().After(now) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextAttemptAt().Before(due[j].NextAttemptAt())
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryDeferredExecutionRepository) Save(ctx context.Context, d *entity.DeferredExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[d.ID()] = d
	return nil
}
