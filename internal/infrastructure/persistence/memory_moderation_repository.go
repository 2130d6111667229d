package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryModerationStatusRepository is an in-memory ModerationStatusRepository.
type MemoryModerationStatusRepository struct {
	mu       sync.RWMutex
	statuses map[string]*entity.UserModerationStatus
}

func NewMemoryModerationStatusRepository() repository.ModerationStatusRepository {
	return &MemoryModerationStatusRepository{statuses: make(map[string]*entity.UserModerationStatus)}
}

func (r *MemoryModerationStatusRepository) Find(ctx context.Context, userID, roomID string) (*entity.UserModerationStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.statuses[userID+":"+roomID]
	if !ok {
		return nil, errors.NewNotFoundError("moderation status not found")
	}
	return status, nil
}

func (r *MemoryModerationStatusRepository) Save(ctx context.Context, status *entity.UserModerationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[status.UserID()+":"+status.RoomID()] = status
	return nil
}

// MemoryModerationBatchRepository is an in-memory ModerationBatchRepository.
type MemoryModerationBatchRepository struct {
	mu      sync.RWMutex
	batches map[string]*entity.ModerationBatch
}

func NewMemoryModerationBatchRepository() repository.ModerationBatchRepository {
	return &MemoryModerationBatchRepository{batches: make(map[string]*entity.ModerationBatch)}
}

func (r *MemoryModerationBatchRepository) Save(ctx context.Context, batch *entity.ModerationBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID()] = batch
	return nil
}

func (r *MemoryModerationBatchRepository) FindByID(ctx context.Context, id string) (*entity.ModerationBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[id]
	if !ok {
		return nil, errors.NewNotFoundError("moderation batch not found")
	}
	return batch, nil
}

func (r *MemoryModerationBatchRepository) FindPending(ctx context.Context, limit int) ([]*entity.ModerationBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]*entity.ModerationBatch, 0)
	for _, b := range r.batches {
		if b.Status() == entity.BatchPending {
			pending = append(pending, b)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt().Before(pending[j].CreatedAt())
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}
