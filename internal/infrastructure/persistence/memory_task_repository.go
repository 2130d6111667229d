package persistence

import (
	"context"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryTaskStateRepository is an in-memory TaskStateRepository.
type MemoryTaskStateRepository struct {
	mu    sync.RWMutex
	tasks map[string]*entity.TaskState
}

func NewMemoryTaskStateRepository() repository.TaskStateRepository {
	return &MemoryTaskStateRepository{tasks: make(map[string]*entity.TaskState)}
}

func (r *MemoryTaskStateRepository) Find(ctx context.Context, userID, roomID string) (*entity.TaskState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[userID+":"+roomID]
	if !ok {
		return nil, errors.NewNotFoundError("task state not found")
	}
	return t, nil
}

func (r *MemoryTaskStateRepository) Save(ctx context.Context, task *entity.TaskState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.UserID+":"+task.RoomID] = task
	return nil
}

func (r *MemoryTaskStateRepository) Delete(ctx context.Context, userID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + ":" + roomID
	if _, ok := r.tasks[key]; !ok {
		return errors.NewNotFoundError("task state not found")
	}
	delete(r.tasks, key)
	return nil
}

// MemoryResultSetRepository is an in-memory ResultSetRepository.
type MemoryResultSetRepository struct {
	mu      sync.RWMutex
	results map[string]*entity.ResultSet
}

func NewMemoryResultSetRepository() repository.ResultSetRepository {
	return &MemoryResultSetRepository{results: make(map[string]*entity.ResultSet)}
}

func (r *MemoryResultSetRepository) Find(ctx context.Context, userID, roomID, action string) (*entity.ResultSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.results[userID+":"+roomID+":"+action]
	if !ok {
		return nil, errors.NewNotFoundError("result set not found")
	}
	return rs, nil
}

func (r *MemoryResultSetRepository) Save(ctx context.Context, rs *entity.ResultSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[rs.UserID+":"+rs.RoomID+":"+rs.Action] = rs
	return nil
}
