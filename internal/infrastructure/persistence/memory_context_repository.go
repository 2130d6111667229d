package persistence

import (
	"context"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryRoomContextRepository is an in-memory RoomContextRepository.
type MemoryRoomContextRepository struct {
	mu       sync.RWMutex
	contexts map[string]*entity.RoomContext
}

func NewMemoryRoomContextRepository() repository.RoomContextRepository {
	return &MemoryRoomContextRepository{contexts: make(map[string]*entity.RoomContext)}
}

func (r *MemoryRoomContextRepository) FindByRoomID(ctx context.Context, roomID string) (*entity.RoomContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.contexts[roomID]
	if !ok {
		return nil, errors.NewNotFoundError("room context not found")
	}
	return rc, nil
}

func (r *MemoryRoomContextRepository) Save(ctx context.Context, rc *entity.RoomContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[rc.RoomID()] = rc
	return nil
}
