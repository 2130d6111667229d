package persistence

import (
	"context"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryRoomRepository is an in-memory RoomRepository for tests and
// local development.
type MemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*entity.Room
}

func NewMemoryRoomRepository() repository.RoomRepository {
	return &MemoryRoomRepository{rooms: make(map[string]*entity.Room)}
}

func (r *MemoryRoomRepository) Save(ctx context.Context, room *entity.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID()] = room
	return nil
}

func (r *MemoryRoomRepository) FindByID(ctx context.Context, id string) (*entity.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, errors.NewNotFoundError("room not found")
	}
	return room, nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return errors.NewNotFoundError("room not found")
	}
	delete(r.rooms, id)
	return nil
}
