package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryMessageRepository is an in-memory MessageRepository for tests and
// local development.
type MemoryMessageRepository struct {
	mu           sync.RWMutex
	messages     map[string]*entity.Message
	roomMessages map[string][]string // room id -> message ids, insertion order
}

func NewMemoryMessageRepository() repository.MessageRepository {
	return &MemoryMessageRepository{
		messages:     make(map[string]*entity.Message),
		roomMessages: make(map[string][]string),
	}
}

func (r *MemoryMessageRepository) Save(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.messages[message.ID()]; !exists {
		r.roomMessages[message.RoomID()] = append(r.roomMessages[message.RoomID()], message.ID())
	}
	r.messages[message.ID()] = message
	return nil
}

func (r *MemoryMessageRepository) FindByID(ctx context.Context, id string) (*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	message, ok := r.messages[id]
	if !ok {
		return nil, errors.NewNotFoundError("message not found")
	}
	return message, nil
}

// FindByRoomBefore returns up to limit+1 messages with id < beforeID
// (or all, if beforeID is empty), newest-first — ids are assumed to sort
// lexicographically with creation order (e.g. ULIDs/snowflakes).
func (r *MemoryMessageRepository) FindByRoomBefore(ctx context.Context, roomID, beforeID string, limit int) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := append([]string(nil), r.roomMessages[roomID]...)
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	out := make([]*entity.Message, 0, limit+1)
	for _, id := range ids {
		if beforeID != "" && id >= beforeID {
			continue
		}
		out = append(out, r.messages[id])
		if len(out) > limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryMessageRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, ok := r.messages[id]
	if !ok {
		return errors.NewNotFoundError("message not found")
	}

	ids := r.roomMessages[message.RoomID()]
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	r.roomMessages[message.RoomID()] = filtered

	delete(r.messages, id)
	return nil
}

func (r *MemoryMessageRepository) Count(ctx context.Context, roomID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.roomMessages[roomID])), nil
}
