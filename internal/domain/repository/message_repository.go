package repository

import (
	"context"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// MessageRepository is the persistence boundary for room messages.
type MessageRepository interface {
	Save(ctx context.Context, message *entity.Message) error
	FindByID(ctx context.Context, id string) (*entity.Message, error)

	// FindByRoomBefore returns up to limit+1 messages in roomID with id
	// ordered before beforeID (empty beforeID means "from the newest"),
	// newest first — callers implement the spec §4.E cursor-pagination
	// contract (has_more, oldest-returned-id-as-cursor) on top of this.
	FindByRoomBefore(ctx context.Context, roomID, beforeID string, limit int) ([]*entity.Message, error)

	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, roomID string) (int64, error)
}
