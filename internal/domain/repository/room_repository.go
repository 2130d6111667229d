package repository

import (
	"context"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// RoomRepository is the persistence boundary for rooms and their
// membership sets.
type RoomRepository interface {
	Save(ctx context.Context, room *entity.Room) error
	FindByID(ctx context.Context, id string) (*entity.Room, error)
	Delete(ctx context.Context, id string) error
}

// ModerationStatusRepository is the persistence boundary for per-(user,
// room) moderation state.
type ModerationStatusRepository interface {
	Find(ctx context.Context, userID, roomID string) (*entity.UserModerationStatus, error)
	Save(ctx context.Context, status *entity.UserModerationStatus) error
}

// ModerationBatchRepository is the persistence boundary for drained
// moderation batches awaiting background review.
type ModerationBatchRepository interface {
	Save(ctx context.Context, batch *entity.ModerationBatch) error
	FindByID(ctx context.Context, id string) (*entity.ModerationBatch, error)
	FindPending(ctx context.Context, limit int) ([]*entity.ModerationBatch, error)
}
