package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/cipherroom/gateway/pkg/errors"
)

// GormModerationStatusRepository is the gorm-backed ModerationStatusRepository.
type GormModerationStatusRepository struct {
	db *gorm.DB
}

func NewGormModerationStatusRepository(db *gorm.DB) repository.ModerationStatusRepository {
	return &GormModerationStatusRepository{db: db}
}

func (r *GormModerationStatusRepository) Find(ctx context.Context, userID, roomID string) (*entity.UserModerationStatus, error) {
	var model models.UserModerationStatusModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ? AND room_id = ?", userID, roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("moderation status not found")
		}
		return nil, domainErrors.NewInternalError("failed to find moderation status: " + err.Error())
	}
	return entity.ReconstructUserModerationStatus(model.UserID, model.RoomID, model.FlagCount, model.IsMuted), nil
}

func (r *GormModerationStatusRepository) Save(ctx context.Context, status *entity.UserModerationStatus) error {
	model := &models.UserModerationStatusModel{
		UserID:    status.UserID(),
		RoomID:    status.RoomID(),
		FlagCount: status.FlagCount(),
		IsMuted:   status.IsMuted(),
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save moderation status: " + err.Error())
	}
	return nil
}

// GormModerationBatchRepository is the gorm-backed ModerationBatchRepository.
type GormModerationBatchRepository struct {
	db *gorm.DB
}

func NewGormModerationBatchRepository(db *gorm.DB) repository.ModerationBatchRepository {
	return &GormModerationBatchRepository{db: db}
}

func (r *GormModerationBatchRepository) Save(ctx context.Context, batch *entity.ModerationBatch) error {
	idsJSON, err := json.Marshal(batch.MessageIDs())
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal message ids: " + err.Error())
	}
	model := &models.ModerationBatchModel{
		ID:           batch.ID(),
		RoomID:       batch.RoomID(),
		MessageIDs:   string(idsJSON),
		Status:       string(batch.Status()),
		FlaggedCount: batch.FlaggedCount(),
		CreatedAt:    batch.CreatedAt(),
		ProcessedAt:  batch.ProcessedAt(),
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save moderation batch: " + err.Error())
	}
	return nil
}

func (r *GormModerationBatchRepository) FindByID(ctx context.Context, id string) (*entity.ModerationBatch, error) {
	var model models.ModerationBatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("moderation batch not found")
		}
		return nil, domainErrors.NewInternalError("failed to find moderation batch: " + err.Error())
	}
	return toModerationBatchEntity(&model)
}

func (r *GormModerationBatchRepository) FindPending(ctx context.Context, limit int) ([]*entity.ModerationBatch, error) {
	var rows []models.ModerationBatchModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(entity.BatchPending)).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find pending moderation batches: " + err.Error())
	}

	out := make([]*entity.ModerationBatch, 0, len(rows))
	for _, row := range rows {
		batch, err := toModerationBatchEntity(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, nil
}

func toModerationBatchEntity(model *models.ModerationBatchModel) (*entity.ModerationBatch, error) {
	var ids []string
	if model.MessageIDs != "" {
		if err := json.Unmarshal([]byte(model.MessageIDs), &ids); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal message ids: " + err.Error())
		}
	}
	return entity.ReconstructModerationBatch(
		model.ID, model.RoomID, ids, entity.ModerationBatchStatus(model.Status),
		model.FlaggedCount, model.CreatedAt, model.ProcessedAt,
	), nil
}
