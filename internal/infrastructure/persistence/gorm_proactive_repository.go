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

// GormProactiveSignalsRepository is the gorm-backed ProactiveSignalsRepository.
type GormProactiveSignalsRepository struct {
	db *gorm.DB
}

func NewGormProactiveSignalsRepository(db *gorm.DB) repository.ProactiveSignalsRepository {
	return &GormProactiveSignalsRepository{db: db}
}

func (r *GormProactiveSignalsRepository) Find(ctx context.Context, userID, roomID string) (*entity.ProactiveSignals, error) {
	var model models.ProactiveSignalsModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ? AND room_id = ?", userID, roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("proactive signals not found")
		}
		return nil, domainErrors.NewInternalError("failed to find proactive signals: " + err.Error())
	}
	return toProactiveEntity(&model)
}

func (r *GormProactiveSignalsRepository) FindAll(ctx context.Context) ([]*entity.ProactiveSignals, error) {
	var rows []models.ProactiveSignalsModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find proactive signals: " + err.Error())
	}
	out := make([]*entity.ProactiveSignals, 0, len(rows))
	for _, row := range rows {
		sig, err := toProactiveEntity(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

func (r *GormProactiveSignalsRepository) Save(ctx context.Context, sig *entity.ProactiveSignals) error {
	actionsJSON, err := json.Marshal(sig.CountsByAction)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal action counts: " + err.Error())
	}
	categoriesJSON, err := json.Marshal(sig.CountsByCategory)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal category counts: " + err.Error())
	}
	dismissedJSON, err := json.Marshal(sig.DismissedAt)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal dismissals: " + err.Error())
	}

	model := &models.ProactiveSignalsModel{
		UserID:           sig.UserID,
		RoomID:           sig.RoomID,
		CountsByAction:   string(actionsJSON),
		CountsByCategory: string(categoriesJSON),
		LastAction:       sig.LastAction,
		LastActionAt:     sig.LastActionAt,
		LastNudgeAt:      sig.LastNudgeAt,
		LastNudgeReason:  sig.LastNudgeReason,
		DismissedAt:      string(dismissedJSON),
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save proactive signals: " + err.Error())
	}
	return nil
}

func toProactiveEntity(model *models.ProactiveSignalsModel) (*entity.ProactiveSignals, error) {
	sig := entity.NewProactiveSignals(model.UserID, model.RoomID)
	if model.CountsByAction != "" {
		if err := json.Unmarshal([]byte(model.CountsByAction), &sig.CountsByAction); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal action counts: " + err.Error())
		}
	}
	if model.CountsByCategory != "" {
		if err := json.Unmarshal([]byte(model.CountsByCategory), &sig.CountsByCategory); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal category counts: " + err.Error())
		}
	}
	if model.DismissedAt != "" {
		if err := json.Unmarshal([]byte(model.DismissedAt), &sig.DismissedAt); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal dismissals: " + err.Error())
		}
	}
	sig.LastAction = model.LastAction
	sig.LastActionAt = model.LastActionAt
	sig.LastNudgeAt = model.LastNudgeAt
	sig.LastNudgeReason = model.LastNudgeReason
	return sig, nil
}
