package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence/models"
	domainErrors "github.com/cipherroom/gateway/pkg/errors"
)

// GormDeferredExecutionRepository is the gorm-backed DeferredExecutionRepository.
type GormDeferredExecutionRepository struct {
	db *gorm.DB
}

func NewGormDeferredExecutionRepository(db *gorm.DB) repository.DeferredExecutionRepository {
	return &GormDeferredExecutionRepository{db: db}
}

func (r *GormDeferredExecutionRepository) FindByID(ctx context.Context, id string) (*entity.DeferredExecution, error) {
	var model models.DeferredExecutionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("deferred execution not found")
		}
		return nil, domainErrors.NewInternalError("failed to find deferred execution: " + err.Error())
	}
	return toDeferredEntity(&model)
}

// FindDue returns queued executions whose nextAttemptAt has passed,
// oldest first, matching the Deferred Queue's replay-in-order contract.
func (r *GormDeferredExecutionRepository) FindDue(ctx context.Context, limit int) ([]*entity.DeferredExecution, error) {
	var rows []models.DeferredExecutionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", string(entity.DeferredQueued), time.Now()).
		Order("next_attempt_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to find due deferred executions: " + err.Error())
	}
	out := make([]*entity.DeferredExecution, 0, len(rows))
	for _, row := range rows {
		d, err := toDeferredEntity(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *GormDeferredExecutionRepository) Save(ctx context.Context, d *entity.DeferredExecution) error {
	triggerDataJSON, err := json.Marshal(d.TriggerData())
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal trigger data: " + err.Error())
	}
	model := &models.DeferredExecutionModel{
		ID:            d.ID(),
		WorkflowID:    d.WorkflowID(),
		TriggerType:   string(d.TriggerType()),
		TriggerData:   string(triggerDataJSON),
		Attempts:      d.Attempts(),
		NextAttemptAt: d.NextAttemptAt(),
		LastError:     d.LastError(),
		Status:        string(d.Status()),
		CreatedAt:     d.CreatedAt(),
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save deferred execution: " + err.Error())
	}
	return nil
}

func toDeferredEntity(model *models.DeferredExecutionModel) (*entity.DeferredExecution, error) {
	var triggerData map[string]interface{}
	if model.TriggerData != "" {
		if err := json.Unmarshal([]byte(model.TriggerData), &triggerData); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal trigger data: " + err.Error())
		}
	}
	return entity.ReconstructDeferredExecution(
		model.ID, model.WorkflowID, entity.TriggerType(model.TriggerType), triggerData,
		model.Attempts, model.NextAttemptAt, model.LastError, entity.DeferredStatus(model.Status), model.CreatedAt,
	), nil
}
