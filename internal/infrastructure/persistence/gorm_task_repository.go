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

// GormTaskStateRepository is the gorm-backed TaskStateRepository.
type GormTaskStateRepository struct {
	db *gorm.DB
}

func NewGormTaskStateRepository(db *gorm.DB) repository.TaskStateRepository {
	return &GormTaskStateRepository{db: db}
}

func (r *GormTaskStateRepository) Find(ctx context.Context, userID, roomID string) (*entity.TaskState, error) {
	var model models.TaskStateModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ? AND room_id = ?", userID, roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("task state not found")
		}
		return nil, domainErrors.NewInternalError("failed to find task state: " + err.Error())
	}

	var params map[string]interface{}
	if model.Parameters != "" {
		if err := json.Unmarshal([]byte(model.Parameters), &params); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal task parameters: " + err.Error())
		}
	}
	var missing []string
	if model.MissingSlots != "" {
		if err := json.Unmarshal([]byte(model.MissingSlots), &missing); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal missing slots: " + err.Error())
		}
	}

	return &entity.TaskState{
		UserID: model.UserID, RoomID: model.RoomID, Mode: model.Mode,
		Status: entity.TaskStatus(model.Status), Action: model.Action,
		Parameters: params, MissingSlots: missing,
		CreatedAtUnix: model.CreatedAtUnix, LastPrompt: model.LastPrompt,
	}, nil
}

func (r *GormTaskStateRepository) Save(ctx context.Context, task *entity.TaskState) error {
	paramsJSON, err := json.Marshal(task.Parameters)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal task parameters: " + err.Error())
	}
	missingJSON, err := json.Marshal(task.MissingSlots)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal missing slots: " + err.Error())
	}
	model := &models.TaskStateModel{
		UserID: task.UserID, RoomID: task.RoomID, Mode: task.Mode,
		Status: string(task.Status), Action: task.Action,
		Parameters: string(paramsJSON), MissingSlots: string(missingJSON),
		CreatedAtUnix: task.CreatedAtUnix, LastPrompt: task.LastPrompt,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save task state: " + err.Error())
	}
	return nil
}

func (r *GormTaskStateRepository) Delete(ctx context.Context, userID, roomID string) error {
	result := r.db.WithContext(ctx).Delete(&models.TaskStateModel{}, "user_id = ? AND room_id = ?", userID, roomID)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to delete task state: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("task state not found")
	}
	return nil
}

// GormResultSetRepository is the gorm-backed ResultSetRepository.
type GormResultSetRepository struct {
	db *gorm.DB
}

func NewGormResultSetRepository(db *gorm.DB) repository.ResultSetRepository {
	return &GormResultSetRepository{db: db}
}

func (r *GormResultSetRepository) Find(ctx context.Context, userID, roomID, action string) (*entity.ResultSet, error) {
	var model models.ResultSetModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ? AND room_id = ? AND action = ?", userID, roomID, action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("result set not found")
		}
		return nil, domainErrors.NewInternalError("failed to find result set: " + err.Error())
	}

	var options []map[string]interface{}
	if model.Options != "" {
		if err := json.Unmarshal([]byte(model.Options), &options); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal result options: " + err.Error())
		}
	}
	var metadata map[string]interface{}
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &metadata); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal result metadata: " + err.Error())
		}
	}

	return entity.NewResultSet(model.UserID, model.RoomID, model.Action, options, metadata, model.CreatedAtUnix), nil
}

func (r *GormResultSetRepository) Save(ctx context.Context, rs *entity.ResultSet) error {
	optionsJSON, err := json.Marshal(rs.Options)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal result options: " + err.Error())
	}
	metadataJSON, err := json.Marshal(rs.Metadata)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal result metadata: " + err.Error())
	}
	model := &models.ResultSetModel{
		UserID: rs.UserID, RoomID: rs.RoomID, Action: rs.Action,
		Options: string(optionsJSON), Metadata: string(metadataJSON),
		CreatedAtUnix: rs.CreatedAtUnix,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save result set: " + err.Error())
	}
	return nil
}
