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

// GormWorkflowRepository is the gorm-backed WorkflowRepository.
type GormWorkflowRepository struct {
	db *gorm.DB
}

func NewGormWorkflowRepository(db *gorm.DB) repository.WorkflowRepository {
	return &GormWorkflowRepository{db: db}
}

func (r *GormWorkflowRepository) FindByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error) {
	var model models.WorkflowDefinitionModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("workflow not found")
		}
		return nil, domainErrors.NewInternalError("failed to find workflow: " + err.Error())
	}
	return toWorkflowEntity(&model)
}

func (r *GormWorkflowRepository) FindAll(ctx context.Context) ([]*entity.WorkflowDefinition, error) {
	var rows []models.WorkflowDefinitionModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, domainErrors.NewInternalError("failed to find workflows: " + err.Error())
	}
	out := make([]*entity.WorkflowDefinition, 0, len(rows))
	for _, row := range rows {
		wf, err := toWorkflowEntity(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, nil
}

// FindByTriggerService scans every stored definition for a webhook
// trigger matching service, since triggers are opaque JSON to the
// store (spec §4.K's webhook dispatch needs no faster lookup path —
// the number of defined workflows per deployment is small).
func (r *GormWorkflowRepository) FindByTriggerService(ctx context.Context, service string) ([]*entity.WorkflowDefinition, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.WorkflowDefinition, 0)
	for _, wf := range all {
		for _, t := range wf.Triggers() {
			if t.Type == entity.TriggerWebhook && t.Service == service {
				out = append(out, wf)
				break
			}
		}
	}
	return out, nil
}

func (r *GormWorkflowRepository) Save(ctx context.Context, wf *entity.WorkflowDefinition) error {
	model, err := toWorkflowModel(wf)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save workflow: " + err.Error())
	}
	return nil
}

func (r *GormWorkflowRepository) Delete(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).Delete(&models.WorkflowDefinitionModel{}, "name = ?", name)
	if result.Error != nil {
		return domainErrors.NewInternalError("failed to delete workflow: " + result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("workflow not found")
	}
	return nil
}

func toWorkflowModel(wf *entity.WorkflowDefinition) (*models.WorkflowDefinitionModel, error) {
	triggersJSON, err := json.Marshal(wf.Triggers())
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to marshal triggers: " + err.Error())
	}
	stepsJSON, err := json.Marshal(wf.Steps())
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to marshal steps: " + err.Error())
	}
	policyJSON := ""
	if wf.Policy() != nil {
		raw, err := json.Marshal(wf.Policy())
		if err != nil {
			return nil, domainErrors.NewInternalError("failed to marshal policy: " + err.Error())
		}
		policyJSON = string(raw)
	}
	return &models.WorkflowDefinitionModel{
		ID:          wf.ID(),
		Name:        wf.Name(),
		Description: wf.Description(),
		Triggers:    string(triggersJSON),
		Steps:       string(stepsJSON),
		Policy:      policyJSON,
		CreatedAt:   wf.CreatedAt(),
	}, nil
}

func toWorkflowEntity(model *models.WorkflowDefinitionModel) (*entity.WorkflowDefinition, error) {
	var triggers []entity.Trigger
	if err := json.Unmarshal([]byte(model.Triggers), &triggers); err != nil {
		return nil, domainErrors.NewInternalError("failed to unmarshal triggers: " + err.Error())
	}
	var steps []entity.Step
	if err := json.Unmarshal([]byte(model.Steps), &steps); err != nil {
		return nil, domainErrors.NewInternalError("failed to unmarshal steps: " + err.Error())
	}
	var policy *entity.Policy
	if model.Policy != "" {
		policy = &entity.Policy{}
		if err := json.Unmarshal([]byte(model.Policy), policy); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal policy: " + err.Error())
		}
	}
	return entity.ReconstructWorkflowDefinition(
		model.ID, model.Name, model.Description, triggers, steps, policy, model.CreatedAt,
	), nil
}

// GormWorkflowExecutionRepository is the gorm-backed WorkflowExecutionRepository.
type GormWorkflowExecutionRepository struct {
	db *gorm.DB
}

func NewGormWorkflowExecutionRepository(db *gorm.DB) repository.WorkflowExecutionRepository {
	return &GormWorkflowExecutionRepository{db: db}
}

func (r *GormWorkflowExecutionRepository) FindByID(ctx context.Context, id string) (*entity.WorkflowExecution, error) {
	var model models.WorkflowExecutionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("workflow execution not found")
		}
		return nil, domainErrors.NewInternalError("failed to find workflow execution: " + err.Error())
	}
	return toExecutionEntity(&model)
}

func (r *GormWorkflowExecutionRepository) Save(ctx context.Context, exec *entity.WorkflowExecution) error {
	model, err := toExecutionModel(exec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save workflow execution: " + err.Error())
	}
	return nil
}

func toExecutionModel(exec *entity.WorkflowExecution) (*models.WorkflowExecutionModel, error) {
	triggerDataJSON, err := json.Marshal(exec.TriggerData())
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to marshal trigger data: " + err.Error())
	}
	resultJSON, err := json.Marshal(exec.ResultContext())
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to marshal result context: " + err.Error())
	}
	return &models.WorkflowExecutionModel{
		ID:            exec.ID(),
		WorkflowID:    exec.WorkflowID(),
		ExternalRunID: exec.ExternalRunID(),
		TriggerType:   string(exec.TriggerType()),
		TriggerData:   string(triggerDataJSON),
		Status:        string(exec.Status()),
		StartedAt:     exec.StartedAt(),
		CompletedAt:   exec.CompletedAt(),
		ResultContext: string(resultJSON),
		ErrorMessage:  exec.ErrorMessage(),
	}, nil
}

func toExecutionEntity(model *models.WorkflowExecutionModel) (*entity.WorkflowExecution, error) {
	var triggerData map[string]interface{}
	if model.TriggerData != "" {
		if err := json.Unmarshal([]byte(model.TriggerData), &triggerData); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal trigger data: " + err.Error())
		}
	}
	var resultContext map[string]interface{}
	if model.ResultContext != "" {
		if err := json.Unmarshal([]byte(model.ResultContext), &resultContext); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal result context: " + err.Error())
		}
	}
	return entity.ReconstructWorkflowExecution(
		model.ID, model.WorkflowID, model.ExternalRunID, entity.TriggerType(model.TriggerType),
		triggerData, entity.ExecutionStatus(model.Status), model.StartedAt, model.CompletedAt,
		resultContext, model.ErrorMessage,
	), nil
}
