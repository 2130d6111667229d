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

// GormIntegrationRepository is the gorm-backed IntegrationRepository
// backing component O's credentialStore. SealedCredentials are written
// and read as an opaque blob — the store never sees plaintext.
type GormIntegrationRepository struct {
	db *gorm.DB
}

func NewGormIntegrationRepository(db *gorm.DB) repository.IntegrationRepository {
	return &GormIntegrationRepository{db: db}
}

func (r *GormIntegrationRepository) Find(ctx context.Context, userID string, typ entity.IntegrationType) (*entity.Integration, error) {
	var model models.IntegrationModel
	err := r.db.WithContext(ctx).First(&model, "user_id = ? AND type = ?", userID, string(typ)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("integration not found")
		}
		return nil, domainErrors.NewInternalError("failed to find integration: " + err.Error())
	}

	var metadata map[string]string
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &metadata); err != nil {
			return nil, domainErrors.NewInternalError("failed to unmarshal integration metadata: " + err.Error())
		}
	}
	if metadata == nil {
		metadata = make(map[string]string)
	}

	return &entity.Integration{
		UserID: model.UserID, Type: entity.IntegrationType(model.Type),
		IsConnected: model.IsConnected, SealedCredentials: model.SealedCredentials,
		Metadata: metadata, UpdatedAt: model.UpdatedAt,
	}, nil
}

func (r *GormIntegrationRepository) Save(ctx context.Context, integration *entity.Integration) error {
	metadataJSON, err := json.Marshal(integration.Metadata)
	if err != nil {
		return domainErrors.NewInternalError("failed to marshal integration metadata: " + err.Error())
	}
	model := &models.IntegrationModel{
		UserID: integration.UserID, Type: string(integration.Type),
		IsConnected: integration.IsConnected, SealedCredentials: integration.SealedCredentials,
		Metadata: string(metadataJSON), UpdatedAt: integration.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return domainErrors.NewInternalError("failed to save integration: " + err.Error())
	}
	return nil
}
