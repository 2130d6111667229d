package repository

import (
	"context"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// IntegrationRepository persists a user's connected external services
// (spec §4.O), keyed by (user, type).
type IntegrationRepository interface {
	Find(ctx context.Context, userID string, typ entity.IntegrationType) (*entity.Integration, error)
	Save(ctx context.Context, integration *entity.Integration) error
}
