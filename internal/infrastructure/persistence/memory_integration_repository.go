package persistence

import (
	"context"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryIntegrationRepository is an in-memory IntegrationRepository.
type MemoryIntegrationRepository struct {
	mu           sync.RWMutex
	integrations map[string]*entity.Integration
}

func NewMemoryIntegrationRepository() repository.IntegrationRepository {
	return &MemoryIntegrationRepository{integrations: make(map[string]*entity.Integration)}
}

func (r *MemoryIntegrationRepository) Find(ctx context.Context, userID string, typ entity.IntegrationType) (*entity.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.integrations[userID+":"+string(typ)]
	if !ok {
		return nil, errors.NewNotFoundError("integration not found")
	}
	return i, nil
}

func (r *MemoryIntegrationRepository) Save(ctx context.Context, integration *entity.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrations[integration.UserID+":"+string(integration.Type)] = integration
	return nil
}
