package persistence

import (
	"context"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryProactiveSignalsRepository is an in-memory ProactiveSignalsRepository.
type MemoryProactiveSignalsRepository struct {
	mu      sync.RWMutex
	signals map[string]*entity.ProactiveSignals
}

func NewMemoryProactiveSignalsRepository() repository.ProactiveSignalsRepository {
	return &MemoryProactiveSignalsRepository{signals: make(map[string]*entity.ProactiveSignals)}
}

func (r *MemoryProactiveSignalsRepository) Find(ctx context.Context, userID, roomID string) (*entity.ProactiveSignals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.signals[userID+":"+roomID]
	if !ok {
		return nil, errors.NewNotFoundError("proactive signals not found")
	}
	return sig, nil
}

func (r *MemoryProactiveSignalsRepository) FindAll(ctx context.Context) ([]*entity.ProactiveSignals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.ProactiveSignals, 0, len(r.signals))
	for _, sig := range r.signals {
		out = append(out, sig)
	}
	return out, nil
}

func (r *MemoryProactiveSignalsRepository) Save(ctx context.Context, sig *entity.ProactiveSignals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals[sig.UserID+":"+sig.RoomID] = sig
	return nil
}
