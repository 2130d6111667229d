package persistence

import (
	"context"
	"sync"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/pkg/errors"
)

// MemoryWorkflowRepository is an in-memory WorkflowRepository.
type MemoryWorkflowRepository struct {
	mu     sync.RWMutex
	byName map[string]*entity.WorkflowDefinition
}

func NewMemoryWorkflowRepository() repository.WorkflowRepository {
	return &MemoryWorkflowRepository{byName: make(map[string]*entity.WorkflowDefinition)}
}

func (r *MemoryWorkflowRepository) FindByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.byName[name]
	if !ok {
		return nil, errors.NewNotFoundError("workflow not found")
	}
	return wf, nil
}

func (r *MemoryWorkflowRepository) FindAll(ctx context.Context) ([]*entity.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.WorkflowDefinition, 0, len(r.byName))
	for _, wf := range r.byName {
		out = append(out, wf)
	}
	return out, nil
}

func (r *MemoryWorkflowRepository) FindByTriggerService(ctx context.Context, service string) ([]*entity.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.WorkflowDefinition, 0)
	for _, wf := range r.byName {
		for _, t := range wf.Triggers() {
			if t.Type == entity.TriggerWebhook && t.Service == service {
				out = append(out, wf)
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryWorkflowRepository) Save(ctx context.Context, wf *entity.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[wf.Name()] = wf
	return nil
}

func (r *MemoryWorkflowRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return errors.NewNotFoundError("workflow not found")
	}
	delete(r.byName, name)
	return nil
}

// MemoryWorkflowExecutionRepository is an in-memory WorkflowExecutionRepository.
type MemoryWorkflowExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*entity.WorkflowExecution
}

func NewMemoryWorkflowExecutionRepository() repository.WorkflowExecutionRepository {
	return &MemoryWorkflowExecutionRepository{executions: make(map[string]*entity.WorkflowExecution)}
}

func (r *MemoryWorkflowExecutionRepository) FindByID(ctx context.Context, id string) (*entity.WorkflowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executions[id]
	if !ok {
		return nil, errors.NewNotFoundError("workflow execution not found")
	}
	return exec, nil
}

func (r *MemoryWorkflowExecutionRepository) Save(ctx context.Context, exec *entity.WorkflowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[exec.ID()] = exec
	return nil
}
