package repository

import (
	"context"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// RoomContextRepository is the persistence boundary for per-room
// rolling summaries, active topics, and notes (spec §4.F).
type RoomContextRepository interface {
	FindByRoomID(ctx context.Context, roomID string) (*entity.RoomContext, error)
	Save(ctx context.Context, rc *entity.RoomContext) error
}

// TaskStateRepository is the persistence boundary for the Adaptive Task
// Machine's per-(user, room) slot-filling state (spec §4.H).
type TaskStateRepository interface {
	Find(ctx context.Context, userID, roomID string) (*entity.TaskState, error)
	Save(ctx context.Context, task *entity.TaskState) error
	Delete(ctx context.Context, userID, roomID string) error
}

// ResultSetRepository is the persistence boundary for cached last
// search-result lists, keyed by (user, room, action).
type ResultSetRepository interface {
	Find(ctx context.Context, userID, roomID, action string) (*entity.ResultSet, error)
	Save(ctx context.Context, rs *entity.ResultSet) error
}

// WorkflowRepository is the persistence boundary for workflow
// definitions (spec §4.K).
type WorkflowRepository interface {
	FindByName(ctx context.Context, name string) (*entity.WorkflowDefinition, error)
	FindAll(ctx context.Context) ([]*entity.WorkflowDefinition, error)
	FindByTriggerService(ctx context.Context, service string) ([]*entity.WorkflowDefinition, error)
	Save(ctx context.Context, wf *entity.WorkflowDefinition) error
	Delete(ctx context.Context, name string) error
}

// WorkflowExecutionRepository is the persistence boundary for in-flight
// and historical workflow executions.
type WorkflowExecutionRepository interface {
	FindByID(ctx context.Context, id string) (*entity.WorkflowExecution, error)
	Save(ctx context.Context, exec *entity.WorkflowExecution) error
}

// DeferredExecutionRepository is the persistence boundary for the
// Deferred Queue's replay-pending workflow starts (spec §4.L).
type DeferredExecutionRepository interface {
	FindByID(ctx context.Context, id string) (*entity.DeferredExecution, error)
	FindDue(ctx context.Context, limit int) ([]*entity.DeferredExecution, error)
	Save(ctx context.Context, d *entity.DeferredExecution) error
}

// ProactiveSignalsRepository is the persistence boundary for the
// Proactive Engine's per-(user, room) idle/activity accumulators.
type ProactiveSignalsRepository interface {
	Find(ctx context.Context, userID, roomID string) (*entity.ProactiveSignals, error)
	Save(ctx context.Context, sig *entity.ProactiveSignals) error
	FindAll(ctx context.Context) ([]*entity.ProactiveSignals, error)
}
