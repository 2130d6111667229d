package deferred

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
)

// BatchSize is the spec's per-tick processing ceiling.
const BatchSize = 10

// Ticker runs one batch of the Deferred Queue's replay loop per spec
// §4.L. It is driven externally (a time.Ticker in the application
// wiring, or a cron entry) — the package itself has no goroutine of
// its own, matching the teacher's preference for callers owning their
// own scheduling loops.
type Ticker struct {
	repo    repository.DeferredExecutionRepository
	guard   GuardFlagStore
	starter WorkflowStarter
	logger  *zap.Logger
}

func NewTicker(repo repository.DeferredExecutionRepository, guard GuardFlagStore, starter WorkflowStarter, logger *zap.Logger) *Ticker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{repo: repo, guard: guard, starter: starter, logger: logger}
}

// Tick processes up to BatchSize due items, per spec §4.L steps 1-4.
func (t *Ticker) Tick(ctx context.Context) error {
	if flagged, err := t.guard.IsSet(ctx); err != nil {
		return err
	} else if flagged {
		t.logger.Debug("deferred: guard flag set, skipping tick")
		return nil
	}

	due, err := t.repo.FindDue(ctx, BatchSize)
	if err != nil {
		return err
	}

	for _, item := range due {
		item.MarkProcessing()
		if err := t.repo.Save(ctx, item); err != nil {
			return err
		}

		startErr := t.starter.StartDeferred(ctx, item.WorkflowID(), string(item.TriggerType()), item.TriggerData())
		if startErr == nil {
			item.MarkStarted()
			if err := t.repo.Save(ctx, item); err != nil {
				return err
			}
			continue
		}

		var unreachable *UnreachableError
		if errors.As(startErr, &unreachable) {
			if err := t.guard.Set(ctx, GuardFlagTTL); err != nil {
				return err
			}
			t.logger.Warn("deferred: runtime looks unreachable, raising guard flag and stopping batch",
				zap.Error(startErr))
			return nil
		}

		t.retryOrAbandon(ctx, item, startErr)
		if err := t.repo.Save(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (t *Ticker) retryOrAbandon(ctx context.Context, item *entity.DeferredExecution, startErr error) {
	if item.Attempts()+1 >= MaxAttempts {
		item.Abandon(startErr.Error())
		t.logger.Warn("deferred: abandoning after exhausting retries",
			zap.String("id", item.ID()), zap.Error(startErr))
		return
	}
	backoff := backoffFor(item.Attempts() + 1)
	item.ScheduleRetry(startErr.Error(), backoff)
}
