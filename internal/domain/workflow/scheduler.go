package workflow

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

// Scheduler drives schedule-triggered workflows off robfig/cron,
// enforcing the overlap policy named in spec §4.K: if a scheduled run
// is still in flight when its next tick fires, the tick is skipped
// rather than queued or run concurrently.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	logger *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

func NewScheduler(runner *Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		logger:  logger,
		running: make(map[string]bool),
	}
}

// Schedule registers every schedule trigger on wf. The timezone in the
// trigger, when set, is parsed and attached to the cron spec so that
// "0 9 * * *" means 9am in the workflow author's timezone, not the
// server's.
func (s *Scheduler) Schedule(wf *entity.WorkflowDefinition) error {
	for _, trig := range wf.Triggers() {
		if trig.Type != entity.TriggerSchedule {
			continue
		}
		spec := trig.Cron
		if trig.Timezone != "" {
			spec = "CRON_TZ=" + trig.Timezone + " " + spec
		}
		name := wf.Name()
		_, err := s.cron.AddFunc(spec, func() { s.fire(name) })
		if err != nil {
			return err
		}
	}
	return nil
}

// Start begins dispatching scheduled ticks in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for any in-flight ticks to settle.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

func (s *Scheduler) fire(workflowName string) {
	s.mu.Lock()
	if s.running[workflowName] {
		s.mu.Unlock()
		s.logger.Info("workflow: skipping scheduled tick, prior run still in flight",
			zap.String("workflow", workflowName))
		return
	}
	s.running[workflowName] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[workflowName] = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	if _, err := s.runner.Start(ctx, workflowName, "", "", entity.TriggerSchedule, nil); err != nil {
		s.logger.Error("workflow: scheduled run failed to start",
			zap.String("workflow", workflowName), zap.Error(err))
	}
}

// WebhookDispatch resolves the (service, event) pair against every
// workflow with a matching webhook trigger and starts each one (spec
// §4.K). Multiple workflows may share the same webhook trigger.
func WebhookDispatch(ctx context.Context, runner *Runner, workflows []*entity.WorkflowDefinition, service, event, userID, roomID string, payload map[string]interface{}) []*entity.WorkflowExecution {
	var execs []*entity.WorkflowExecution
	for _, wf := range workflows {
		for _, trig := range wf.Triggers() {
			if trig.Type == entity.TriggerWebhook && trig.Service == service && trig.Event == event {
				exec, err := runner.Start(ctx, wf.Name(), userID, roomID, entity.TriggerWebhook, payload)
				if err == nil {
					execs = append(execs, exec)
				}
				break
			}
		}
	}
	return execs
}
