package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/domain/workflow"
)

// WebhookRouter implements both http.WebhookDispatcher and
// http.WebhookSecretResolver: it resolves an inbound (service, event)
// pair to every workflow subscribed to it and starts each one, falling
// back to the Deferred Queue when the Workflow Runtime looks
// unreachable (spec §4.K/L).
type WebhookRouter struct {
	workflows repository.WorkflowRepository
	runner    *workflow.Runner
	deferred  repository.DeferredExecutionRepository
	secrets   map[string]string
	logger    *zap.Logger
}

// NewWebhookRouter builds the webhook ingress adapter described above.
func NewWebhookRouter(workflows repository.WorkflowRepository, runner *workflow.Runner, deferredRepo repository.DeferredExecutionRepository, secrets map[string]string, logger *zap.Logger) *WebhookRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookRouter{workflows: workflows, runner: runner, deferred: deferredRepo, secrets: secrets, logger: logger}
}

// WebhookSecret implements http.WebhookSecretResolver.
func (w *WebhookRouter) WebhookSecret(service string) (string, bool) {
	secret, ok := w.secrets[service]
	return secret, ok
}

// DispatchWebhook implements http.WebhookDispatcher. A webhook has no
// originating chat user or room, so every workflow it starts runs with
// empty userID/roomID — its steps act on the payload alone.
func (w *WebhookRouter) DispatchWebhook(ctx context.Context, service, event string, payload map[string]interface{}) error {
	defs, err := w.workflows.FindByTriggerService(ctx, service)
	if err != nil {
		return fmt.Errorf("webhook: resolve subscribers for %s: %w", service, err)
	}

	var matched []*entity.WorkflowDefinition
	for _, wf := range defs {
		for _, trig := range wf.Triggers() {
			if trig.Type == entity.TriggerWebhook && trig.Service == service && (trig.Event == "" || trig.Event == event) {
				matched = append(matched, wf)
				break
			}
		}
	}
	if len(matched) == 0 {
		w.logger.Debug("webhook: no workflow subscribed", zap.String("service", service), zap.String("event", event))
		return nil
	}

	for _, wf := range matched {
		if _, err := w.runner.Start(ctx, wf.Name(), "", "", entity.TriggerWebhook, payload); err != nil {
			w.logger.Warn("webhook: start failed, deferring", zap.String("workflow", wf.Name()), zap.Error(err))
			w.enqueueDeferred(ctx, wf.Name(), entity.TriggerWebhook, payload)
		}
	}
	return nil
}

func (w *WebhookRouter) enqueueDeferred(ctx context.Context, workflowName string, triggerType entity.TriggerType, triggerData map[string]interface{}) {
	d := entity.NewDeferredExecution(uuid.NewString(), workflowName, triggerType, triggerData)
	if err := w.deferred.Save(ctx, d); err != nil {
		w.logger.Error("webhook: failed to enqueue deferred start", zap.String("workflow", workflowName), zap.Error(err))
	}
}

// deferredStarter adapts the Workflow Runtime's Runner onto
// deferred.WorkflowStarter. DeferredExecution.WorkflowID is, by the
// convention this gateway enqueues under (see enqueueDeferred above),
// the workflow's name — the only identifier Runner.Start accepts.
type deferredStarter struct {
	runner *workflow.Runner
}

func (s *deferredStarter) StartDeferred(ctx context.Context, workflowID string, triggerType string, triggerData map[string]interface{}) error {
	_, err := s.runner.Start(ctx, workflowID, "", "", entity.TriggerType(triggerType), triggerData)
	return err
}
