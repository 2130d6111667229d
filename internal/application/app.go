// Package application wires the domain components (crypto, presence,
// rate limiting, moderation, intent parsing, task state, plan
// verification, dispatch, workflow runtime, deferred queue, proactive
// engine) into the running gateway process: one process-wide
// initialization that constructs every piece and injects it into its
// neighbors, replacing the teacher's module-level singletons.
package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cipherroom/gateway/internal/domain/crypto"
	"github.com/cipherroom/gateway/internal/domain/deferred"
	"github.com/cipherroom/gateway/internal/domain/dispatch"
	"github.com/cipherroom/gateway/internal/domain/intent"
	"github.com/cipherroom/gateway/internal/domain/moderation"
	"github.com/cipherroom/gateway/internal/domain/plan"
	"github.com/cipherroom/gateway/internal/domain/proactive"
	"github.com/cipherroom/gateway/internal/domain/ratelimit"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/domain/task"
	"github.com/cipherroom/gateway/internal/domain/workflow"
	"github.com/cipherroom/gateway/internal/infrastructure/adapters"
	"github.com/cipherroom/gateway/internal/infrastructure/config"
	"github.com/cipherroom/gateway/internal/infrastructure/eventbus"
	"github.com/cipherroom/gateway/internal/infrastructure/llm"
	_ "github.com/cipherroom/gateway/internal/infrastructure/llm/anthropic"
	_ "github.com/cipherroom/gateway/internal/infrastructure/llm/gemini"
	_ "github.com/cipherroom/gateway/internal/infrastructure/llm/openai"
	"github.com/cipherroom/gateway/internal/infrastructure/monitoring"
	"github.com/cipherroom/gateway/internal/infrastructure/persistence"
	"github.com/cipherroom/gateway/internal/infrastructure/presence"
	httpiface "github.com/cipherroom/gateway/internal/interfaces/http"
	"github.com/cipherroom/gateway/internal/interfaces/websocket"
)

// App is the fully wired gateway: every domain component plus the
// WebSocket and HTTP surfaces that drive them.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *gorm.DB
	redis     redis.UniversalClient
	masterKey [crypto.KeySize]byte

	rooms         repository.RoomRepository
	messages      repository.MessageRepository
	modStatus     repository.ModerationStatusRepository
	modBatches    repository.ModerationBatchRepository
	roomContexts  repository.RoomContextRepository
	taskStates    repository.TaskStateRepository
	resultSets    repository.ResultSetRepository
	workflows     repository.WorkflowRepository
	executions    repository.WorkflowExecutionRepository
	deferredRepo  repository.DeferredExecutionRepository
	integrations  repository.IntegrationRepository
	proactiveRepo repository.ProactiveSignalsRepository

	presenceStore presence.Store
	rateGate      ratelimit.Gate
	modBuffer     moderation.Buffer
	modCfg        moderation.Config

	llmRouter *llm.Router

	orchestrator *Orchestrator
	hub          *websocket.Hub
	wsHandler    *websocket.Handler
	httpServer   *httpiface.Server

	wfRunner    *workflow.Runner
	wfScheduler *workflow.Scheduler
	wfRegistry  *adapters.Registry

	deferredTicker *deferred.Ticker
	webhookRouter  *WebhookRouter

	cancel context.CancelFunc
}

// NewApp constructs every domain component and wires it into the
// WebSocket hub, HTTP server, workflow runtime, and background loops.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}

	masterKey, err := loadMasterKey(cfg.Crypto.MasterKeyHex, cfg.Gateway.Mode, logger)
	if err != nil {
		return nil, fmt.Errorf("load master key: %w", err)
	}
	app.masterKey = masterKey

	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	if err := app.wireRepositories(); err != nil {
		return nil, fmt.Errorf("wire repositories: %w", err)
	}

	app.wirePresenceAndRateLimit()
	app.wireModerationBuffer()

	if err := app.wireLLM(); err != nil {
		return nil, fmt.Errorf("wire llm: %w", err)
	}

	app.wireAdapterRegistry()
	app.wireOrchestrationPipeline()
	app.wireWorkflowRuntime()
	app.wireDeferredQueue()
	app.wireHTTPAndWebSocket()

	return app, nil
}

// loadMasterKey reads the 32-byte hex-encoded key that unwraps every
// room's sealed symmetric key. In non-production mode a missing key is
// generated ephemerally with a warning rather than failing startup.
func loadMasterKey(hexKey, mode string, logger *zap.Logger) ([crypto.KeySize]byte, error) {
	var key [crypto.KeySize]byte
	if hexKey == "" {
		if mode == "production" {
			return key, fmt.Errorf("crypto.master_key_hex is required in production mode")
		}
		logger.Warn("no master key configured — generating an ephemeral one for this process; room keys will not survive a restart")
		if _, err := rand.Read(key[:]); err != nil {
			return key, err
		}
		return key, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return key, fmt.Errorf("master_key_hex is not valid hex: %w", err)
	}
	if len(raw) != crypto.KeySize {
		return key, fmt.Errorf("master key must decode to %d bytes, got %d", crypto.KeySize, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func (a *App) wireRepositories() error {
	if a.cfg.Database.Driver != "" && a.cfg.Database.Driver != "memory" {
		db, err := persistence.NewDBConnection(&a.cfg.Database)
		if err != nil {
			return err
		}
		a.db = db

		a.rooms = persistence.NewGormRoomRepository(db)
		a.messages = persistence.NewGormMessageRepository(db)
		a.modStatus = persistence.NewGormModerationStatusRepository(db)
		a.modBatches = persistence.NewGormModerationBatchRepository(db)
		a.roomContexts = persistence.NewGormRoomContextRepository(db)
		a.taskStates = persistence.NewGormTaskStateRepository(db)
		a.resultSets = persistence.NewGormResultSetRepository(db)
		a.workflows = persistence.NewGormWorkflowRepository(db)
		a.executions = persistence.NewGormWorkflowExecutionRepository(db)
		a.deferredRepo = persistence.NewGormDeferredExecutionRepository(db)
		a.integrations = persistence.NewGormIntegrationRepository(db)
		a.proactiveRepo = persistence.NewGormProactiveSignalsRepository(db)
		return nil
	}

	a.rooms = persistence.NewMemoryRoomRepository()
	a.messages = persistence.NewMemoryMessageRepository()
	a.modStatus = persistence.NewMemoryModerationStatusRepository()
	a.modBatches = persistence.NewMemoryModerationBatchRepository()
	a.roomContexts = persistence.NewMemoryRoomContextRepository()
	a.taskStates = persistence.NewMemoryTaskStateRepository()
	a.resultSets = persistence.NewMemoryResultSetRepository()
	a.workflows = persistence.NewMemoryWorkflowRepository()
	a.executions = persistence.NewMemoryWorkflowExecutionRepository()
	a.deferredRepo = persistence.NewMemoryDeferredExecutionRepository()
	a.integrations = persistence.NewMemoryIntegrationRepository()
	a.proactiveRepo = persistence.NewMemoryProactiveSignalsRepository()
	return nil
}

func (a *App) wirePresenceAndRateLimit() {
	if a.redis != nil {
		a.presenceStore = presence.NewRedisStore(a.redis)
		a.rateGate = ratelimit.NewRedisGate(a.redis, ratelimit.DefaultCeilings)
	} else {
		a.presenceStore = presence.NewMemoryStore()
		a.rateGate = ratelimit.NewMemoryGate(ratelimit.DefaultCeilings)
	}
}

func (a *App) wireModerationBuffer() {
	a.modCfg = moderation.Config{
		BatchSize: a.cfg.Moderation.BatchSize,
		Debug:     a.cfg.Gateway.Mode != "production",
	}
	if a.modCfg.BatchSize <= 0 {
		a.modCfg.BatchSize = 10
	}
	if a.redis != nil {
		a.modBuffer = moderation.NewRedisBuffer(a.redis)
	} else {
		a.modBuffer = moderation.NewMemoryBuffer()
	}
}

func (a *App) wireLLM() error {
	router := llm.NewRouter(a.logger)
	for _, p := range a.cfg.LLM.Providers {
		provider, err := llm.CreateProvider(llm.ProviderConfig{
			Name:     p.Name,
			Type:     p.Name,
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Models:   []string{p.Model},
			Priority: p.Priority,
		}, a.logger)
		if err != nil {
			a.logger.Warn("llm: skipping unconfigurable provider", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		router.AddProvider(provider)
	}
	a.llmRouter = router
	return nil
}

func (a *App) wireAdapterRegistry() {
	cfg := adapters.Config{
		GmailClientID:     a.cfg.Integrations.GmailClientID,
		GmailClientSecret: a.cfg.Integrations.GmailClientSecret,
		MasterKey:         a.masterKey,
		Mailgun: adapters.MailgunConfig{
			APIKey:  a.cfg.Integrations.MailgunAPIKey,
			Domain:  a.cfg.Integrations.MailgunDomain,
			Sandbox: a.cfg.Integrations.MailgunSandbox,
		},
		WhatsApp: adapters.WhatsAppConfig{
			AccountSID: a.cfg.Integrations.WhatsAppAccountSID,
			AuthToken:  a.cfg.Integrations.WhatsAppAuthToken,
			FromNumber: a.cfg.Integrations.WhatsAppFromNumber,
		},
	}
	a.wfRegistry = adapters.BuildRegistry(cfg, a.integrations, a.redis, a.logger)
}

func (a *App) wireOrchestrationPipeline() {
	schemas := intent.DefaultSchemas()

	parserClient := newLLMJSONClient(a.llmRouter, a.cfg.Assistant.ChatModel)
	parser := intent.NewParser(parserClient, schemas)

	summaryProvider := &roomContextSummaryProvider{repo: a.roomContexts}

	events := eventbus.NewInMemoryBus(a.logger, 256)
	monitor := monitoring.NewMonitor(a.logger)

	hub := websocket.NewHub(a.logger)
	a.hub = hub

	proactiveEngine := proactive.NewEngine(a.proactiveRepo)
	taskMachine := task.NewMachine(schemas, a.resultSets, summaryProvider, proactiveEngine)
	verifier := plan.NewVerifier(schemas, a.resultSets)

	summaryGen := newSummaryGenerator(a.llmRouter, a.cfg.Assistant.ChatModel)
	dispatcher := dispatch.NewDispatcher(a.wfRegistry, summaryGen)

	a.orchestrator = NewOrchestrator(OrchestratorConfig{
		Rooms:         a.rooms,
		Messages:      a.messages,
		TaskStates:    a.taskStates,
		ResultSets:    a.resultSets,
		RoomContexts:  a.roomContexts,
		Workflows:     a.workflows,
		Integrations:  a.integrations,
		ProactiveRepo: a.proactiveRepo,
		IntentParser:  parser,
		TaskMachine:   taskMachine,
		Verifier:      verifier,
		Dispatcher:    dispatcher,
		Proactive:     proactiveEngine,
		LLM:           a.llmRouter,
		ChatModel:     a.cfg.Assistant.ChatModel,
		Hub:           hub,
		MasterKey:     a.masterKey,
		Logger:        a.logger,
		Events:        events,
		Monitor:       monitor,
	})

	router := websocket.NewRouter(websocket.RouterConfig{
		Hub:              hub,
		Rooms:            a.rooms,
		Messages:         a.messages,
		ModStatus:        a.modStatus,
		Presence:         a.presenceStore,
		RateGate:         a.rateGate,
		ModBuffer:        a.modBuffer,
		ModBatches:       a.modBatches,
		ModerationConfig: a.modCfg,
		MasterKey:        a.masterKey,
		AssistantName:    a.cfg.Assistant.MentionPrefix,
		AssistantTrigger: a.orchestrator.AssistantTrigger,
		ContextHook:      a.orchestrator.ContextHook,
		IdleHook:         a.orchestrator.IdleHook,
		Logger:           a.logger,
	})

	a.wsHandler = websocket.NewHandler(websocket.HandlerConfig{
		Hub:          hub,
		Router:       router,
		Rooms:        a.rooms,
		Presence:     a.presenceStore,
		Authenticate: trustedHeaderAuthenticator,
		MasterKey:    a.masterKey,
		Logger:       a.logger,
	})
}

func (a *App) wireWorkflowRuntime() {
	dispatcher := dispatch.NewDispatcher(a.wfRegistry, newSummaryGenerator(a.llmRouter, a.cfg.Assistant.ChatModel))
	executor := workflow.NewExecutor(dispatcher, a.executions, workflow.DefaultExecContextBuilder, a.logger)

	idempotency := workflow.NewInMemoryIdempotencyStore()
	runner := workflow.NewRunner(a.workflows, a.executions, idempotency, executor, a.logger)
	a.wfRunner = runner

	scheduler := workflow.NewScheduler(runner, a.logger)
	if defs, err := a.workflows.FindAll(context.Background()); err == nil {
		for _, wf := range defs {
			if err := scheduler.Schedule(wf); err != nil {
				a.logger.Warn("workflow: schedule failed", zap.String("workflow", wf.Name()), zap.Error(err))
			}
		}
	}
	a.wfScheduler = scheduler

	a.webhookRouter = NewWebhookRouter(a.workflows, runner, a.deferredRepo, a.cfg.Workflow.WebhookSecrets, a.logger)
}

func (a *App) wireDeferredQueue() {
	var guard deferred.GuardFlagStore
	if a.redis != nil {
		guard = deferred.NewRedisGuardFlag(a.redis)
	} else {
		guard = deferred.NewMemoryGuardFlag()
	}
	starter := &deferredStarter{runner: a.wfRunner}
	a.deferredTicker = deferred.NewTicker(a.deferredRepo, guard, starter, a.logger)
}

func (a *App) wireHTTPAndWebSocket() {
	a.httpServer = httpiface.NewServer(httpiface.Config{
		Host: a.cfg.Gateway.Host,
		Port: a.cfg.Gateway.Port,
		Mode: a.cfg.Gateway.Mode,
	}, a.webhookRouter, a.webhookRouter, a.wsHandler, a.logger)
}

// Start begins serving: the Hub's fan-out loop, the scheduled-workflow
// cron, the deferred-queue replay ticker, and the HTTP/WebSocket
// listener. It blocks until the listener stops.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.hub.Run(runCtx)
	a.wfScheduler.Start()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := a.deferredTicker.Tick(runCtx); err != nil {
					a.logger.Warn("deferred: tick failed", zap.Error(err))
				}
			}
		}
	}()

	return a.httpServer.Start(runCtx)
}

// Stop shuts every background loop and listener down within the given
// context's deadline.
func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wfScheduler.Stop()
	if err := a.httpServer.Stop(ctx); err != nil {
		return err
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

// Logger exposes the process-wide logger (used by cmd/gateway).
func (a *App) Logger() *zap.Logger { return a.logger }

// roomContextSummaryProvider adapts RoomContextRepository onto
// task.SummaryProvider: the "send it" shorthand resolves against
// whatever the Context Store last summarized for the room.
type roomContextSummaryProvider struct {
	repo repository.RoomContextRepository
}

func (p *roomContextSummaryProvider) LastSummary(ctx context.Context, roomID string) (string, error) {
	rc, err := p.repo.FindByRoomID(ctx, roomID)
	if err != nil {
		return "", err
	}
	if rc == nil {
		return "", nil
	}
	return rc.Summary(), nil
}

// trustedHeaderAuthenticator resolves the connecting user id from an
// upstream-verified header. The identity provider itself is out of
// scope; the gateway trusts whatever proxy sits in front of it to have
// authenticated the caller and attached this header.
func trustedHeaderAuthenticator(r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-Id")
	return userID, userID != ""
}
