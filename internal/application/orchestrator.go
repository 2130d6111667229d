package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/contextstore"
	"github.com/cipherroom/gateway/internal/domain/crypto"
	"github.com/cipherroom/gateway/internal/domain/dispatch"
	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/intent"
	"github.com/cipherroom/gateway/internal/domain/plan"
	"github.com/cipherroom/gateway/internal/domain/proactive"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/domain/service"
	"github.com/cipherroom/gateway/internal/domain/stream"
	"github.com/cipherroom/gateway/internal/domain/task"
	"github.com/cipherroom/gateway/internal/infrastructure/eventbus"
	"github.com/cipherroom/gateway/internal/infrastructure/monitoring"
	"github.com/cipherroom/gateway/internal/interfaces/websocket"
)

// assistantMemberID is the conventional author id the assistant's own
// messages are persisted and broadcast under.
const assistantMemberID = "assistant"

// Orchestrator ties the Intent Parser, Adaptive Task Machine, Plan
// Verifier, Dispatcher, Context Store, and Proactive Engine together
// behind the three closures the WebSocket Router needs (spec §4.E-N).
// It is the piece of the gateway original_source never separated out on
// its own: the Python backend wired these steps inline inside its chat
// handler.
type Orchestrator struct {
	rooms          repository.RoomRepository
	messages       repository.MessageRepository
	taskStates     repository.TaskStateRepository
	resultSets     repository.ResultSetRepository
	roomContexts   repository.RoomContextRepository
	workflows      repository.WorkflowRepository
	integrations   repository.IntegrationRepository
	proactiveRepo  repository.ProactiveSignalsRepository

	intentParser *intent.Parser
	taskMachine  *task.Machine
	verifier     *plan.Verifier
	dispatcher   *dispatch.Dispatcher
	proactive    *proactive.Engine

	llm        service.LLMClient
	chatModel  string
	hub        *websocket.Hub
	masterKey  [crypto.KeySize]byte
	newID      func() string
	logger     *zap.Logger
	events     eventbus.Bus
	monitor    *monitoring.Monitor

	contextCfg contextstore.Config

	idleMu     sync.Mutex
	idleTimers map[string]*time.Timer
}

// OrchestratorConfig bundles every dependency Orchestrator needs.
type OrchestratorConfig struct {
	Rooms         repository.RoomRepository
	Messages      repository.MessageRepository
	TaskStates    repository.TaskStateRepository
	ResultSets    repository.ResultSetRepository
	RoomContexts  repository.RoomContextRepository
	Workflows     repository.WorkflowRepository
	Integrations  repository.IntegrationRepository
	ProactiveRepo repository.ProactiveSignalsRepository

	IntentParser *intent.Parser
	TaskMachine  *task.Machine
	Verifier     *plan.Verifier
	Dispatcher   *dispatch.Dispatcher
	Proactive    *proactive.Engine

	LLM       service.LLMClient
	ChatModel string
	Hub       *websocket.Hub
	MasterKey [crypto.KeySize]byte
	Logger    *zap.Logger
	Events    eventbus.Bus
	Monitor   *monitoring.Monitor
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	monitor := cfg.Monitor
	if monitor == nil {
		monitor = monitoring.NewMonitor(logger)
	}
	return &Orchestrator{
		rooms:         cfg.Rooms,
		messages:      cfg.Messages,
		taskStates:    cfg.TaskStates,
		resultSets:    cfg.ResultSets,
		roomContexts:  cfg.RoomContexts,
		workflows:     cfg.Workflows,
		integrations:  cfg.Integrations,
		proactiveRepo: cfg.ProactiveRepo,
		intentParser:  cfg.IntentParser,
		taskMachine:   cfg.TaskMachine,
		verifier:      cfg.Verifier,
		dispatcher:    cfg.Dispatcher,
		proactive:     cfg.Proactive,
		llm:           cfg.LLM,
		chatModel:     cfg.ChatModel,
		hub:           cfg.Hub,
		masterKey:     cfg.MasterKey,
		newID:         uuid.NewString,
		logger:        logger,
		events:        cfg.Events,
		monitor:       monitor,
		contextCfg:    contextstore.DefaultConfig(),
		idleTimers:    make(map[string]*time.Timer),
	}
}

func (o *Orchestrator) roomKey(ctx context.Context, roomID string) ([crypto.KeySize]byte, error) {
	var key [crypto.KeySize]byte
	room, err := o.rooms.FindByID(ctx, roomID)
	if err != nil {
		return key, err
	}
	return crypto.UnsealRoomKey(o.masterKey, room.SealedKey())
}

// AssistantTrigger is the websocket.Router.AssistantTrigger closure:
// it runs the full intent -> task -> plan -> dispatch pipeline for one
// message addressed to the assistant (spec §4.G-J, §4.N).
func (o *Orchestrator) AssistantTrigger(ctx context.Context, roomID, userID, text string) {
	if err := o.handleAssistantTrigger(ctx, roomID, userID, text); err != nil {
		o.monitor.IncError()
		o.logger.Error("assistant trigger failed", zap.String("room_id", roomID), zap.Error(err))
		if o.events != nil {
			o.events.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeError, eventbus.ErrorPayload{
				Component: "orchestrator.assistant_trigger",
				Error:     err.Error(),
			}))
		}
		o.sendAssistantMessage(ctx, roomID, "Sorry, something went wrong handling that — please try again.")
	}
}

func (o *Orchestrator) handleAssistantTrigger(ctx context.Context, roomID, userID, text string) error {
	if proactive.IsExplicitDismissal(text) {
		_ = o.proactive.DismissExplicit(ctx, userID, roomID)
	}

	existing, err := o.taskStates.Find(ctx, userID, roomID)
	if err != nil {
		return fmt.Errorf("orchestrator: load task state: %w", err)
	}

	history := ""
	if rc, err := o.roomContexts.FindByRoomID(ctx, roomID); err == nil && rc != nil {
		history = rc.Summary()
	}

	in, err := o.intentParser.Parse(ctx, text, intent.Context{History: history})
	if err != nil {
		return fmt.Errorf("orchestrator: parse intent: %w", err)
	}

	var t *entity.TaskState
	if existing != nil {
		if discard := o.taskMachine.Update(existing, in); discard {
			_ = o.taskMachine.Dismiss(ctx, existing, "superseded by new intent: "+in.Action)
			t = o.taskMachine.Init(userID, roomID, in, time.Now().Unix())
		} else {
			t = existing
		}
	} else {
		t = o.taskMachine.Init(userID, roomID, in, time.Now().Unix())
	}

	if err := o.taskMachine.ApplySummaryShorthand(ctx, t, text); err != nil {
		o.logger.Warn("orchestrator: summary shorthand lookup failed", zap.Error(err))
	}
	if err := o.taskMachine.ElevateForOptionContext(ctx, t); err != nil {
		o.logger.Warn("orchestrator: option-context elevation failed", zap.Error(err))
	}

	o.recordProactiveAction(ctx, userID, roomID, t.Action)

	if t.Action == "general_chat" {
		if err := o.taskStates.Delete(ctx, userID, roomID); err != nil {
			o.logger.Warn("orchestrator: clear general_chat task state failed", zap.Error(err))
		}
		return o.streamChatReply(ctx, roomID, userID, text, history)
	}

	if !t.IsReady() {
		if err := o.taskStates.Save(ctx, t); err != nil {
			return fmt.Errorf("orchestrator: save task state: %w", err)
		}
		o.sendAssistantMessage(ctx, roomID, t.LastPrompt)
		return nil
	}

	step := entity.Step{ID: "step_1", Service: "", Action: t.Action, Params: t.Parameters, OnError: entity.OnErrorStop}
	review := o.verifier.ReviewSteps(ctx, userID, roomID, []entity.Step{step})

	if review.Verdict == plan.VerdictAskUser {
		t.MissingSlots = missingSlotNames(review.MissingFields)
		t.LastPrompt = review.AssistantMessage
		if err := o.taskStates.Save(ctx, t); err != nil {
			return fmt.Errorf("orchestrator: save task state: %w", err)
		}
		o.sendAssistantMessage(ctx, roomID, review.AssistantMessage)
		return nil
	}

	execCtx := &dispatch.ExecutionContext{UserID: userID, RoomID: roomID, Results: map[string]map[string]interface{}{}}
	var lastResult map[string]interface{}
	for _, s := range review.Steps {
		start := time.Now()
		lastResult = o.dispatcher.Execute(ctx, s, execCtx)
		o.monitor.RecordDispatchLatency(time.Since(start))
		execCtx.Results[s.ID] = lastResult

		o.monitor.IncDispatchTotal()
		if status, _ := lastResult["status"].(string); status == dispatch.StatusError {
			o.monitor.IncDispatchFailed()
		} else {
			o.monitor.IncDispatchSuccess()
		}
	}

	if err := o.taskStates.Delete(ctx, userID, roomID); err != nil {
		o.logger.Warn("orchestrator: clear completed task state failed", zap.Error(err))
	}

	o.cacheResultOptions(ctx, userID, roomID, t.Action, lastResult)

	o.sendAssistantMessage(ctx, roomID, renderResult(t.Action, lastResult))
	return nil
}

func missingSlotNames(fields []plan.MissingField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Param
	}
	return out
}

// cacheResultOptions stashes a search action's returned "options" list
// so a follow-up like "book option 2" can resolve it without a second
// round trip, matching component H's ResultSetLoader contract.
func (o *Orchestrator) cacheResultOptions(ctx context.Context, userID, roomID, action string, result map[string]interface{}) {
	raw, ok := result["options"]
	if !ok {
		return
	}
	rawList, ok := raw.([]interface{})
	if !ok {
		return
	}
	options := make([]map[string]interface{}, 0, len(rawList))
	for _, item := range rawList {
		if m, ok := item.(map[string]interface{}); ok {
			options = append(options, m)
		}
	}
	if len(options) == 0 {
		return
	}
	rs := entity.NewResultSet(userID, roomID, action, options, nil, time.Now().Unix())
	if err := o.resultSets.Save(ctx, rs); err != nil {
		o.logger.Warn("orchestrator: cache result set failed", zap.Error(err))
	}
}

func renderResult(action string, result map[string]interface{}) string {
	if result == nil {
		return fmt.Sprintf("Done — ran %s.", action)
	}
	if status, _ := result["status"].(string); status == dispatch.StatusError {
		return fmt.Sprintf("I couldn't complete that (%v). Want me to try again?", result["error"])
	}
	if msg, ok := result["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("Done — %s completed.", action)
}

// streamChatReply handles the general_chat fallback action: a free-form
// conversational reply, generated and delivered token-by-token through
// the Streaming Synthesizer (component N) rather than as a single
// dispatched step.
func (o *Orchestrator) streamChatReply(ctx context.Context, roomID, userID, text, history string) error {
	key, err := o.roomKey(ctx, roomID)
	if err != nil {
		return fmt.Errorf("orchestrator: load room key: %w", err)
	}

	sink := &hubSink{hub: o.hub, roomID: roomID}
	synth := stream.NewSynthesizer(sink)

	prompt := "You are a helpful assistant embedded in a group chat. Respond conversationally and concisely."
	if history != "" {
		prompt += "\n\nConversation so far: " + history
	}

	deltaCh := make(chan service.StreamChunk, 16)
	done := make(chan error, 1)
	o.monitor.IncLLMCall()
	go func() {
		resp, genErr := o.llm.GenerateStream(ctx, &service.LLMRequest{
			Model: o.chatModel,
			Messages: []service.LLMMessage{
				{Role: "system", Content: prompt},
				{Role: "user", Content: text},
			},
		}, deltaCh)
		if resp != nil {
			o.monitor.AddTokensUsed(resp.TokensUsed)
		}
		done <- genErr
	}()

	var full strings.Builder
	for chunk := range deltaCh {
		if chunk.DeltaText == "" {
			continue
		}
		full.WriteString(chunk.DeltaText)
		if err := synth.Push(ctx, chunk.DeltaText, false); err != nil {
			o.logger.Warn("orchestrator: stream push failed", zap.Error(err))
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("orchestrator: generate chat reply: %w", err)
	}
	if err := synth.Push(ctx, "", true); err != nil {
		o.logger.Warn("orchestrator: stream final flush failed", zap.Error(err))
	}

	return o.persistAssistantMessage(ctx, roomID, key, full.String())
}

// hubSink adapts the Hub's room broadcast onto stream.Sink so the
// Streaming Synthesizer never needs to know about WebSocket transport.
type hubSink struct {
	hub    *websocket.Hub
	roomID string
}

func (s *hubSink) Emit(ctx context.Context, chunk string, isFinal bool) error {
	s.hub.Broadcast(s.roomID, websocket.OutboundEvent{
		Event: websocket.EvtMessage,
		Payload: websocket.MessagePayload{
			RoomID:         s.roomID,
			AuthorMemberID: assistantMemberID,
			Plaintext:      chunk,
			Timestamp:      time.Now().Unix(),
		},
	})
	return nil
}

// sendAssistantMessage seals, persists, and broadcasts a one-shot
// assistant reply (the clarifying-question / dispatched-result paths,
// which don't need token-by-token streaming).
func (o *Orchestrator) sendAssistantMessage(ctx context.Context, roomID, text string) {
	key, err := o.roomKey(ctx, roomID)
	if err != nil {
		o.logger.Error("orchestrator: load room key for reply failed", zap.Error(err))
		return
	}
	if err := o.persistAssistantMessage(ctx, roomID, key, text); err != nil {
		o.logger.Error("orchestrator: send assistant message failed", zap.Error(err))
	}
}

func (o *Orchestrator) persistAssistantMessage(ctx context.Context, roomID string, key [crypto.KeySize]byte, text string) error {
	envelope, err := crypto.Seal(crypto.Payload{Content: text, Timestamp: time.Now()}, key)
	if err != nil {
		return fmt.Errorf("seal assistant reply: %w", err)
	}
	msg, err := entity.NewMessage(o.newID(), roomID, assistantMemberID, envelope)
	if err != nil {
		return fmt.Errorf("build assistant message: %w", err)
	}
	if err := o.messages.Save(ctx, msg); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}

	o.hub.Broadcast(roomID, websocket.OutboundEvent{
		Event: websocket.EvtMessage,
		Payload: websocket.MessagePayload{
			ID:             msg.ID(),
			RoomID:         roomID,
			AuthorMemberID: assistantMemberID,
			Plaintext:      text,
			Timestamp:      msg.Timestamp().Unix(),
		},
	})

	if o.events != nil {
		o.events.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeAssistantReplied, eventbus.AssistantRepliedPayload{
			RoomID:    roomID,
			MessageID: msg.ID(),
		}))
	}
	return nil
}

// ContextHook is the websocket.Router.ContextHook closure: it checks
// the per-room throttle and, once crossed, refreshes the rolling
// summary/notes in the background (spec §4.F).
func (o *Orchestrator) ContextHook(ctx context.Context, roomID string) {
	rc, err := o.roomContexts.FindByRoomID(ctx, roomID)
	if err != nil {
		o.logger.Warn("orchestrator: context hook load failed", zap.Error(err))
		return
	}
	if rc == nil || !contextstore.ShouldRefresh(rc, o.contextCfg) {
		return
	}

	key, err := o.roomKey(ctx, roomID)
	if err != nil {
		o.logger.Warn("orchestrator: context hook room key failed", zap.Error(err))
		return
	}

	msgs, err := o.messages.FindByRoomBefore(ctx, roomID, "", o.contextCfg.RecentLimit)
	if err != nil {
		o.logger.Warn("orchestrator: context hook message fetch failed", zap.Error(err))
		return
	}

	recent := make([]contextstore.RecentMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- { // msgs arrive newest-first; the prompt wants oldest-first
		m := msgs[i]
		payload, err := crypto.Open(m.Envelope(), key)
		if err != nil {
			continue
		}
		recent = append(recent, contextstore.RecentMessage{
			AuthorMemberID: m.AuthorMemberID(),
			Content:        payload.Content,
			Timestamp:      m.Timestamp(),
		})
	}

	llmClient := newLLMTextClient(o.llm, o.chatModel)
	if err := contextstore.Refresh(ctx, o.roomContexts, llmClient, o.contextCfg, o.newID, roomID, recent); err != nil {
		o.logger.Warn("orchestrator: context refresh failed", zap.String("room_id", roomID), zap.Error(err))
	}
}

// IdleHook is the websocket.Router.IdleHook closure: it (re)schedules
// the proactive idle-nudge evaluation for (roomID, userID), cancelling
// whatever timer the user's previous message already set (spec §4.M).
func (o *Orchestrator) IdleHook(ctx context.Context, roomID, userID string) {
	key := userID + ":" + roomID

	o.idleMu.Lock()
	if existing, ok := o.idleTimers[key]; ok {
		existing.Stop()
	}
	scheduledAt := time.Now().Add(proactive.IdleEvaluationDelay)
	o.idleTimers[key] = time.AfterFunc(proactive.IdleEvaluationDelay, func() {
		o.evaluateIdle(context.Background(), roomID, userID, scheduledAt)
	})
	o.idleMu.Unlock()
}

func (o *Orchestrator) evaluateIdle(ctx context.Context, roomID, userID string, scheduledAt time.Time) {
	signals, err := o.proactiveRepo.Find(ctx, userID, roomID)
	if err != nil {
		o.logger.Warn("orchestrator: idle evaluation load failed", zap.Error(err))
		return
	}
	if signals == nil {
		signals = entity.NewProactiveSignals(userID, roomID)
	}

	facts := o.computeFacts(ctx, userID, roomID)
	prefs := proactive.Preferences{Frequency: proactive.FrequencyMedium}

	nudge, ok := o.proactive.Evaluate(signals, prefs, facts, scheduledAt, signals.LastActionAt)
	if !ok {
		return
	}

	if err := o.proactive.RecordNudgeSent(ctx, userID, roomID, nudge.Reason); err != nil {
		o.logger.Warn("orchestrator: record nudge failed", zap.Error(err))
	}
	o.sendAssistantMessage(ctx, roomID, nudge.Message)

	if o.events != nil {
		o.events.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeNudgeSent, eventbus.NudgeSentPayload{
			RoomID: roomID,
			UserID: userID,
			Reason: string(nudge.Reason),
		}))
	}
}

// computeFacts derives proactive.Facts from whatever the gateway
// already knows about this user's automations, rather than tracking a
// second, redundant copy of the same state.
func (o *Orchestrator) computeFacts(ctx context.Context, userID, roomID string) proactive.Facts {
	var facts proactive.Facts

	if wfs, err := o.workflows.FindAll(ctx); err == nil {
		facts.HasAnyWorkflow = len(wfs) > 0
		for _, wf := range wfs {
			for _, step := range wf.Steps() {
				switch step.Service {
				case "whatsapp", "email":
					facts.HasCommunicationAutomation = true
				case "payments":
					facts.HasInvoiceAutomation = true
				}
			}
			for _, trig := range wf.Triggers() {
				if trig.Type == entity.TriggerSchedule {
					facts.HasRecurringReminder = true
				}
			}
		}
	}

	if itinerary, err := o.resultSets.Find(ctx, userID, roomID, "create_itinerary"); err == nil {
		facts.HasItinerary = itinerary != nil
	}

	return facts
}

func (o *Orchestrator) recordProactiveAction(ctx context.Context, userID, roomID, action string) {
	schema, ok := intent.DefaultSchemas()[action]
	category := ""
	if ok {
		category = schema.Service
	}

	signals, err := o.proactiveRepo.Find(ctx, userID, roomID)
	if err != nil {
		o.logger.Warn("orchestrator: load proactive signals failed", zap.Error(err))
		return
	}
	if signals == nil {
		signals = entity.NewProactiveSignals(userID, roomID)
	}
	signals.RecordAction(action, category)
	if err := o.proactiveRepo.Save(ctx, signals); err != nil {
		o.logger.Warn("orchestrator: save proactive signals failed", zap.Error(err))
	}
}
