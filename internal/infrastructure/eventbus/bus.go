package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is anything the bus can carry.
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent is the plain struct implementation of Event.
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

func (e *BaseEvent) Type() string      { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTimestamp }
func (e *BaseEvent) Payload() any      { return e.EventPayload }

// NewEvent stamps a new event with the current time.
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

// Handler reacts to one published event.
type Handler func(ctx context.Context, event Event)

// Bus is the gateway's internal pub/sub fabric: the Orchestrator and
// Workflow Runtime publish lifecycle events onto it (a message got an
// assistant reply, a workflow run finished) and anything interested —
// metrics, audit logging, a future notification fan-out — subscribes
// without the publisher needing to know who's listening.
type Bus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType string, handler Handler)
	Unsubscribe(eventType string, handler Handler)
	Close()
}

// InMemoryBus is a single-process Bus: a buffered channel feeding a
// dispatch goroutine that fans each event out to its handlers
// concurrently. A full buffer drops the event rather than blocking the
// publisher — event delivery here is best-effort, not a durability
// guarantee (use PersistentBus for that).
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	eventChan chan eventWrapper
	closed    bool
	logger    *zap.Logger
	wg        sync.WaitGroup
}

type eventWrapper struct {
	ctx   context.Context
	event Event
}

func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	bus := &InMemoryBus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan eventWrapper, bufferSize),
		logger:    logger,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	select {
	case b.eventChan <- eventWrapper{ctx: ctx, event: event}:
		b.logger.Debug("event published", zap.String("type", event.Type()))
	default:
		b.logger.Warn("event buffer full, dropping event", zap.String("type", event.Type()))
	}
}

func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Debug("handler subscribed", zap.String("event_type", eventType))
}

// Unsubscribe removes the most recently registered handler for
// eventType. Go can't compare function values, so this can't target a
// specific handler by identity — removing the last-registered one is
// the safe default for the common case of one subscriber per type.
func (b *InMemoryBus) Unsubscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	if len(handlers) == 0 {
		return
	}

	b.handlers[eventType] = handlers[:len(handlers)-1]
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
}

func (b *InMemoryBus) dispatch() {
	defer b.wg.Done()

	for wrapper := range b.eventChan {
		b.dispatchEvent(wrapper.ctx, wrapper.event)
	}
}

func (b *InMemoryBus) dispatchEvent(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0)

	if h, ok := b.handlers[event.Type()]; ok {
		handlers = append(handlers, h...)
	}
	if h, ok := b.handlers["*"]; ok {
		handlers = append(handlers, h...)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked",
						zap.String("event_type", event.Type()),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, event)
		}(handler)
	}
	wg.Wait()
}

// Gateway lifecycle event types (spec §4.E, §4.J, §4.K, §4.M).
const (
	EventTypeMessageSent       = "message_sent"
	EventTypeAssistantReplied  = "assistant_replied"
	EventTypeWorkflowStarted   = "workflow_started"
	EventTypeWorkflowCompleted = "workflow_completed"
	EventTypeNudgeSent         = "nudge_sent"
	EventTypeError             = "error"
)

// MessageSentPayload accompanies EventTypeMessageSent.
type MessageSentPayload struct {
	RoomID         string
	MessageID      string
	AuthorMemberID string
}

// AssistantRepliedPayload accompanies EventTypeAssistantReplied.
type AssistantRepliedPayload struct {
	RoomID    string
	MessageID string
	Action    string
}

// WorkflowEventPayload accompanies EventTypeWorkflowStarted and
// EventTypeWorkflowCompleted.
type WorkflowEventPayload struct {
	WorkflowName string
	ExecutionID  string
	TriggerType  string
	Status       string
}

// NudgeSentPayload accompanies EventTypeNudgeSent.
type NudgeSentPayload struct {
	RoomID string
	UserID string
	Reason string
}

// ErrorPayload accompanies EventTypeError.
type ErrorPayload struct {
	Component string
	Error     string
}
