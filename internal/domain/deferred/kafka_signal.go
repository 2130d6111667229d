package deferred

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DeferredTopic is the cross-instance signaling topic for the Deferred
// Queue: guard-flag raises and newly-queued items, so an instance that
// didn't persist the write still learns about it promptly instead of
// waiting for its next poll (spec §4.L backlog-survives-restart note).
const DeferredTopic = "workflow.deferred"

// SignalType distinguishes the two kinds of cross-instance events this
// package needs to propagate.
type SignalType string

const (
	SignalGuardRaised SignalType = "guard_raised"
	SignalItemQueued  SignalType = "item_queued"
)

// Signal is the wire shape published to and consumed from DeferredTopic.
type Signal struct {
	Type       SignalType `json:"type"`
	WorkflowID string     `json:"workflow_id,omitempty"`
	ItemID     string     `json:"item_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// KafkaPublisher publishes Deferred Queue signals, grounded on
// manifold's KafkaCommitPublisher (same writer construction and
// nil-safe Publish/Close idiom).
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	if len(brokers) == 0 {
		return nil
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    DeferredTopic,
		Balancer: &kafka.LeastBytes{},
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, sig Signal) error {
	if p == nil || p.writer == nil {
		return nil
	}
	sig.Timestamp = time.Now()
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Value: payload, Time: sig.Timestamp})
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// KafkaGuardFlag is a GuardFlagStore backed by a locally-cached TTL
// plus a kafka consumer that refreshes the cache whenever any instance
// in the fleet raises the flag — so a guard raised by instance A is
// visible to instance B without waiting for A's own DB write to be
// polled. Reads never touch Kafka: IsSet only consults the local
// cache, which the consumer loop keeps current.
type KafkaGuardFlag struct {
	local      GuardFlagStore
	reader     *kafka.Reader
	logger     *zap.Logger
	cancelOnce chan struct{}
}

func NewKafkaGuardFlag(brokers []string, groupID string, local GuardFlagStore, logger *zap.Logger) *KafkaGuardFlag {
	if logger == nil {
		logger = zap.NewNop()
	}
	var reader *kafka.Reader
	if len(brokers) > 0 {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   DeferredTopic,
		})
	}
	return &KafkaGuardFlag{local: local, reader: reader, logger: logger, cancelOnce: make(chan struct{})}
}

func (g *KafkaGuardFlag) Set(ctx context.Context, ttl time.Duration) error {
	return g.local.Set(ctx, ttl)
}

func (g *KafkaGuardFlag) IsSet(ctx context.Context) (bool, error) {
	return g.local.IsSet(ctx)
}

// Run consumes signals until ctx is cancelled, applying any
// SignalGuardRaised it sees to the local cache. Intended to run in its
// own goroutine alongside the Ticker's poll loop.
func (g *KafkaGuardFlag) Run(ctx context.Context) {
	if g.reader == nil {
		return
	}
	defer g.reader.Close()
	for {
		msg, err := g.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			g.logger.Warn("deferred: kafka guard-flag read failed", zap.Error(err))
			continue
		}
		var sig Signal
		if err := json.Unmarshal(msg.Value, &sig); err != nil {
			continue
		}
		if sig.Type == SignalGuardRaised {
			if err := g.local.Set(ctx, GuardFlagTTL); err != nil {
				g.logger.Warn("deferred: failed to apply remote guard-flag signal", zap.Error(err))
			}
		}
	}
}
