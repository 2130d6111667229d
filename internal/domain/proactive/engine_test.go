package proactive

import (
	"context"
	"testing"
	"time"

	"github.com/cipherroom/gateway/internal/domain/entity"
)

type stubSignalsRepo struct {
	byKey map[string]*entity.ProactiveSignals
}

func newStubSignalsRepo() *stubSignalsRepo {
	return &stubSignalsRepo{byKey: make(map[string]*entity.ProactiveSignals)}
}

func (r *stubSignalsRepo) key(userID, roomID string) string { return userID + ":" + roomID }

func (r *stubSignalsRepo) Find(ctx context.Context, userID, roomID string) (*entity.ProactiveSignals, error) {
	return r.byKey[r.key(userID, roomID)], nil
}

func (r *stubSignalsRepo) Save(ctx context.Context, sig *entity.ProactiveSignals) error {
	r.byKey[r.key(sig.UserID, sig.RoomID)] = sig
	return nil
}

func (r *stubSignalsRepo) FindAll(ctx context.Context) ([]*entity.ProactiveSignals, error) {
	var out []*entity.ProactiveSignals
	for _, v := range r.byKey {
		out = append(out, v)
	}
	return out, nil
}

func TestEvaluateSkipsWhenDisabled(t *testing.T) {
	e := NewEngine(newStubSignalsRepo())
	signals := entity.NewProactiveSignals("u1", "r1")
	_, ok := e.Evaluate(signals, Preferences{Disabled: true}, Facts{}, time.Now(), time.Time{})
	if ok {
		t.Fatal("expected no nudge when disabled")
	}
}

func TestEvaluateCancelsWhenUserActiveAfterSchedule(t *testing.T) {
	e := NewEngine(newStubSignalsRepo())
	signals := entity.NewProactiveSignals("u1", "r1")
	scheduledAt := time.Now().Add(-time.Minute)
	lastActivity := time.Now()
	_, ok := e.Evaluate(signals, Preferences{Frequency: FrequencyMedium}, Facts{HasAnyWorkflow: true, HasInvoiceAutomation: true, HasReminder: true, HasCommunicationAutomation: true, HasRecurringReminder: true, HasItinerary: true}, scheduledAt, lastActivity)
	if ok {
		t.Fatal("expected evaluation cancelled when user was active after the scheduled time")
	}
}

func TestEvaluatePicksHighestPriorityReason(t *testing.T) {
	e := NewEngine(newStubSignalsRepo())
	signals := entity.NewProactiveSignals("u1", "r1")
	signals.CountsByAction["search_flights"] = 3

	nudge, ok := e.Evaluate(signals, Preferences{Frequency: FrequencyMedium}, Facts{}, time.Now(), time.Time{})
	if !ok {
		t.Fatal("expected a nudge")
	}
	if nudge.Reason != ReasonTravelItinerary {
		t.Fatalf("expected travel itinerary reason to win priority, got %s", nudge.Reason)
	}
}

func TestEvaluateSkipsDismissedReason(t *testing.T) {
	e := NewEngine(newStubSignalsRepo())
	signals := entity.NewProactiveSignals("u1", "r1")
	signals.CountsByAction["search_flights"] = 3
	signals.Dismiss(string(ReasonTravelItinerary))

	nudge, ok := e.Evaluate(signals, Preferences{Frequency: FrequencyMedium}, Facts{}, time.Now(), time.Time{})
	if !ok {
		t.Fatal("expected a nudge to fall through to the next reason")
	}
	if nudge.Reason == ReasonTravelItinerary {
		t.Fatal("expected the dismissed reason to be skipped")
	}
}

func TestEvaluateRespectsFrequencyGap(t *testing.T) {
	e := NewEngine(newStubSignalsRepo())
	signals := entity.NewProactiveSignals("u1", "r1")
	signals.RecordNudge(string(ReasonSummaryChecklist))

	_, ok := e.Evaluate(signals, Preferences{Frequency: FrequencyHigh}, Facts{}, time.Now(), time.Time{})
	if ok {
		t.Fatal("expected no nudge within the minimum frequency gap")
	}
}

func TestRecordDismissalPersists(t *testing.T) {
	repo := newStubSignalsRepo()
	e := NewEngine(repo)
	if err := e.RecordDismissal(context.Background(), "u1", "r1", "travel_itinerary"); err != nil {
		t.Fatalf("record dismissal: %v", err)
	}
	signals, _ := repo.Find(context.Background(), "u1", "r1")
	if signals == nil || !signals.IsDismissed("travel_itinerary") {
		t.Fatal("expected dismissal recorded and persisted")
	}
}

func TestIsExplicitDismissalDetectsTrigger(t *testing.T) {
	if !IsExplicitDismissal("please stop suggesting this nudge") {
		t.Fatal("expected trigger detected")
	}
	if IsExplicitDismissal("please stop the car") {
		t.Fatal("expected no trigger without a topic word")
	}
}

func TestMemoryPendingEvaluationStoreClaimsOnce(t *testing.T) {
	s := NewMemoryPendingEvaluationStore()
	at := time.Now().Add(IdleEvaluationDelay)
	if !s.TrySchedule("u1", "r1", at) {
		t.Fatal("expected first schedule to succeed")
	}
	if s.TrySchedule("u1", "r1", at) {
		t.Fatal("expected second schedule to be rejected while pending")
	}
	s.Clear("u1", "r1")
	if !s.TrySchedule("u1", "r1", at) {
		t.Fatal("expected schedule to succeed again after clearing")
	}
}
