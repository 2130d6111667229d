// Package proactive implements the Proactive Engine (spec §4.M):
// per-(user, room) idle-activity accounting and idle-nudge evaluation,
// grounded loosely on original_source/Backend/chatbot/reminder_service.py
// (schedule-something-to-fire-later, evaluate conditions at fire time)
// though the reminder service itself is a much simpler parse-and-fire
// job; the priority-ordered reason selection and dismissal tracking
// have no direct precedent in that file and are built fresh from spec
// §4.M's description.
package proactive

import (
	"context"
	"fmt"
	"time"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
)

// Reason is a nudge topic, in the spec's fixed priority order.
type Reason string

const (
	ReasonTravelItinerary          Reason = "travel_itinerary"
	ReasonCommunicationAutomation  Reason = "communication_automation"
	ReasonRecurringReminders       Reason = "recurring_reminders"
	ReasonNoWorkflow               Reason = "no_workflow"
	ReasonNoInvoice                Reason = "no_invoice"
	ReasonNoReminder               Reason = "no_reminder"
	ReasonSummaryChecklist         Reason = "summary_checklist"
)

// priorityOrder is the fixed evaluation order from spec §4.M.
var priorityOrder = []Reason{
	ReasonTravelItinerary,
	ReasonCommunicationAutomation,
	ReasonRecurringReminders,
	ReasonNoWorkflow,
	ReasonNoInvoice,
	ReasonNoReminder,
	ReasonSummaryChecklist,
}

// Facts carries the per-(user, room) signals needed to decide which
// nudge reason applies, beyond what ProactiveSignals already tracks.
type Facts struct {
	HasItinerary               bool
	HasCommunicationAutomation bool
	HasRecurringReminder       bool
	HasAnyWorkflow             bool
	HasInvoiceAutomation       bool
	HasReminder                bool
}

func (f Facts) applies(reason Reason, signals *entity.ProactiveSignals) bool {
	switch reason {
	case ReasonTravelItinerary:
		return signals.CountsByAction["search_flights"]+signals.CountsByAction["search_hotels"] >= 3 && !f.HasItinerary
	case ReasonCommunicationAutomation:
		return !f.HasCommunicationAutomation && signals.CountsByCategory["communication"] > 0
	case ReasonRecurringReminders:
		return !f.HasRecurringReminder
	case ReasonNoWorkflow:
		return !f.HasAnyWorkflow
	case ReasonNoInvoice:
		return !f.HasInvoiceAutomation
	case ReasonNoReminder:
		return !f.HasReminder
	case ReasonSummaryChecklist:
		return true
	}
	return false
}

// Nudge is a composed proactive message awaiting encryption and
// delivery by the caller (the Storage Adapter / Chat Session own that
// part; this package only decides whether and what to say).
type Nudge struct {
	Reason  Reason
	Message string
}

// Engine evaluates idle-nudge conditions and records dismissals.
type Engine struct {
	repo repository.ProactiveSignalsRepository
}

func NewEngine(repo repository.ProactiveSignalsRepository) *Engine {
	return &Engine{repo: repo}
}

// Evaluate runs the idle-nudge decision at the moment a previously
// scheduled timer fires (spec §4.M). lastUserActivityAt is the user's
// most recent message timestamp; if it is after scheduledAt the
// timer is stale and evaluation is cancelled silently.
func (e *Engine) Evaluate(signals *entity.ProactiveSignals, prefs Preferences, facts Facts, scheduledAt, lastUserActivityAt time.Time) (*Nudge, bool) {
	if prefs.Disabled {
		return nil, false
	}
	now := time.Now()
	if now.Before(prefs.SnoozedUntil) {
		return nil, false
	}
	if lastUserActivityAt.After(scheduledAt) {
		return nil, false
	}
	if !signals.LastNudgeAt.IsZero() && now.Sub(signals.LastNudgeAt) < prefs.Frequency.MinGap() {
		return nil, false
	}

	for _, reason := range priorityOrder {
		if !facts.applies(reason, signals) {
			continue
		}
		if signals.IsDismissed(string(reason)) {
			continue
		}
		return &Nudge{Reason: reason, Message: composeMessage(reason)}, true
	}
	return nil, false
}

func composeMessage(reason Reason) string {
	switch reason {
	case ReasonTravelItinerary:
		return "Looks like you've been searching for flights and hotels — want me to put together a single itinerary for your trip?"
	case ReasonCommunicationAutomation:
		return "I can draft and send your follow-up messages automatically next time — want me to set that up?"
	case ReasonRecurringReminders:
		return "Want me to set up a recurring reminder so you don't have to ask me again?"
	case ReasonNoWorkflow:
		return "I can chain these steps into a reusable workflow for you — interested?"
	case ReasonNoInvoice:
		return "I can generate and send an invoice automatically the next time this comes up — want that set up?"
	case ReasonNoReminder:
		return "Would you like me to remind you about this later?"
	case ReasonSummaryChecklist:
		return "Want a quick summary checklist of what we've covered so far?"
	default:
		return "Is there anything I can help automate for you?"
	}
}

// RecordDismissal implements task.DismissalRecorder: when the Adaptive
// Task Machine (component H) abandons an in-flight task, it records
// why here so the Proactive Engine doesn't immediately re-nudge about
// the same abandoned intent.
func (e *Engine) RecordDismissal(ctx context.Context, userID, roomID, reason string) error {
	return e.dismiss(ctx, userID, roomID, reason)
}

// DismissExplicit records a user's direct "stop nudging me" request
// against the signals' last-sent reason (spec §4.M).
func (e *Engine) DismissExplicit(ctx context.Context, userID, roomID string) error {
	signals, err := e.repo.Find(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if signals == nil || signals.LastNudgeReason == "" {
		return nil
	}
	return e.dismiss(ctx, userID, roomID, signals.LastNudgeReason)
}

func (e *Engine) dismiss(ctx context.Context, userID, roomID, reason string) error {
	signals, err := e.repo.Find(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if signals == nil {
		signals = entity.NewProactiveSignals(userID, roomID)
	}
	signals.Dismiss(reason)
	if err := e.repo.Save(ctx, signals); err != nil {
		return fmt.Errorf("proactive: save dismissal: %w", err)
	}
	return nil
}

// RecordNudgeSent persists that a nudge with the given reason was
// just delivered, for the frequency-gap and dismissal bookkeeping on
// the next evaluation.
func (e *Engine) RecordNudgeSent(ctx context.Context, userID, roomID string, reason Reason) error {
	signals, err := e.repo.Find(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if signals == nil {
		signals = entity.NewProactiveSignals(userID, roomID)
	}
	signals.RecordNudge(string(reason))
	return e.repo.Save(ctx, signals)
}
