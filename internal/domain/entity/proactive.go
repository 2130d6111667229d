package entity

import "time"

// DismissalWindow is how long a user's explicit "stop nudging me about
// X" dismissal is honored before that reason becomes eligible again
// (spec §4.M).
const DismissalWindow = 14 * 24 * time.Hour

// ProactiveSignals is the per-(user, room) accounting the Proactive
// Engine uses to decide whether and when to surface an idle nudge
// (spec §3, §4.M). TTL is roughly 48 hours.
type ProactiveSignals struct {
	UserID           string
	RoomID           string
	CountsByAction   map[string]int
	CountsByCategory map[string]int
	LastAction       string
	LastActionAt     time.Time

	LastNudgeAt     time.Time
	LastNudgeReason string
	DismissedAt     map[string]time.Time
}

func NewProactiveSignals(userID, roomID string) *ProactiveSignals {
	return &ProactiveSignals{
		UserID:           userID,
		RoomID:           roomID,
		CountsByAction:   make(map[string]int),
		CountsByCategory: make(map[string]int),
		DismissedAt:      make(map[string]time.Time),
	}
}

// RecordAction bumps the per-action and per-category counters and
// refreshes the last-action marker.
func (s *ProactiveSignals) RecordAction(action, category string) {
	s.CountsByAction[action]++
	if category != "" {
		s.CountsByCategory[category]++
	}
	s.LastAction = action
	s.LastActionAt = time.Now()
}

func (s *ProactiveSignals) IdleSince() time.Duration {
	if s.LastActionAt.IsZero() {
		return 0
	}
	return time.Since(s.LastActionAt)
}

// RecordNudge marks that a nudge with the given reason was just sent.
func (s *ProactiveSignals) RecordNudge(reason string) {
	s.LastNudgeAt = time.Now()
	s.LastNudgeReason = reason
}

// Dismiss records an explicit dismissal of reason, suppressing it for
// DismissalWindow.
func (s *ProactiveSignals) Dismiss(reason string) {
	if s.DismissedAt == nil {
		s.DismissedAt = make(map[string]time.Time)
	}
	s.DismissedAt[reason] = time.Now()
}

// IsDismissed reports whether reason was dismissed within the last
// DismissalWindow.
func (s *ProactiveSignals) IsDismissed(reason string) bool {
	at, ok := s.DismissedAt[reason]
	if !ok {
		return false
	}
	return time.Since(at) < DismissalWindow
}
