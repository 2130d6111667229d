package entity

import "time"

// ModerationBatchStatus is the lifecycle state of a moderation batch.
type ModerationBatchStatus string

const (
	BatchPending    ModerationBatchStatus = "pending"
	BatchProcessing ModerationBatchStatus = "processing"
	BatchProcessed  ModerationBatchStatus = "processed"
)

// ModerationBatch is a room-scoped bundle of message ids awaiting (or
// having undergone) moderation review (spec §3, §4.D).
type ModerationBatch struct {
	id           string
	roomID       string
	messageIDs   []string
	status       ModerationBatchStatus
	flaggedCount int
	createdAt    time.Time
	processedAt  *time.Time
}

func NewModerationBatch(id, roomID string, messageIDs []string) *ModerationBatch {
	return &ModerationBatch{
		id:         id,
		roomID:     roomID,
		messageIDs: append([]string(nil), messageIDs...),
		status:     BatchPending,
		createdAt:  time.Now(),
	}
}

func ReconstructModerationBatch(
	id, roomID string, messageIDs []string, status ModerationBatchStatus,
	flaggedCount int, createdAt time.Time, processedAt *time.Time,
) *ModerationBatch {
	return &ModerationBatch{
		id:           id,
		roomID:       roomID,
		messageIDs:   append([]string(nil), messageIDs...),
		status:       status,
		flaggedCount: flaggedCount,
		createdAt:    createdAt,
		processedAt:  processedAt,
	}
}

func (b *ModerationBatch) ID() string                       { return b.id }
func (b *ModerationBatch) RoomID() string                   { return b.roomID }
func (b *ModerationBatch) MessageIDs() []string             { return append([]string(nil), b.messageIDs...) }
func (b *ModerationBatch) Status() ModerationBatchStatus     { return b.status }
func (b *ModerationBatch) FlaggedCount() int                 { return b.flaggedCount }
func (b *ModerationBatch) CreatedAt() time.Time              { return b.createdAt }
func (b *ModerationBatch) ProcessedAt() *time.Time           { return b.processedAt }

// MarkProcessing transitions a pending batch to processing.
func (b *ModerationBatch) MarkProcessing() {
	b.status = BatchProcessing
}

// MarkProcessed records the flagged count found and the completion time.
func (b *ModerationBatch) MarkProcessed(flaggedCount int) {
	b.status = BatchProcessed
	b.flaggedCount = flaggedCount
	now := time.Now()
	b.processedAt = &now
}

// UserModerationStatus tracks a (user, room) flag count and mute state
// (spec §3). Muting latches once the flag count crosses a threshold —
// it is never cleared automatically.
type UserModerationStatus struct {
	userID    string
	roomID    string
	flagCount int
	isMuted   bool
}

func NewUserModerationStatus(userID, roomID string) *UserModerationStatus {
	return &UserModerationStatus{userID: userID, roomID: roomID}
}

func ReconstructUserModerationStatus(userID, roomID string, flagCount int, isMuted bool) *UserModerationStatus {
	return &UserModerationStatus{userID: userID, roomID: roomID, flagCount: flagCount, isMuted: isMuted}
}

func (s *UserModerationStatus) UserID() string { return s.userID }
func (s *UserModerationStatus) RoomID() string { return s.roomID }
func (s *UserModerationStatus) FlagCount() int { return s.flagCount }
func (s *UserModerationStatus) IsMuted() bool  { return s.isMuted }

// RecordFlags adds count flags and latches the mute once the running
// total reaches threshold. Muting is one-way: once true, it stays true.
func (s *UserModerationStatus) RecordFlags(count, threshold int) {
	s.flagCount += count
	if s.flagCount >= threshold {
		s.isMuted = true
	}
}
