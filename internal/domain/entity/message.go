package entity

import (
	"time"

	"github.com/cipherroom/gateway/internal/domain/crypto"
)

// Message is an immutable chat message once persisted (spec §3). The
// payload is never held in plaintext here — only the sealed envelope.
type Message struct {
	id                string
	roomID            string
	authorMemberID    string
	parentID          string
	envelope          crypto.Envelope
	audioReference    string
	isVoice           bool
	hasAssistantVoice bool
	timestamp         time.Time
}

// NewMessage creates a new message bound for persistence.
func NewMessage(
	id, roomID, authorMemberID string,
	envelope crypto.Envelope,
) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if roomID == "" {
		return nil, ErrInvalidConversationID
	}
	if (envelope.Ciphertext == "") != (envelope.Nonce == "") {
		return nil, ErrEnvelopeMismatch
	}

	return &Message{
		id:             id,
		roomID:         roomID,
		authorMemberID: authorMemberID,
		envelope:       envelope,
		timestamp:      time.Now(),
	}, nil
}

// ReconstructMessage rebuilds a message from persisted state.
func ReconstructMessage(
	id, roomID, authorMemberID, parentID string,
	envelope crypto.Envelope,
	audioReference string,
	isVoice, hasAssistantVoice bool,
	timestamp time.Time,
) *Message {
	return &Message{
		id:                id,
		roomID:            roomID,
		authorMemberID:    authorMemberID,
		parentID:          parentID,
		envelope:          envelope,
		audioReference:    audioReference,
		isVoice:           isVoice,
		hasAssistantVoice: hasAssistantVoice,
		timestamp:         timestamp,
	}
}

func (m *Message) ID() string               { return m.id }
func (m *Message) RoomID() string           { return m.roomID }
func (m *Message) AuthorMemberID() string   { return m.authorMemberID }
func (m *Message) ParentID() string         { return m.parentID }
func (m *Message) Envelope() crypto.Envelope { return m.envelope }
func (m *Message) AudioReference() string   { return m.audioReference }
func (m *Message) IsVoice() bool            { return m.isVoice }
func (m *Message) HasAssistantVoice() bool  { return m.hasAssistantVoice }
func (m *Message) Timestamp() time.Time     { return m.timestamp }

// IsReply reports whether this message replies to another.
func (m *Message) IsReply() bool {
	return m.parentID != ""
}

// SetParentID attaches a reply target. Only valid before persistence.
func (m *Message) SetParentID(parentID string) {
	m.parentID = parentID
}

// SetAudioReference attaches a pointer to an out-of-band audio blob.
func (m *Message) SetAudioReference(ref string) {
	m.audioReference = ref
	m.isVoice = ref != ""
}

// MarkAssistantVoice records that the assistant replied to this message
// with synthesized speech in addition to text.
func (m *Message) MarkAssistantVoice() {
	m.hasAssistantVoice = true
}
