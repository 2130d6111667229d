package websocket

// CloseCode enumerates the non-standard close codes the spec mandates
// for session setup failures (§4.E).
const (
	CloseAuthFailed     = 4001
	CloseKeyUnavailable = 4002
	CloseNotRoomMember  = 4003
)

// InboundCommand is the envelope every client-sent frame is parsed into.
// Command-specific fields live alongside it and are ignored by commands
// that don't use them.
type InboundCommand struct {
	Command  string                 `json:"command"`
	SenderID string                 `json:"sender_id"`
	RoomID   string                 `json:"room_id"`
	Text     string                 `json:"text,omitempty"`
	ParentID string                 `json:"parent_id,omitempty"`
	BeforeID string                 `json:"before_id,omitempty"`
	Limit    int                    `json:"limit,omitempty"`
	Filename string                 `json:"filename,omitempty"`
	Data     []byte                 `json:"data,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

const (
	CmdTyping        = "typing"
	CmdFetchMessages = "fetch_messages"
	CmdNewMessage    = "new_message"
	CmdFileMessage   = "file_message"
	CmdVoiceMessage  = "voice_message"
	CmdGetQuotas     = "get_quotas"
)

// OutboundEvent is the envelope every server-sent frame is wrapped in.
type OutboundEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EvtError            = "error"
	EvtPresence         = "presence"
	EvtPresenceSnapshot = "presence_snapshot"
	EvtTyping           = "typing"
	EvtMessage          = "message"
	EvtMessages         = "messages"
	EvtQuotas           = "quotas"
)

// ErrorPayload is sent to the offending sender only, never broadcast.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PresencePayload mirrors a single presence transition broadcast to a
// room's group.
type PresencePayload struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // online | offline
}

// PresenceSnapshotPayload is sent to a client immediately after it joins.
type PresenceSnapshotPayload struct {
	Users    []string         `json:"users"`
	LastSeen map[string]int64 `json:"last_seen"` // unix seconds
}

// MessagePayload is the decrypted, client-facing rendering of a Message.
type MessagePayload struct {
	ID                string `json:"id"`
	RoomID            string `json:"room_id"`
	AuthorMemberID    string `json:"author_member_id"`
	ParentID          string `json:"parent_id,omitempty"`
	Plaintext         string `json:"plaintext"`
	AudioReference    string `json:"audio_reference,omitempty"`
	IsVoice           bool   `json:"is_voice"`
	HasAssistantVoice bool   `json:"has_assistant_voice"`
	Timestamp         int64  `json:"timestamp"`
}

// MessagesPayload answers fetch_messages with the spec §4.E cursor
// pagination contract.
type MessagesPayload struct {
	Messages []MessagePayload `json:"messages"`
	HasMore  bool              `json:"has_more"`
	Cursor   string            `json:"cursor,omitempty"`
}

// QuotasPayload answers get_quotas with remaining counts per scope.
type QuotasPayload struct {
	Remaining map[string]int64 `json:"remaining"`
}
