package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/crypto"
	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/moderation"
	"github.com/cipherroom/gateway/internal/domain/ratelimit"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/infrastructure/presence"
)

// Attachment limits enforced by file_message and voice_message
// (spec §4.E).
const (
	MaxFileBytes  = 5 * 1024 * 1024
	MaxVoiceBytes = 10 * 1024 * 1024
)

var fileExtensionWhitelist = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".pdf": true, ".txt": true,
}

var voiceExtensionWhitelist = map[string]bool{
	".ogg": true, ".mp3": true, ".wav": true, ".m4a": true,
}

// AssistantTrigger drives the orchestration pipeline (§4.G-J, §4.N) for
// a message addressed to the assistant. It is invoked asynchronously
// and must not block the caller.
type AssistantTrigger func(ctx context.Context, roomID, userID, text string)

// ContextHook and IdleHook schedule the Context Store refresh check
// (§4.F) and the Proactive Engine idle check (§4.M); both run
// asynchronously and never block a user message.
type ContextHook func(ctx context.Context, roomID string)
type IdleHook func(ctx context.Context, roomID, userID string)

// Router dispatches the six inbound commands (spec §4.E) against the
// domain components each one touches.
type Router struct {
	hub *Hub

	rooms        repository.RoomRepository
	messages     repository.MessageRepository
	modStatus    repository.ModerationStatusRepository
	presence     presence.Store
	rateGate     ratelimit.Gate
	modBuffer    moderation.Buffer
	modBatches   repository.ModerationBatchRepository
	moderationCfg moderation.Config

	masterKey [crypto.KeySize]byte

	assistantName    string
	assistantTrigger AssistantTrigger
	contextHook      ContextHook
	idleHook         IdleHook

	logger *zap.Logger
}

// RouterConfig bundles Router's dependencies for construction.
type RouterConfig struct {
	Hub               *Hub
	Rooms             repository.RoomRepository
	Messages          repository.MessageRepository
	ModStatus         repository.ModerationStatusRepository
	Presence          presence.Store
	RateGate          ratelimit.Gate
	ModBuffer         moderation.Buffer
	ModBatches        repository.ModerationBatchRepository
	ModerationConfig  moderation.Config
	MasterKey         [crypto.KeySize]byte
	AssistantName     string
	AssistantTrigger  AssistantTrigger
	ContextHook       ContextHook
	IdleHook          IdleHook
	Logger            *zap.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	name := cfg.AssistantName
	if name == "" {
		name = "assistant"
	}
	return &Router{
		hub:              cfg.Hub,
		rooms:            cfg.Rooms,
		messages:         cfg.Messages,
		modStatus:        cfg.ModStatus,
		presence:         cfg.Presence,
		rateGate:         cfg.RateGate,
		modBuffer:        cfg.ModBuffer,
		modBatches:       cfg.ModBatches,
		moderationCfg:    cfg.ModerationConfig,
		masterKey:        cfg.MasterKey,
		assistantName:    strings.ToLower(name),
		assistantTrigger: cfg.AssistantTrigger,
		contextHook:      cfg.ContextHook,
		idleHook:         cfg.IdleHook,
		logger:           cfg.Logger,
	}
}

// Dispatch parses raw and routes it to the matching command handler.
// Parse failures and unknown commands yield an error event to the
// sender only, never a broadcast (spec §4.E).
func (r *Router) Dispatch(ctx context.Context, c *Client, raw []byte) {
	var cmd InboundCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.SendEvent(OutboundEvent{Event: EvtError, Payload: ErrorPayload{Code: "bad_request", Message: "malformed command"}})
		return
	}

	if cmd.SenderID != c.UserID {
		c.SendEvent(OutboundEvent{Event: EvtError, Payload: ErrorPayload{Code: "sender_mismatch", Message: "sender id does not match authenticated user"}})
		return
	}
	if cmd.RoomID != c.RoomID {
		c.SendEvent(OutboundEvent{Event: EvtError, Payload: ErrorPayload{Code: "room_mismatch", Message: "room id does not match joined room"}})
		return
	}

	switch cmd.Command {
	case CmdTyping:
		r.handleTyping(c, cmd)
	case CmdFetchMessages:
		r.handleFetchMessages(ctx, c, cmd)
	case CmdNewMessage:
		r.handleNewMessage(ctx, c, cmd)
	case CmdFileMessage:
		r.handleAttachment(ctx, c, cmd, MaxFileBytes, fileExtensionWhitelist)
	case CmdVoiceMessage:
		r.handleAttachment(ctx, c, cmd, MaxVoiceBytes, voiceExtensionWhitelist)
	case CmdGetQuotas:
		r.handleGetQuotas(ctx, c)
	default:
		c.SendEvent(OutboundEvent{Event: EvtError, Payload: ErrorPayload{Code: "unknown_command", Message: "unrecognized command: " + cmd.Command}})
	}
}

func (r *Router) handleTyping(c *Client, cmd InboundCommand) {
	r.hub.BroadcastExcept(c.RoomID, c.ID, OutboundEvent{Event: EvtTyping, Payload: map[string]string{"user_id": c.UserID}})
}

func (r *Router) handleFetchMessages(ctx context.Context, c *Client, cmd InboundCommand) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = 30
	}

	roomKey, err := r.roomKey(ctx, c.RoomID)
	if err != nil {
		r.sendError(c, "key_unavailable", "cannot load room key")
		return
	}

	fetched, err := r.messages.FindByRoomBefore(ctx, c.RoomID, cmd.BeforeID, limit)
	if err != nil {
		r.sendError(c, "fetch_failed", "could not fetch messages")
		return
	}

	hasMore := len(fetched) > limit
	if hasMore {
		fetched = fetched[:limit]
	}

	// fetched is newest-first; reverse to oldest-first for the reply.
	payloads := make([]MessagePayload, len(fetched))
	for i, m := range fetched {
		payloads[len(fetched)-1-i] = r.renderMessage(m, roomKey)
	}

	var cursor string
	if len(payloads) > 0 {
		cursor = payloads[0].ID
	}

	c.SendEvent(OutboundEvent{Event: EvtMessages, Payload: MessagesPayload{
		Messages: payloads,
		HasMore:  hasMore,
		Cursor:   cursor,
	}})
}

func (r *Router) handleNewMessage(ctx context.Context, c *Client, cmd InboundCommand) {
	if !r.checkNotMuted(ctx, c) {
		return
	}
	if !r.checkRateLimit(ctx, c, ratelimit.ScopeChatMessages) {
		return
	}

	roomKey, err := r.roomKey(ctx, c.RoomID)
	if err != nil {
		r.sendError(c, "key_unavailable", "cannot load room key")
		return
	}

	envelope, err := crypto.Seal(crypto.Payload{Content: cmd.Text, Timestamp: time.Now()}, roomKey)
	if err != nil {
		r.sendError(c, "encrypt_failed", "could not seal message")
		return
	}

	msg, err := entity.NewMessage(uuid.NewString(), c.RoomID, c.UserID, envelope)
	if err != nil {
		r.sendError(c, "invalid_message", err.Error())
		return
	}
	if cmd.ParentID != "" {
		msg.SetParentID(cmd.ParentID)
	}

	if err := r.messages.Save(ctx, msg); err != nil {
		r.sendError(c, "persist_failed", "could not save message")
		return
	}

	r.afterSend(ctx, c, msg, roomKey, cmd.Text)
}

func (r *Router) handleAttachment(ctx context.Context, c *Client, cmd InboundCommand, maxBytes int, whitelist map[string]bool) {
	if !r.checkNotMuted(ctx, c) {
		return
	}
	if !r.checkRateLimit(ctx, c, ratelimit.ScopeFileUploads) {
		return
	}
	if len(cmd.Data) > maxBytes {
		r.sendError(c, "too_large", "attachment exceeds the size limit")
		return
	}
	if !hasWhitelistedExtension(cmd.Filename, whitelist) {
		r.sendError(c, "bad_extension", "attachment extension is not allowed")
		return
	}

	roomKey, err := r.roomKey(ctx, c.RoomID)
	if err != nil {
		r.sendError(c, "key_unavailable", "cannot load room key")
		return
	}

	// Blob storage write is an External Adapter concern (component O);
	// the reference string it returns is sealed the same as text.
	reference := "blob://" + c.RoomID + "/" + uuid.NewString() + "-" + cmd.Filename

	envelope, err := crypto.Seal(crypto.Payload{Content: reference, Timestamp: time.Now()}, roomKey)
	if err != nil {
		r.sendError(c, "encrypt_failed", "could not seal attachment reference")
		return
	}

	msg, err := entity.NewMessage(uuid.NewString(), c.RoomID, c.UserID, envelope)
	if err != nil {
		r.sendError(c, "invalid_message", err.Error())
		return
	}
	msg.SetAudioReference(reference)

	if err := r.messages.Save(ctx, msg); err != nil {
		r.sendError(c, "persist_failed", "could not save message")
		return
	}

	r.afterSend(ctx, c, msg, roomKey, "")
}

// afterSend runs the shared post-persist steps common to every message
// kind: buffer for moderation, fan out, and schedule background checks.
func (r *Router) afterSend(ctx context.Context, c *Client, msg *entity.Message, roomKey [crypto.KeySize]byte, rawText string) {
	if batch, err := moderation.MaybeDrain(ctx, r.modBuffer, r.moderationCfg, uuid.NewString, c.RoomID, msg.ID()); err == nil && batch != nil {
		if r.modBatches != nil {
			_ = r.modBatches.Save(ctx, batch)
		}
	}

	r.hub.Broadcast(c.RoomID, OutboundEvent{Event: EvtMessage, Payload: r.renderMessage(msg, roomKey)})

	if r.contextHook != nil {
		go r.contextHook(context.Background(), c.RoomID)
	}
	if r.idleHook != nil {
		go r.idleHook(context.Background(), c.RoomID, c.UserID)
	}

	if rawText != "" && r.assistantTrigger != nil && addressesAssistant(rawText, r.assistantName) {
		go r.assistantTrigger(context.Background(), c.RoomID, c.UserID, rawText)
	}
}

func (r *Router) handleGetQuotas(ctx context.Context, c *Client) {
	scopes := []ratelimit.Scope{ratelimit.ScopeChatMessages, ratelimit.ScopeOrchestrationCall, ratelimit.ScopeTravelSearch}
	remaining := make(map[string]int64, len(scopes))
	for _, scope := range scopes {
		n, err := r.rateGate.Remaining(ctx, scope, c.UserID)
		if err != nil {
			continue
		}
		remaining[string(scope)] = n
	}
	c.SendEvent(OutboundEvent{Event: EvtQuotas, Payload: QuotasPayload{Remaining: remaining}})
}

func (r *Router) checkNotMuted(ctx context.Context, c *Client) bool {
	if r.modStatus == nil {
		return true
	}
	status, err := r.modStatus.Find(ctx, c.UserID, c.RoomID)
	if err != nil || status == nil {
		return true
	}
	if status.IsMuted() {
		r.sendError(c, "muted", "you are muted in this room")
		return false
	}
	return true
}

func (r *Router) checkRateLimit(ctx context.Context, c *Client, scope ratelimit.Scope) bool {
	ok, err := r.rateGate.Allow(ctx, scope, c.UserID)
	if err != nil || !ok {
		r.sendError(c, "rate_limited", "rate limit exceeded")
		return false
	}
	return true
}

func (r *Router) roomKey(ctx context.Context, roomID string) ([crypto.KeySize]byte, error) {
	var key [crypto.KeySize]byte
	room, err := r.rooms.FindByID(ctx, roomID)
	if err != nil {
		return key, err
	}
	return crypto.UnsealRoomKey(r.masterKey, room.SealedKey())
}

func (r *Router) renderMessage(m *entity.Message, roomKey [crypto.KeySize]byte) MessagePayload {
	payload, err := crypto.Open(m.Envelope(), roomKey)
	plaintext := ""
	if err == nil {
		plaintext = payload.Content
	}
	return MessagePayload{
		ID:                m.ID(),
		RoomID:            m.RoomID(),
		AuthorMemberID:    m.AuthorMemberID(),
		ParentID:          m.ParentID(),
		Plaintext:         plaintext,
		AudioReference:    m.AudioReference(),
		IsVoice:           m.IsVoice(),
		HasAssistantVoice: m.HasAssistantVoice(),
		Timestamp:         m.Timestamp().Unix(),
	}
}

func (r *Router) sendError(c *Client, code, message string) {
	c.SendEvent(OutboundEvent{Event: EvtError, Payload: ErrorPayload{Code: code, Message: message}})
}

func hasWhitelistedExtension(filename string, whitelist map[string]bool) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	return whitelist[strings.ToLower(filename[idx:])]
}

// addressesAssistant reports whether text begins with the configured
// assistant trigger name, case-insensitively (spec §4.E).
func addressesAssistant(text, name string) bool {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "@") {
		return false
	}
	trimmed = strings.ToLower(trimmed[1:])
	return strings.HasPrefix(trimmed, name)
}
