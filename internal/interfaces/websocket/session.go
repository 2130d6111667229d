package websocket

import (
	"context"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/crypto"
	"github.com/cipherroom/gateway/internal/domain/repository"
	"github.com/cipherroom/gateway/internal/infrastructure/presence"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Authenticator resolves the user id for an inbound connection request,
// e.g. by validating a bearer token or session cookie. ok is false on
// any authentication failure (close code 4001).
type Authenticator func(r *http.Request) (userID string, ok bool)

// Handler upgrades HTTP connections to WebSocket sessions and drives
// each one through the spec §4.E join sequence and lifecycle.
type Handler struct {
	hub    *Hub
	router *Router
	rooms  repository.RoomRepository
	store  presence.Store

	authenticate Authenticator
	masterKey    [crypto.KeySize]byte
	logger       *zap.Logger
}

type HandlerConfig struct {
	Hub            *Hub
	Router         *Router
	Rooms          repository.RoomRepository
	Presence       presence.Store
	Authenticate   Authenticator
	MasterKey      [crypto.KeySize]byte
	Logger         *zap.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		hub:          cfg.Hub,
		router:       cfg.Router,
		rooms:        cfg.Rooms,
		store:        cfg.Presence,
		authenticate: cfg.Authenticate,
		masterKey:    cfg.MasterKey,
		logger:       cfg.Logger,
	}
}

// ServeWS implements the full connection lifecycle described in spec
// §4.E: authenticate, verify membership, load the room key, join the
// fan-out group, exchange presence, then stream commands until
// disconnect.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", zap.Error(err))
		return
	}

	state := NewSessionStateMachine()

	userID, ok := h.authenticate(r)
	if !ok {
		state.Transition(StateClosed)
		writeCloseAndDrop(conn, CloseAuthFailed, "authentication failed")
		return
	}
	state.Transition(StateAuthenticated)

	room, err := h.rooms.FindByID(r.Context(), roomID)
	if err != nil || !room.HasMember(userID) {
		state.Transition(StateClosed)
		writeCloseAndDrop(conn, CloseNotRoomMember, "not a member of this room")
		return
	}

	if _, err := crypto.UnsealRoomKey(h.masterKey, room.SealedKey()); err != nil {
		state.Transition(StateClosed)
		writeCloseAndDrop(conn, CloseKeyUnavailable, "cannot load room key")
		return
	}
	state.Transition(StateJoined)

	client := &Client{
		ID:     userID + ":" + time.Now().Format("20060102150405.000000000"),
		UserID: userID,
		RoomID: roomID,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h.hub,
		logger: h.logger,
		state:  state,
	}

	h.hub.Register(client)
	state.Transition(StateActive)

	ctx := r.Context()
	if err := presence.RemoveThenAdd(ctx, h.store, roomID, userID); err != nil {
		h.logger.Error("presence update failed", zap.Error(err))
	}
	_ = h.store.Touch(ctx, roomID, userID, time.Now())

	h.hub.BroadcastExcept(roomID, client.ID, OutboundEvent{Event: EvtPresence, Payload: PresencePayload{UserID: userID, Status: "online"}})
	h.sendPresenceSnapshot(ctx, client)

	go client.writePump()
	client.readPump(func(c *Client, raw []byte) {
		h.router.Dispatch(ctx, c, raw)
	})

	h.disconnect(client)
}

func (h *Handler) sendPresenceSnapshot(ctx context.Context, c *Client) {
	snap, err := h.store.Snapshot(ctx, c.RoomID)
	if err != nil {
		return
	}
	lastSeen := make(map[string]int64, len(snap.LastSeen))
	for user, t := range snap.LastSeen {
		lastSeen[user] = t.Unix()
	}
	c.SendEvent(OutboundEvent{Event: EvtPresenceSnapshot, Payload: PresenceSnapshotPayload{Users: snap.Users, LastSeen: lastSeen}})
}

// disconnect is idempotent: it may run after a connect that never fully
// completed join, and the underlying presence/Hub operations tolerate
// being called on an already-removed client (spec §4.E).
func (h *Handler) disconnect(c *Client) {
	c.State().Transition(StateClosing)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_ = h.store.Remove(ctx, c.RoomID, c.UserID)
	_ = h.store.Touch(ctx, c.RoomID, c.UserID, time.Now())

	h.hub.BroadcastExcept(c.RoomID, c.ID, OutboundEvent{Event: EvtPresence, Payload: PresencePayload{UserID: c.UserID, Status: "offline"}})

	c.State().Transition(StateClosed)
}

func writeCloseAndDrop(conn *gorillaws.Conn, code int, reason string) {
	deadline := time.Now().Add(2 * time.Second)
	msg := gorillaws.FormatCloseMessage(code, reason)
	conn.WriteControl(gorillaws.CloseMessage, msg, deadline)
	conn.Close()
}
