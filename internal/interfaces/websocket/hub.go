package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is a single connected socket, generalized from the teacher's
// flat-map Client (internal/interfaces/websocket/handler.go) with a
// room binding and session lifecycle attached.
type Client struct {
	ID     string
	UserID string
	RoomID string

	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger

	state *SessionStateMachine
}

func (c *Client) State() *SessionStateMachine { return c.state }

// SendEvent marshals and enqueues an OutboundEvent for this client only.
// Never blocks: if the send buffer is full the event is dropped and the
// client stays connected.
func (c *Client) SendEvent(evt OutboundEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Hub fans messages out per room instead of to every connected client
// (generalized from the teacher's single global client map).
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client // roomID -> clientID -> Client

	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.RoomID] == nil {
				h.rooms[client.RoomID] = make(map[string]*Client)
			}
			h.rooms[client.RoomID][client.ID] = client
			h.mu.Unlock()
			h.logger.Info("client joined room", zap.String("room_id", client.RoomID), zap.String("user_id", client.UserID))
		case client := <-h.unregister:
			h.mu.Lock()
			if group, ok := h.rooms[client.RoomID]; ok {
				if _, ok := group[client.ID]; ok {
					delete(group, client.ID)
					close(client.send)
				}
				if len(group) == 0 {
					delete(h.rooms, client.RoomID)
				}
			}
			h.mu.Unlock()
			h.logger.Info("client left room", zap.String("room_id", client.RoomID), zap.String("user_id", client.UserID))
		}
	}
}

// Register and Unregister expose the channel sends so ServeWS and the
// disconnect path don't need access to Hub internals.
func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast fans an event out to every client currently in room.
func (h *Hub) Broadcast(roomID string, evt OutboundEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.rooms[roomID] {
		select {
		case client.send <- data:
		default:
		}
	}
}

// BroadcastExcept is Broadcast but skips one client id, used for
// sender-local echoes the sender already rendered optimistically.
func (h *Hub) BroadcastExcept(roomID, exceptClientID string, evt OutboundEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.rooms[roomID] {
		if id == exceptClientID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (c *Client) readPump(onCommand func(*Client, []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(10 * 1024 * 1024) // voice_message ceiling (10MB, spec §4.E)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", zap.Error(err))
			}
			return
		}
		onCommand(c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close sends a close frame with code and reason, then tears the
// connection down. The 4001/4002/4003 setup failures in ServeWS do not
// use it: they happen before a Client exists and go through
// writeCloseAndDrop.
func (c *Client) Close(code int, reason string) {
	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	c.conn.Close()
}
