package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cipher-game/cipher-server/internal/chat"
)

// Envelope is the wire format for every event in both directions.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// Hub maintains the set of active clients and routes room-scoped broadcasts
// through the connection registry. It implements chat.Broadcaster.
type Hub struct {
	// Clients by connection id
	clients map[string]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	registry   *chat.Registry
	membership *chat.Membership
	relay      *chat.Relay
	typing     *chat.TypingTracker

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub over the given connection registry. Attach must be
// called before Run.
func NewHub(registry *chat.Registry, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		registry:   registry,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Attach wires the chat components the hub dispatches client events to.
// Split from NewHub because the components themselves broadcast through the
// hub.
func (h *Hub) Attach(membership *chat.Membership, relay *chat.Relay, typing *chat.TypingTracker) {
	h.membership = membership
	h.relay = relay
	h.typing = typing
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Debug("client registered", "connection_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			// Presence release and userLeft broadcast happen after the
			// client is gone so the leaver never receives its own event.
			h.membership.Disconnect(client.id)
			h.logger.Debug("client unregistered", "connection_id", client.id)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// Register adds a client to the hub. Returns without registering once the
// hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub. Pumps that outlive the hub must
// not block here, so a stopped hub absorbs the call.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ToRoom sends an event to every connection currently in a room.
func (h *Hub) ToRoom(room, event string, payload any) {
	h.deliver(h.registry.ConnsInRoom(room), "", event, payload)
}

// ToRoomExcept sends an event to a room, skipping one connection.
func (h *Hub) ToRoomExcept(room, exceptConnID, event string, payload any) {
	h.deliver(h.registry.ConnsInRoom(room), exceptConnID, event, payload)
}

// ToConn sends an event to a single connection.
func (h *Hub) ToConn(connID, event string, payload any) {
	h.deliver([]string{connID}, "", event, payload)
}

func (h *Hub) deliver(connIDs []string, except, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if id == except {
			continue
		}
		client, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "connection_id", id)
		}
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// TotalConnections returns the number of connected clients.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
