package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cipher-game/cipher-server/internal/chat"
	"github.com/cipher-game/cipher-server/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Client-to-server event names.
const (
	eventJoinRoom      = "joinRoom"
	eventSendMessage   = "sendMessage"
	eventTyping        = "typing"
	eventStopTyping    = "stopTyping"
	eventAvatarUpdated = "avatarUpdated"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin enforcement is handled at the proxy layer
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

type sendMessagePayload struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	PlayerID string `json:"playerId"`
}

type typingPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

type avatarPayload struct {
	AvatarURL string `json:"avatarUrl"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("invalid event format", "error", err)
			c.sendError("invalid event format")
			continue
		}

		c.handleEvent(&env)
	}
}

// handleEvent processes incoming client events. Events from one connection
// are handled in arrival order; the read pump is the only caller.
func (c *Client) handleEvent(env *Envelope) {
	ctx := c.hub.ctx

	switch env.Event {
	case eventJoinRoom:
		var req chat.JoinRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.sendError("invalid joinRoom payload")
			return
		}
		if err := c.hub.membership.Join(ctx, c.id, req); err != nil {
			switch {
			case errors.Is(err, domain.ErrPlayerNotFound):
				c.sendError("Could not authenticate player.")
			case errors.Is(err, domain.ErrInvalidRoom):
				c.sendError("Invalid room specified.")
			default:
				c.logger.Error("joinRoom failed", "connection_id", c.id, "error", err)
				c.sendError("An error occurred while joining the room.")
			}
		}

	case eventSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			c.sendError("invalid sendMessage payload")
			return
		}
		sender, ok := c.hub.registry.Get(c.id)
		if !ok {
			c.sendError("Join a room before sending messages.")
			return
		}
		if _, err := c.hub.relay.Send(ctx, sender, payload.Text); err != nil {
			// Cooldown and persistence failures already produced a
			// sender-only system notice inside the relay.
			if domain.IsValidationError(err) {
				c.sendError(err.Error())
			}
		}

	case eventTyping:
		var payload typingPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		c.hub.typing.Start(payload.Room, payload.Username)

	case eventStopTyping:
		var payload typingPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		c.hub.typing.Stop(payload.Room, payload.Username)

	case eventAvatarUpdated:
		var payload avatarPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		c.hub.membership.UpdateAvatar(c.id, payload.AvatarURL)

	default:
		c.logger.Debug("unknown event", "event", env.Event)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError sends an error event to this client only.
func (c *Client) sendError(msg string) {
	data, err := marshalEnvelope(chat.EventError, map[string]string{"message": msg})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ServeWs handles WebSocket requests from peers
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "connection_id", client.id)
}
