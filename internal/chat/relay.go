package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cipher-game/cipher-server/internal/domain"
)

// MessageStore is the persistent message table the relay reads and writes.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg domain.ChatMessage) error
	GetMessage(ctx context.Context, id string) (*domain.ChatMessage, error)
	UpdateMessage(ctx context.Context, id, text string, at time.Time) error
	DeleteMessage(ctx context.Context, id string) error
	// MessageHistory returns messages for a room, newest first.
	MessageHistory(ctx context.Context, room string, limit, offset int) ([]domain.ChatMessage, error)
	MessageRooms(ctx context.Context) ([]string, error)
}

// Relay validates, sanitizes, persists and broadcasts chat messages, and
// propagates edits and deletes to the message's room. A message is broadcast
// only after it has been persisted; a failed persist turns into a
// sender-only system notice.
type Relay struct {
	store     MessageStore
	bcast     Broadcaster
	cooldown  *Cooldown
	typing    *TypingTracker
	sanitizer *Sanitizer
	maxLen    int
	logger    *slog.Logger
	now       func() time.Time
}

// NewRelay wires the message relay.
func NewRelay(store MessageStore, bcast Broadcaster, cooldown *Cooldown, typing *TypingTracker, maxLen int, logger *slog.Logger) *Relay {
	return &Relay{
		store:     store,
		bcast:     bcast,
		cooldown:  cooldown,
		typing:    typing,
		sanitizer: NewSanitizer(),
		maxLen:    maxLen,
		logger:    logger,
		now:       time.Now,
	}
}

// Send accepts a raw message from a live connection, persists it and
// broadcasts it to the sender's current room. Cooldown denials and persist
// failures are reported back to the sender alone.
func (r *Relay) Send(ctx context.Context, sender *domain.Presence, raw string) (*domain.ChatMessage, error) {
	room := sender.Room
	if room == "" {
		room = domain.DefaultRoom
	}

	// A sent message always clears the sender's typing indicator first.
	r.typing.Stop(room, sender.Username)

	now := r.now()
	if !r.cooldown.TryConsume(sender.PlayerID, now) {
		notice := domain.SystemNotice(room, "Please wait before sending another message.", now)
		r.bcast.ToConn(sender.ConnectionID, EventMessage, notice)
		return nil, domain.ErrRateLimited
	}

	if strings.TrimSpace(raw) == "" {
		return nil, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(raw) > r.maxLen {
		return nil, fmt.Errorf("%w (max %d characters)", domain.ErrMessageTooLong, r.maxLen)
	}

	text, err := r.sanitizer.Render(raw)
	if err != nil {
		return nil, fmt.Errorf("sanitizing message: %w", err)
	}
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	msg := domain.ChatMessage{
		ID:        "msg_" + uuid.NewString(),
		SenderID:  sender.PlayerID,
		Username:  sender.Username,
		Text:      text,
		Type:      domain.MessageTypeText,
		Timestamp: now,
		Room:      room,
		AvatarURL: sender.AvatarURL,
		Level:     sender.Level,
	}

	if err := r.store.InsertMessage(ctx, msg); err != nil {
		r.logger.Error("failed to persist chat message", "room", room, "sender_id", sender.PlayerID, "error", err)
		notice := domain.SystemNotice(room, "Your message could not be sent. Please try again.", r.now())
		r.bcast.ToConn(sender.ConnectionID, EventMessage, notice)
		return nil, fmt.Errorf("persisting message: %w", err)
	}

	r.bcast.ToRoom(room, EventMessage, msg)
	return &msg, nil
}

// MessageUpdate is the broadcast payload for an edited message.
type MessageUpdate struct {
	ID        string    `json:"id"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Edit rewrites a message's text. Only the original sender may edit; the
// update is broadcast to the message's room.
func (r *Relay) Edit(ctx context.Context, requesterID, messageID, newText string) (*MessageUpdate, error) {
	if strings.TrimSpace(newText) == "" {
		return nil, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(newText) > r.maxLen {
		return nil, fmt.Errorf("%w (max %d characters)", domain.ErrMessageTooLong, r.maxLen)
	}

	text, err := r.sanitizer.Render(newText)
	if err != nil {
		return nil, fmt.Errorf("sanitizing message: %w", err)
	}
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, domain.ErrNotMessageOwner
	}

	at := r.now()
	if err := r.store.UpdateMessage(ctx, messageID, text, at); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	update := MessageUpdate{ID: messageID, Text: text, Timestamp: at}
	r.bcast.ToRoom(msg.Room, EventMessageUpdated, update)
	return &update, nil
}

// Delete removes a message. Only the original sender may delete; the room is
// told the message id only.
func (r *Relay) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := r.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return domain.ErrNotMessageOwner
	}

	if err := r.store.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	r.bcast.ToRoom(msg.Room, EventMessageDeleted, map[string]string{"id": messageID})
	return nil
}

// History returns a page of a room's messages, oldest first, ready for
// append-order rendering. A room with no messages yields an empty slice.
func (r *Relay) History(ctx context.Context, room string, limit, offset int) ([]domain.ChatMessage, error) {
	msgs, err := r.store.MessageHistory(ctx, room, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	// Storage returns newest first; reverse for the caller.
	out := make([]domain.ChatMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

// Rooms returns the distinct room identifiers that hold at least one message.
func (r *Relay) Rooms(ctx context.Context) ([]string, error) {
	rooms, err := r.store.MessageRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching rooms: %w", err)
	}
	return rooms, nil
}

// IsOwnershipError reports whether the error is an authorization failure.
func IsOwnershipError(err error) bool {
	return errors.Is(err, domain.ErrNotMessageOwner)
}
