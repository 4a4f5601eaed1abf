package domain

import "time"

// Message types stored alongside each chat message.
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

// SystemUsername is the sender name used for server-generated notices.
const SystemUsername = "System"

// ChatMessage is a persisted chat message. Text is already sanitized by the
// time it reaches storage. The wire field is "message" to match the client.
type ChatMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Username  string    `json:"username"`
	Text      string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Level     int       `json:"level,omitempty"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	IsSystem  bool      `json:"isSystem,omitempty"`
}

// SystemNotice builds a non-persisted system message for a single recipient.
func SystemNotice(room, text string, at time.Time) ChatMessage {
	return ChatMessage{
		Username:  SystemUsername,
		Text:      text,
		Type:      MessageTypeSystem,
		Timestamp: at,
		Room:      room,
		IsSystem:  true,
	}
}
