package chat

// Server-to-client event names. The websocket layer wraps payloads in an
// envelope keyed by these names.
const (
	EventUserListUpdate     = "userListUpdate"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventUserProfileUpdated = "userProfileUpdated"
	EventMessage            = "message"
	EventMessageUpdated     = "messageUpdated"
	EventMessageDeleted     = "messageDeleted"
	EventTypingUpdate       = "typingUpdate"
	EventError              = "error"
)

// Broadcaster delivers events to live connections. The websocket hub is the
// production implementation; tests substitute a recorder.
type Broadcaster interface {
	// ToRoom sends an event to every member of a room.
	ToRoom(room, event string, payload any)
	// ToRoomExcept sends an event to every member of a room except one
	// connection.
	ToRoomExcept(room, exceptConnID, event string, payload any)
	// ToConn sends an event to a single connection.
	ToConn(connID, event string, payload any)
}
