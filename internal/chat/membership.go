package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cipher-game/cipher-server/internal/domain"
)

// JoinRequest carries the client-supplied fields of a joinRoom event. Level
// and country are deliberately absent: the registry re-derives them from the
// player store.
type JoinRequest struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Room      string `json:"room"`
	AvatarURL string `json:"avatarUrl"`
}

// Membership implements room join/leave/switch semantics on top of the
// connection registry and typing tracker.
type Membership struct {
	registry *Registry
	typing   *TypingTracker
	bcast    Broadcaster
	logger   *slog.Logger
}

// NewMembership wires the room membership component.
func NewMembership(registry *Registry, typing *TypingTracker, bcast Broadcaster, logger *slog.Logger) *Membership {
	return &Membership{
		registry: registry,
		typing:   typing,
		bcast:    bcast,
		logger:   logger,
	}
}

// Join authenticates the connection and moves it into the requested room.
// The joiner gets a snapshot of the room's other members; those members get
// an incremental userJoined event. An invalid room aborts before any state
// changes. Joining the room the connection is already in is a no-op.
func (m *Membership) Join(ctx context.Context, connID string, req JoinRequest) error {
	targetRoom := req.Room
	if targetRoom == "" {
		targetRoom = domain.DefaultRoom
	}
	if !domain.IsValidRoom(targetRoom) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRoom, targetRoom)
	}

	rec, err := m.registry.Bind(ctx, connID, req.PlayerID, req.Username, req.AvatarURL)
	if err != nil {
		return err
	}

	if rec.Room == targetRoom {
		return nil
	}

	// Implicit leave on a room switch: clear typing state in the old room.
	// No userLeft is broadcast; the connection simply stops appearing in the
	// old room's member list.
	if rec.Room != "" {
		m.typing.Stop(rec.Room, rec.Username)
	}

	m.registry.SetRoom(connID, targetRoom)

	members := m.registry.MembersOf(targetRoom)
	snapshot := make([]domain.Presence, 0, len(members))
	for _, member := range members {
		if member.ConnectionID == connID {
			continue
		}
		snapshot = append(snapshot, member)
	}

	m.bcast.ToConn(connID, EventUserListUpdate, snapshot)

	joined := *rec
	joined.Room = targetRoom
	m.bcast.ToRoomExcept(targetRoom, connID, EventUserJoined, joined)

	m.logger.Debug("user joined room", "username", rec.Username, "room", targetRoom)
	return nil
}

// Disconnect releases the connection's presence and tells the room the
// player left. Safe to call for connections that never joined.
func (m *Membership) Disconnect(connID string) {
	rec, ok := m.registry.Release(connID)
	if !ok || rec.Room == "" {
		return
	}

	m.typing.Stop(rec.Room, rec.Username)
	m.bcast.ToRoom(rec.Room, EventUserLeft, map[string]string{"playerId": rec.PlayerID})

	m.logger.Debug("user left room", "username", rec.Username, "room", rec.Room)
}

// UpdateAvatar applies an avatar change to the connection's presence and
// broadcasts the new profile fields to its room. Unknown connections are
// silently ignored.
func (m *Membership) UpdateAvatar(connID, avatarURL string) {
	rec, ok := m.registry.UpdateAvatar(connID, avatarURL)
	if !ok || rec.Room == "" {
		return
	}

	m.bcast.ToRoom(rec.Room, EventUserProfileUpdated, map[string]any{
		"playerId":  rec.PlayerID,
		"avatarUrl": rec.AvatarURL,
		"level":     rec.Level,
	})
}
