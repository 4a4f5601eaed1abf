package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cipher-game/cipher-server/internal/domain"
)

// PlayerStore is the slice of the persistent store the registry needs to
// authenticate a joining connection.
type PlayerStore interface {
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
}

// Registry tracks one presence record per live connection. It is process
// local; sharing it across instances needs an external backplane.
type Registry struct {
	mu      sync.RWMutex
	byConn  map[string]*domain.Presence
	players PlayerStore
	logger  *slog.Logger
}

// NewRegistry creates a connection registry backed by the given player store.
func NewRegistry(players PlayerStore, logger *slog.Logger) *Registry {
	return &Registry{
		byConn:  make(map[string]*domain.Presence),
		players: players,
		logger:  logger,
	}
}

// Bind authenticates a connection against the player store and creates (or
// refreshes) its presence record. Level and country always come from the
// store, never from the client. The record's room is preserved across
// rebinds so a room switch can tell where the connection came from.
func (r *Registry) Bind(ctx context.Context, connID, playerID, username, avatarURL string) (*domain.Presence, error) {
	player, err := r.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("authenticating player %q: %w", playerID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &domain.Presence{
		ConnectionID: connID,
		PlayerID:     playerID,
		Username:     username,
		AvatarURL:    avatarURL,
		Level:        player.Level,
		Country:      player.Country,
	}
	if prev, ok := r.byConn[connID]; ok {
		rec.Room = prev.Room
	}
	r.byConn[connID] = rec

	out := *rec
	return &out, nil
}

// Get returns a copy of the presence record for a connection.
func (r *Registry) Get(connID string) (*domain.Presence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	out := *rec
	return &out, true
}

// SetRoom moves a connection's presence into a room.
func (r *Registry) SetRoom(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byConn[connID]; ok {
		rec.Room = room
	}
}

// UpdateAvatar mutates the bound record's avatar in place and returns the
// updated record for broadcast. A connection with no record is ignored.
func (r *Registry) UpdateAvatar(connID, avatarURL string) (*domain.Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	rec.AvatarURL = avatarURL
	out := *rec
	return &out, true
}

// Release removes a connection's presence record. Idempotent: releasing an
// unknown connection returns false.
func (r *Registry) Release(connID string) (*domain.Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	return rec, true
}

// MembersOf returns a snapshot of all presence records currently in a room.
func (r *Registry) MembersOf(room string) []domain.Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var members []domain.Presence
	for _, rec := range r.byConn {
		if rec.Room == room {
			members = append(members, *rec)
		}
	}
	return members
}

// ConnsInRoom returns the connection ids currently in a room.
func (r *Registry) ConnsInRoom(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []string
	for id, rec := range r.byConn {
		if rec.Room == room {
			conns = append(conns, id)
		}
	}
	return conns
}

// Len returns the number of live presence records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
