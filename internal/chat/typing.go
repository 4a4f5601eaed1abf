package chat

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TypingTracker keeps the set of usernames currently typing per room. Every
// Start/Stop call broadcasts the room's full set, whether or not it changed,
// so clients can resync from any single update. Entries expire after a TTL to
// cover clients that vanish without a clean stopTyping.
type TypingTracker struct {
	mu    sync.Mutex
	rooms map[string]map[string]time.Time
	ttl   time.Duration
	bcast Broadcaster
	now   func() time.Time
}

// NewTypingTracker creates a tracker with the given expiry TTL.
func NewTypingTracker(ttl time.Duration, bcast Broadcaster) *TypingTracker {
	return &TypingTracker{
		rooms: make(map[string]map[string]time.Time),
		ttl:   ttl,
		bcast: bcast,
		now:   time.Now,
	}
}

// Start marks a username as typing in a room and broadcasts the updated set.
func (t *TypingTracker) Start(room, username string) {
	t.mu.Lock()
	if t.rooms[room] == nil {
		t.rooms[room] = make(map[string]time.Time)
	}
	t.rooms[room][username] = t.now()
	names := t.namesLocked(room)
	t.mu.Unlock()

	t.bcast.ToRoom(room, EventTypingUpdate, names)
}

// Stop clears a username's typing state and broadcasts the updated set. The
// broadcast happens even if the user was not typing.
func (t *TypingTracker) Stop(room, username string) {
	t.mu.Lock()
	if users, ok := t.rooms[room]; ok {
		delete(users, username)
		if len(users) == 0 {
			delete(t.rooms, room)
		}
	}
	names := t.namesLocked(room)
	t.mu.Unlock()

	t.bcast.ToRoom(room, EventTypingUpdate, names)
}

// Typing returns the usernames currently typing in a room, sorted.
func (t *TypingTracker) Typing(room string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.namesLocked(room)
}

// Run sweeps expired entries until the context is cancelled. Rooms whose set
// changes get a typingUpdate broadcast.
func (t *TypingTracker) Run(ctx context.Context) {
	interval := t.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *TypingTracker) sweep() {
	cutoff := t.now().Add(-t.ttl)

	t.mu.Lock()
	changed := make(map[string][]string)
	for room, users := range t.rooms {
		expired := false
		for name, at := range users {
			if at.Before(cutoff) {
				delete(users, name)
				expired = true
			}
		}
		if expired {
			changed[room] = t.namesLocked(room)
			if len(users) == 0 {
				delete(t.rooms, room)
			}
		}
	}
	t.mu.Unlock()

	for room, names := range changed {
		t.bcast.ToRoom(room, EventTypingUpdate, names)
	}
}

// namesLocked returns a sorted, never-nil name list. Callers hold t.mu.
func (t *TypingTracker) namesLocked(room string) []string {
	names := make([]string, 0, len(t.rooms[room]))
	for name := range t.rooms[room] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
