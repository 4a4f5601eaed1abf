package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cipher-game/cipher-server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordedEvent captures one broadcast for assertion.
type recordedEvent struct {
	Room    string
	Conn    string
	Except  string
	Event   string
	Payload any
}

// recorder implements Broadcaster and remembers every delivery.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) ToRoom(room, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Room: room, Event: event, Payload: payload})
}

func (r *recorder) ToRoomExcept(room, exceptConnID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Room: room, Except: exceptConnID, Event: event, Payload: payload})
}

func (r *recorder) ToConn(connID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Conn: connID, Event: event, Payload: payload})
}

func (r *recorder) byEvent(event string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// fakePlayerStore serves players from a map.
type fakePlayerStore struct {
	players map[string]*domain.Player
}

func (s *fakePlayerStore) GetPlayer(_ context.Context, id string) (*domain.Player, error) {
	p, ok := s.players[id]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	out := *p
	return &out, nil
}

// fakeMessageStore keeps messages in memory, newest first per room.
type fakeMessageStore struct {
	mu         sync.Mutex
	messages   map[string]domain.ChatMessage
	order      []string
	failInsert bool
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]domain.ChatMessage)}
}

func (s *fakeMessageStore) InsertMessage(_ context.Context, msg domain.ChatMessage) error {
	if s.failInsert {
		return context.DeadlineExceeded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	return nil
}

func (s *fakeMessageStore) GetMessage(_ context.Context, id string) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return &msg, nil
}

func (s *fakeMessageStore) UpdateMessage(_ context.Context, id, text string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	msg.Text = text
	msg.Timestamp = at
	s.messages[id] = msg
	return nil
}

func (s *fakeMessageStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(s.messages, id)
	return nil
}

func (s *fakeMessageStore) MessageHistory(_ context.Context, room string, limit, offset int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Insertion order is oldest first; walk backwards for newest first.
	var out []domain.ChatMessage
	skipped := 0
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		msg, ok := s.messages[s.order[i]]
		if !ok || msg.Room != room {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *fakeMessageStore) MessageRooms(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var rooms []string
	for _, msg := range s.messages {
		if !seen[msg.Room] {
			seen[msg.Room] = true
			rooms = append(rooms, msg.Room)
		}
	}
	return rooms, nil
}
