package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cipher-game/cipher-server/internal/auth"
	"github.com/cipher-game/cipher-server/internal/chat"
	"github.com/cipher-game/cipher-server/internal/config"
	"github.com/cipher-game/cipher-server/internal/domain"
	"github.com/cipher-game/cipher-server/internal/service"
	"github.com/cipher-game/cipher-server/internal/websocket"
)

type fixture struct {
	handler  http.Handler
	verifier *auth.Verifier
	messages *memMessageStore
	scores   *memScoreStore
}

type memPlayerStore struct{}

func (memPlayerStore) GetPlayer(_ context.Context, id string) (*domain.Player, error) {
	if id == "p1" || id == "p2" {
		return &domain.Player{ID: id, Username: "user-" + id, Level: 2}, nil
	}
	return nil, domain.ErrPlayerNotFound
}

type memMessageStore struct {
	mu       sync.Mutex
	messages map[string]domain.ChatMessage
	order    []string
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{messages: make(map[string]domain.ChatMessage)}
}

func (s *memMessageStore) InsertMessage(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = msg
	s.order = append(s.order, msg.ID)
	return nil
}

func (s *memMessageStore) GetMessage(_ context.Context, id string) (*domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return &msg, nil
}

func (s *memMessageStore) UpdateMessage(_ context.Context, id, text string, at time.Time) error {
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

func (s *memMessageStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(s.messages, id)
	return nil
}

func (s *memMessageStore) MessageHistory(_ context.Context, room string, limit, offset int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *memMessageStore) MessageRooms(_ context.Context) ([]string, error) {
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

type memScoreStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (s *memScoreStore) RecordScore(_ context.Context, sub domain.ScoreSubmission, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := sub.PlayerID + "/" + sub.ID
	if s.seen[key] {
		return nil, domain.ErrDuplicateSubmission
	}
	s.seen[key] = true
	count := len(s.seen)
	return &domain.ProgressionResult{
		NewLevel:        domain.LevelForGameCount(count, gamesPerLevel, maxLevel),
		NewGameCount:    count,
		NewHighestScore: sub.Score,
	}, nil
}

func (s *memScoreStore) SetGameCount(_ context.Context, playerID string, target, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error) {
	if playerID == "missing" {
		return nil, domain.ErrPlayerNotFound
	}
	return &domain.ProgressionResult{
		NewGameCount: target,
		NewLevel:     domain.LevelForGameCount(target, gamesPerLevel, maxLevel),
	}, nil
}

func (s *memScoreStore) ResetGameCount(_ context.Context, playerID string, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error) {
	return &domain.ProgressionResult{}, nil
}

type memCache struct {
	rows []domain.LeaderboardRow
}

func (c *memCache) Top(_ context.Context, n int) ([]domain.LeaderboardRow, error) {
	if n > len(c.rows) {
		n = len(c.rows)
	}
	return c.rows[:n], nil
}

type memCountryReader struct{}

func (memCountryReader) CountryLeaderboard(_ context.Context) ([]domain.CountryLeaderboardRow, error) {
	return []domain.CountryLeaderboardRow{
		{CountryCode: "TR", CountryName: "Turkey", AverageScore: 1200, PlayerCount: 4},
	}, nil
}

func (memCountryReader) LeaderboardRows(_ context.Context, limit int) ([]domain.LeaderboardRow, error) {
	return nil, nil
}

type noopRefresher struct{}

func (noopRefresher) RequestRefresh() {}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	messages := newMemMessageStore()
	scores := &memScoreStore{}

	registry := chat.NewRegistry(memPlayerStore{}, logger)
	hub := websocket.NewHub(registry, logger)

	typing := chat.NewTypingTracker(5*time.Second, hub)
	cooldown := chat.NewCooldown(2 * time.Second)
	relay := chat.NewRelay(messages, hub, cooldown, typing, 500, logger)

	progressionCfg := config.ProgressionConfig{GamesPerLevel: 30, MaxLevel: 10, MaxScore: 100000}
	progression := service.NewProgressionEngine(scores, noopRefresher{}, progressionCfg, logger)

	verifier := auth.NewVerifier(&config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})

	cache := &memCache{rows: []domain.LeaderboardRow{
		{PlayerID: "p1", Username: "user-p1", BestScore: 4200, Level: 2},
	}}

	h := NewHandler(
		progression,
		relay,
		cache,
		memCountryReader{},
		hub,
		verifier,
		config.ChatConfig{HistoryLimit: 50, MaxMessageLength: 500},
		config.RefreshConfig{RowLimit: 1000},
		logger,
	)

	return &fixture{
		handler:  h.Router(),
		verifier: verifier,
		messages: messages,
		scores:   scores,
	}
}

func (f *fixture) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) token(t *testing.T, playerID string) string {
	t.Helper()
	token, err := f.verifier.NewToken(playerID, "user-"+playerID)
	require.NoError(t, err)
	return token
}

func seedMessage(t *testing.T, f *fixture, id, senderID, room, text string, at time.Time) {
	t.Helper()
	require.NoError(t, f.messages.InsertMessage(context.Background(), domain.ChatMessage{
		ID:        id,
		SenderID:  senderID,
		Username:  "user-" + senderID,
		Text:      text,
		Type:      domain.MessageTypeText,
		Timestamp: at,
		Room:      room,
	}))
}

func TestSubmitScore(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "p1")

	body := map[string]any{"clientGameId": "g1", "score": 4200, "mode": "classic"}
	rr := f.request(t, http.MethodPost, "/api/scores", token, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "g1", resp["id"])
	assert.Contains(t, resp, "newLevel")

	// Replaying the same submission id conflicts.
	rr = f.request(t, http.MethodPost, "/api/scores", token, body)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestSubmitScoreRequiresAuth(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, http.MethodPost, "/api/scores", "", map[string]any{"clientGameId": "g1", "score": 100, "mode": "classic"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSubmitScoreValidation(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "p1")

	rr := f.request(t, http.MethodPost, "/api/scores", token, map[string]any{"clientGameId": "g2", "score": -5, "mode": "classic"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.request(t, http.MethodPost, "/api/scores", token, map[string]any{"score": 100, "mode": "classic"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatHistory(t *testing.T) {
	f := newFixture(t)
	base := time.Now()
	seedMessage(t, f, "m1", "p1", "Europe", "first", base)
	seedMessage(t, f, "m2", "p1", "Europe", "second", base.Add(time.Second))
	seedMessage(t, f, "m3", "p2", "Asia", "elsewhere", base.Add(2*time.Second))

	rr := f.request(t, http.MethodGet, "/api/chat/history/Europe", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var msgs []domain.ChatMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)
}

func TestChatHistoryInvalidRoom(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, http.MethodGet, "/api/chat/history/Atlantis", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	seedMessage(t, f, "m1", "p1", "Europe", "original", time.Now())

	// Owner can edit.
	rr := f.request(t, http.MethodPut, "/api/chat/messages/m1", f.token(t, "p1"), map[string]string{"message": "fixed"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Someone else cannot.
	rr = f.request(t, http.MethodPut, "/api/chat/messages/m1", f.token(t, "p2"), map[string]string{"message": "hijack"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Missing message.
	rr = f.request(t, http.MethodPut, "/api/chat/messages/missing", f.token(t, "p1"), map[string]string{"message": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Empty replacement text.
	rr = f.request(t, http.MethodPut, "/api/chat/messages/m1", f.token(t, "p1"), map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t)
	seedMessage(t, f, "m1", "p1", "Europe", "bye", time.Now())

	rr := f.request(t, http.MethodDelete, "/api/chat/messages/m1", f.token(t, "p2"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.request(t, http.MethodDelete, "/api/chat/messages/m1", f.token(t, "p1"), nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.request(t, http.MethodDelete, "/api/chat/messages/m1", f.token(t, "p1"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListRooms(t *testing.T) {
	f := newFixture(t)
	seedMessage(t, f, "m1", "p1", "Europe", "hi", time.Now())

	rr := f.request(t, http.MethodGet, "/api/chat/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.request(t, http.MethodGet, "/api/chat/rooms", f.token(t, "p1"), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rooms []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rooms))
	assert.Equal(t, []string{"Europe"}, rooms)
}

func TestIndividualLeaderboard(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, http.MethodGet, "/api/leaderboard/individual", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rows []domain.LeaderboardRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].PlayerID)
	assert.Equal(t, int64(4200), rows[0].BestScore)
}

func TestCountryLeaderboard(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, http.MethodGet, "/api/leaderboard/country", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var rows []domain.CountryLeaderboardRow
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "TR", rows[0].CountryCode)
}

func TestGameCountAdmin(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "p1")

	rr := f.request(t, http.MethodPost, "/api/admin/players/p2/gamecount", token, map[string]int{"gameCount": 90})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result domain.ProgressionResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 90, result.NewGameCount)
	assert.Equal(t, 3, result.NewLevel)

	rr = f.request(t, http.MethodPost, "/api/admin/players/missing/gamecount", token, map[string]int{"gameCount": 10})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.request(t, http.MethodDelete, "/api/admin/players/p2/gamecount", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rr := f.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.request(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
