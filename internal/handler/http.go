package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cipher-game/cipher-server/internal/auth"
	"github.com/cipher-game/cipher-server/internal/chat"
	"github.com/cipher-game/cipher-server/internal/config"
	"github.com/cipher-game/cipher-server/internal/domain"
	"github.com/cipher-game/cipher-server/internal/service"
	"github.com/cipher-game/cipher-server/internal/websocket"
)

// LeaderboardReader serves cached leaderboard rows.
type LeaderboardReader interface {
	Top(ctx context.Context, n int) ([]domain.LeaderboardRow, error)
}

// CountryReader aggregates the per-country leaderboard.
type CountryReader interface {
	CountryLeaderboard(ctx context.Context) ([]domain.CountryLeaderboardRow, error)
	LeaderboardRows(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
}

// Handler provides the HTTP surface: score submission, chat history and
// moderation, leaderboards, and the WebSocket upgrade.
type Handler struct {
	progression *service.ProgressionEngine
	relay       *chat.Relay
	cache       LeaderboardReader
	repo        CountryReader
	hub         *websocket.Hub
	verifier    *auth.Verifier
	chatCfg     config.ChatConfig
	refreshCfg  config.RefreshConfig
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	progression *service.ProgressionEngine,
	relay *chat.Relay,
	cache LeaderboardReader,
	repo CountryReader,
	hub *websocket.Hub,
	verifier *auth.Verifier,
	chatCfg config.ChatConfig,
	refreshCfg config.RefreshConfig,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		progression: progression,
		relay:       relay,
		cache:       cache,
		repo:        repo,
		hub:         hub,
		verifier:    verifier,
		chatCfg:     chatCfg,
		refreshCfg:  refreshCfg,
		logger:      logger,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.verifier.Middleware)

			r.Post("/scores", h.SubmitScore)

			r.Route("/chat", func(r chi.Router) {
				r.Get("/rooms", h.ListRooms)
				r.Put("/messages/{messageID}", h.EditMessage)
				r.Delete("/messages/{messageID}", h.DeleteMessage)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/players/{playerID}/gamecount", h.SetGameCount)
				r.Delete("/players/{playerID}/gamecount", h.ResetGameCount)
			})
		})

		// History and leaderboards are readable without a token
		r.Get("/chat/history/{room}", h.ChatHistory)
		r.Get("/leaderboard/individual", h.IndividualLeaderboard)
		r.Get("/leaderboard/country", h.CountryLeaderboard)

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeMessage writes an error or status body as {"message": ...}
func (h *Handler) writeMessage(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"message": msg})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_connections": h.hub.TotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// scoreRequest is the POST /scores body. The client supplies its game id as
// the idempotency key.
type scoreRequest struct {
	Score        int64  `json:"score"`
	Mode         string `json:"mode"`
	MemoryTime   *int   `json:"memoryTime,omitempty"`
	MatchingTime *int   `json:"matchingTime,omitempty"`
	ClientGameID string `json:"clientGameId"`
}

// SubmitScore accepts one verified game result for the authenticated player.
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	submission := domain.ScoreSubmission{
		ID:           req.ClientGameID,
		PlayerID:     auth.PlayerID(r.Context()),
		Score:        req.Score,
		Mode:         req.Mode,
		MemoryTime:   req.MemoryTime,
		MatchingTime: req.MatchingTime,
	}

	result, err := h.progression.RecordVerifiedScore(r.Context(), submission)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateSubmission):
			h.writeMessage(w, http.StatusConflict, "Score already submitted")
		case errors.Is(err, domain.ErrInvalidScore), errors.Is(err, domain.ErrInvalidRequest):
			h.writeMessage(w, http.StatusBadRequest, "Invalid score submission")
		case errors.Is(err, domain.ErrPlayerNotFound):
			h.writeMessage(w, http.StatusNotFound, "Player not found")
		default:
			h.logger.Error("failed to record score", "error", err)
			h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":              submission.ID,
		"newLevel":        result.NewLevel,
		"newGameCount":    result.NewGameCount,
		"newHighestScore": result.NewHighestScore,
	})
}

// ChatHistory returns a room's recent messages, oldest first.
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if !domain.IsValidRoom(room) {
		h.writeMessage(w, http.StatusBadRequest, "Invalid room")
		return
	}

	limit := h.chatCfg.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	msgs, err := h.relay.History(r.Context(), room, limit, offset)
	if err != nil {
		h.logger.Error("failed to fetch chat history", "room", room, "error", err)
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, msgs)
}

type editMessageRequest struct {
	Message string `json:"message"`
}

// EditMessage rewrites a message's text if the caller owns it.
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update, err := h.relay.Edit(r.Context(), auth.PlayerID(r.Context()), messageID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound):
			h.writeMessage(w, http.StatusNotFound, "Message not found")
		case errors.Is(err, domain.ErrNotMessageOwner):
			h.writeMessage(w, http.StatusForbidden, "You can only edit your own messages")
		case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrMessageTooLong):
			h.writeMessage(w, http.StatusBadRequest, "Invalid message")
		default:
			h.logger.Error("failed to edit message", "message_id", messageID, "error", err)
			h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, update)
}

// DeleteMessage removes a message if the caller owns it.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	err := h.relay.Delete(r.Context(), auth.PlayerID(r.Context()), messageID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMessageNotFound):
			h.writeMessage(w, http.StatusNotFound, "Message not found")
		case errors.Is(err, domain.ErrNotMessageOwner):
			h.writeMessage(w, http.StatusForbidden, "You can only delete your own messages")
		default:
			h.logger.Error("failed to delete message", "message_id", messageID, "error", err)
			h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeMessage(w, http.StatusOK, "Message deleted")
}

// ListRooms returns the rooms that currently hold messages.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.relay.Rooms(r.Context())
	if err != nil {
		h.logger.Error("failed to list rooms", "error", err)
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if rooms == nil {
		rooms = []string{}
	}
	h.writeJSON(w, http.StatusOK, rooms)
}

// IndividualLeaderboard serves the cached individual leaderboard, falling
// back to the materialized view when the cache is cold.
func (h *Handler) IndividualLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= h.refreshCfg.RowLimit {
			limit = n
		}
	}

	rows, err := h.cache.Top(r.Context(), limit)
	if err != nil || len(rows) == 0 {
		if err != nil {
			h.logger.Warn("leaderboard cache read failed, falling back to database", "error", err)
		}
		rows, err = h.repo.LeaderboardRows(r.Context(), limit)
		if err != nil {
			h.logger.Error("failed to read leaderboard", "error", err)
			h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	if rows == nil {
		rows = []domain.LeaderboardRow{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

// CountryLeaderboard serves the per-country aggregate leaderboard.
func (h *Handler) CountryLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.repo.CountryLeaderboard(r.Context())
	if err != nil {
		h.logger.Error("failed to read country leaderboard", "error", err)
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if rows == nil {
		rows = []domain.CountryLeaderboardRow{}
	}
	h.writeJSON(w, http.StatusOK, rows)
}

type gameCountRequest struct {
	GameCount int `json:"gameCount"`
}

// SetGameCount pins a player's game count to an administrative target.
func (h *Handler) SetGameCount(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	var req gameCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.progression.SetGameCount(r.Context(), playerID, req.GameCount)
	if err != nil {
		h.respondProgressionError(w, playerID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ResetGameCount removes a player's administrative game count override.
func (h *Handler) ResetGameCount(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	result, err := h.progression.ResetGameCount(r.Context(), playerID)
	if err != nil {
		h.respondProgressionError(w, playerID, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) respondProgressionError(w http.ResponseWriter, playerID string, err error) {
	switch {
	case errors.Is(err, domain.ErrPlayerNotFound):
		h.writeMessage(w, http.StatusNotFound, "Player not found")
	case errors.Is(err, domain.ErrInvalidRequest):
		h.writeMessage(w, http.StatusBadRequest, "Invalid request")
	default:
		h.logger.Error("game count operation failed", "player_id", playerID, "error", err)
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
