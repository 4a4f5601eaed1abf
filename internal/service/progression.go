package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cipher-game/cipher-server/internal/config"
	"github.com/cipher-game/cipher-server/internal/domain"
)

// ScoreStore persists verified submissions and administrative overrides.
type ScoreStore interface {
	RecordScore(ctx context.Context, sub domain.ScoreSubmission, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error)
	SetGameCount(ctx context.Context, playerID string, target, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error)
	ResetGameCount(ctx context.Context, playerID string, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error)
}

// Refresher is notified after any write that changes leaderboard standings.
type Refresher interface {
	RequestRefresh()
}

// ProgressionEngine validates score submissions and applies the level
// derivation rule. All writes go through the store in a single transaction;
// the engine itself holds no state.
type ProgressionEngine struct {
	store     ScoreStore
	refresher Refresher
	cfg       config.ProgressionConfig
	logger    *slog.Logger
}

// NewProgressionEngine creates a new progression engine
func NewProgressionEngine(store ScoreStore, refresher Refresher, cfg config.ProgressionConfig, logger *slog.Logger) *ProgressionEngine {
	return &ProgressionEngine{
		store:     store,
		refresher: refresher,
		cfg:       cfg,
		logger:    logger,
	}
}

// RecordVerifiedScore persists one game result and returns the player's
// recomputed progression state. A replayed submission id returns
// ErrDuplicateSubmission with no side effects.
func (e *ProgressionEngine) RecordVerifiedScore(ctx context.Context, sub domain.ScoreSubmission) (*domain.ProgressionResult, error) {
	if sub.ID == "" || sub.PlayerID == "" || sub.Mode == "" {
		return nil, domain.ErrInvalidRequest
	}
	if sub.Score < 0 || sub.Score > e.cfg.MaxScore {
		return nil, domain.ErrInvalidScore
	}
	if sub.Timestamp.IsZero() {
		sub.Timestamp = time.Now()
	}

	result, err := e.store.RecordScore(ctx, sub, e.cfg.GamesPerLevel, e.cfg.MaxLevel)
	if err != nil {
		return nil, err
	}

	e.logger.Info("score recorded",
		"player_id", sub.PlayerID,
		"score", sub.Score,
		"mode", sub.Mode,
		"new_level", result.NewLevel,
		"game_count", result.NewGameCount,
	)

	e.refresher.RequestRefresh()
	return result, nil
}

// SetGameCount pins a player's game count for administrative overrides.
func (e *ProgressionEngine) SetGameCount(ctx context.Context, playerID string, target int) (*domain.ProgressionResult, error) {
	if playerID == "" || target < 0 {
		return nil, domain.ErrInvalidRequest
	}

	result, err := e.store.SetGameCount(ctx, playerID, target, e.cfg.GamesPerLevel, e.cfg.MaxLevel)
	if err != nil {
		return nil, fmt.Errorf("setting game count: %w", err)
	}

	e.logger.Info("game count overridden",
		"player_id", playerID,
		"game_count", result.NewGameCount,
		"new_level", result.NewLevel,
	)

	e.refresher.RequestRefresh()
	return result, nil
}

// ResetGameCount removes any administrative override from a player.
func (e *ProgressionEngine) ResetGameCount(ctx context.Context, playerID string) (*domain.ProgressionResult, error) {
	if playerID == "" {
		return nil, domain.ErrInvalidRequest
	}

	result, err := e.store.ResetGameCount(ctx, playerID, e.cfg.GamesPerLevel, e.cfg.MaxLevel)
	if err != nil {
		return nil, fmt.Errorf("resetting game count: %w", err)
	}

	e.logger.Info("game count reset",
		"player_id", playerID,
		"game_count", result.NewGameCount,
		"new_level", result.NewLevel,
	)

	e.refresher.RequestRefresh()
	return result, nil
}
