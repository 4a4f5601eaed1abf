package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cipher-game/cipher-server/internal/config"
	"github.com/cipher-game/cipher-server/internal/postgres"
	"github.com/cipher-game/cipher-server/internal/redis"
)

// RefreshWorker keeps the materialized leaderboard view and the Redis cache
// in step with the scores table. It refreshes on a timer and immediately
// after any score write via RequestRefresh; back-to-back requests coalesce
// into one cycle.
type RefreshWorker struct {
	repo    *postgres.Repository
	cache   *redis.Cache
	config  *config.RefreshConfig
	logger  *slog.Logger
	trigger chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewRefreshWorker creates a new refresh worker
func NewRefreshWorker(
	repo *postgres.Repository,
	cache *redis.Cache,
	cfg *config.RefreshConfig,
	logger *slog.Logger,
) *RefreshWorker {
	return &RefreshWorker{
		repo:    repo,
		cache:   cache,
		config:  cfg,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background refresh process
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("refresh worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh process
func (w *RefreshWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("refresh worker stopped")
	return nil
}

// RequestRefresh schedules an out-of-band refresh. Never blocks; a request
// arriving while one is already pending is absorbed by it.
func (w *RefreshWorker) RequestRefresh() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// run is the main worker loop
func (w *RefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.refreshOnce(ctx)
		case <-w.trigger:
			w.refreshOnce(ctx)
		}
	}
}

// refreshOnce refreshes the view and rewrites the cache from it. Failures
// are logged and retried on the next trigger or tick.
func (w *RefreshWorker) refreshOnce(ctx context.Context) {
	startTime := time.Now()

	if err := w.repo.RefreshLeaderboardView(ctx); err != nil {
		w.logger.Error("failed to refresh leaderboard view", "error", err)
		return
	}

	rows, err := w.repo.LeaderboardRows(ctx, w.config.RowLimit)
	if err != nil {
		w.logger.Error("failed to read leaderboard view", "error", err)
		return
	}

	if err := w.cache.Refresh(ctx, rows); err != nil {
		w.logger.Error("failed to refresh leaderboard cache", "error", err)
		return
	}

	w.logger.Info("refresh cycle completed",
		"duration", time.Since(startTime),
		"rows", len(rows),
	)
}

// IsRunning returns whether the worker is currently running
func (w *RefreshWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single refresh cycle (useful for startup warm-up)
func (w *RefreshWorker) RunOnce(ctx context.Context) {
	w.refreshOnce(ctx)
}
