package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cipher-game/cipher-server/internal/config"
	"github.com/cipher-game/cipher-server/internal/domain"
)

const (
	leaderboardKey = "leaderboard:individual"
	playerInfoKey  = "leaderboard:player:%s"
)

// Cache mirrors the materialized leaderboard into Redis so reads never touch
// the database on the hot path.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache creates a Redis-backed leaderboard cache
func NewCache(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Refresh replaces the cached leaderboard with the given rows. The sorted set
// and per-player info hashes are rewritten in a single pipeline.
func (c *Cache) Refresh(ctx context.Context, rows []domain.LeaderboardRow) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, leaderboardKey)

	for _, row := range rows {
		pipe.ZAdd(ctx, leaderboardKey, redis.Z{
			Score:  float64(row.BestScore),
			Member: row.PlayerID,
		})

		info, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshaling leaderboard row: %w", err)
		}
		pipe.Set(ctx, fmt.Sprintf(playerInfoKey, row.PlayerID), info, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing leaderboard cache: %w", err)
	}

	c.logger.Debug("leaderboard cache refreshed", "rows", len(rows))
	return nil
}

// Top returns the highest n cached rows, best score first. A miss on a
// player's info entry drops that row rather than failing the whole read.
func (c *Cache) Top(ctx context.Context, n int) ([]domain.LeaderboardRow, error) {
	ids, err := c.client.ZRevRange(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard cache: %w", err)
	}

	rows := make([]domain.LeaderboardRow, 0, len(ids))
	for _, id := range ids {
		data, err := c.client.Get(ctx, fmt.Sprintf(playerInfoKey, id)).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("reading player info: %w", err)
		}
		var row domain.LeaderboardRow
		if err := json.Unmarshal(data, &row); err != nil {
			c.logger.Warn("skipping malformed cached row", "player_id", id, "error", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Size returns the number of cached leaderboard entries
func (c *Cache) Size(ctx context.Context) (int64, error) {
	return c.client.ZCard(ctx, leaderboardKey).Result()
}
