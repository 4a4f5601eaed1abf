package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cipher-game/cipher-server/internal/config"
	"github.com/cipher-game/cipher-server/internal/domain"
)

const pgUniqueViolation = "23505"

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(64) NOT NULL,
			country VARCHAR(8),
			avatar_url TEXT,
			level INT NOT NULL DEFAULT 0,
			game_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(64) PRIMARY KEY,
			sender_id VARCHAR(64) NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			username VARCHAR(64) NOT NULL,
			message TEXT NOT NULL,
			type VARCHAR(16) NOT NULL DEFAULT 'text',
			timestamp TIMESTAMPTZ NOT NULL,
			room VARCHAR(32) NOT NULL,
			image_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			id VARCHAR(64) NOT NULL,
			player_id VARCHAR(64) NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			score BIGINT NOT NULL,
			mode VARCHAR(32) NOT NULL,
			memory_time INT,
			matching_time INT,
			timestamp TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (player_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages(room, timestamp DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_player ON scores(player_id, score DESC)`,
		`CREATE MATERIALIZED VIEW IF NOT EXISTS leaderboard_view AS
			WITH player_stats AS (
				SELECT player_id,
					   MAX(score) AS highest_score,
					   COUNT(id) AS game_count
				FROM scores
				GROUP BY player_id
			),
			ranked_scores AS (
				SELECT player_id, score, mode, timestamp,
					   ROW_NUMBER() OVER (PARTITION BY player_id ORDER BY score DESC, timestamp DESC) AS rn
				FROM scores
			)
			SELECT p.id AS player_id,
				   p.username,
				   p.country,
				   p.avatar_url,
				   p.level,
				   p.created_at,
				   rs.score AS best_score,
				   rs.mode,
				   ps.highest_score,
				   ps.game_count
			FROM players p
			JOIN ranked_scores rs ON p.id = rs.player_id
			LEFT JOIN player_stats ps ON p.id = ps.player_id
			WHERE rs.rn = 1`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_leaderboard_player ON leaderboard_view (player_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetPlayer retrieves a player by id
func (r *Repository) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	query := `
		SELECT id, username, COALESCE(country, ''), COALESCE(avatar_url, ''), level, game_count, created_at
		FROM players
		WHERE id = $1
	`
	var p domain.Player
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Username,
		&p.Country,
		&p.AvatarURL,
		&p.Level,
		&p.GameCount,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &p, nil
}

// CreatePlayer inserts a player record. Registration itself lives outside
// this core; the method exists for seeding and the ingestion path.
func (r *Repository) CreatePlayer(ctx context.Context, p domain.Player) error {
	query := `
		INSERT INTO players (id, username, country, avatar_url, level, game_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, query, p.ID, p.Username, p.Country, p.AvatarURL, p.Level, p.GameCount, createdAt)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

// InsertMessage persists a chat message
func (r *Repository) InsertMessage(ctx context.Context, msg domain.ChatMessage) error {
	query := `
		INSERT INTO messages (id, sender_id, username, message, type, timestamp, room, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`
	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.Username,
		msg.Text,
		msg.Type,
		msg.Timestamp,
		msg.Room,
		msg.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// GetMessage retrieves a single message by id
func (r *Repository) GetMessage(ctx context.Context, id string) (*domain.ChatMessage, error) {
	query := `
		SELECT id, sender_id, username, message, type, timestamp, room, COALESCE(image_url, '')
		FROM messages
		WHERE id = $1
	`
	var msg domain.ChatMessage
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.Username,
		&msg.Text,
		&msg.Type,
		&msg.Timestamp,
		&msg.Room,
		&msg.ImageURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return &msg, nil
}

// UpdateMessage rewrites a message's text and timestamp
func (r *Repository) UpdateMessage(ctx context.Context, id, text string, at time.Time) error {
	query := `UPDATE messages SET message = $1, timestamp = $2 WHERE id = $3`
	result, err := r.pool.Exec(ctx, query, text, at, id)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// DeleteMessage removes a message by id
func (r *Repository) DeleteMessage(ctx context.Context, id string) error {
	query := `DELETE FROM messages WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// MessageHistory returns a room's messages newest first, joined with the
// sender's current avatar and level.
func (r *Repository) MessageHistory(ctx context.Context, room string, limit, offset int) ([]domain.ChatMessage, error) {
	query := `
		SELECT m.id, m.sender_id, m.username, m.message, m.type, m.timestamp, m.room,
			   COALESCE(m.image_url, ''), COALESCE(p.avatar_url, ''), p.level
		FROM messages m
		JOIN players p ON m.sender_id = p.id
		WHERE m.room = $1
		ORDER BY m.timestamp DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, room, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.ChatMessage, 0, limit)
	for rows.Next() {
		var msg domain.ChatMessage
		err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.Username,
			&msg.Text,
			&msg.Type,
			&msg.Timestamp,
			&msg.Room,
			&msg.ImageURL,
			&msg.AvatarURL,
			&msg.Level,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MessageRooms returns the distinct rooms that hold at least one message
func (r *Repository) MessageRooms(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT room FROM messages ORDER BY room`)
	if err != nil {
		return nil, fmt.Errorf("fetching rooms: %w", err)
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// RecordScore inserts a verified submission and recomputes the player's
// progression fields in one transaction. The game count is re-queried inside
// the transaction so concurrent submissions cannot observe a stale count.
// A replayed (player, submission id) pair fails with ErrDuplicateSubmission
// and leaves no trace.
func (r *Repository) RecordScore(ctx context.Context, sub domain.ScoreSubmission, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO scores (id, player_id, score, mode, memory_time, matching_time, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, insert,
		sub.ID,
		sub.PlayerID,
		sub.Score,
		sub.Mode,
		sub.MemoryTime,
		sub.MatchingTime,
		sub.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.ErrDuplicateSubmission
		}
		return nil, fmt.Errorf("inserting score: %w", err)
	}

	result, err := recomputeProgression(ctx, tx, sub.PlayerID, gamesPerLevel, maxLevel)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing score: %w", err)
	}
	return result, nil
}

// SetGameCount pins a player's game count to target by reconciling synthetic
// admin_added submissions, then recomputes level from the submission count.
// There is no separate counter to drift: the count of rows is the truth.
func (r *Repository) SetGameCount(ctx context.Context, playerID string, target, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error) {
	if target < 0 {
		return nil, domain.ErrInvalidRequest
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scores WHERE player_id = $1 AND mode = $2`, playerID, domain.ModeAdminAdded); err != nil {
		return nil, fmt.Errorf("clearing synthetic scores: %w", err)
	}

	var realCount int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM scores WHERE player_id = $1`, playerID).Scan(&realCount); err != nil {
		return nil, fmt.Errorf("counting scores: %w", err)
	}

	now := time.Now()
	for i := realCount; i < target; i++ {
		id := fmt.Sprintf("%s_%s", domain.ModeAdminAdded, uuid.NewString())
		_, err := tx.Exec(ctx,
			`INSERT INTO scores (id, player_id, score, mode, timestamp) VALUES ($1, $2, 0, $3, $4)`,
			id, playerID, domain.ModeAdminAdded, now,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting synthetic score: %w", err)
		}
	}

	result, err := recomputeProgression(ctx, tx, playerID, gamesPerLevel, maxLevel)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing game count override: %w", err)
	}
	return result, nil
}

// ResetGameCount removes all synthetic submissions and recomputes the
// player's level from the verified games that remain.
func (r *Repository) ResetGameCount(ctx context.Context, playerID string, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scores WHERE player_id = $1 AND mode = $2`, playerID, domain.ModeAdminAdded); err != nil {
		return nil, fmt.Errorf("clearing synthetic scores: %w", err)
	}

	result, err := recomputeProgression(ctx, tx, playerID, gamesPerLevel, maxLevel)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing game count reset: %w", err)
	}
	return result, nil
}

// recomputeProgression derives game count, highest score and level from the
// scores table and writes them back to the player row, all inside the
// caller's transaction. The player row is locked before the count: under
// READ COMMITTED two concurrent submissions would otherwise each count
// before the other commits and both write the same stale game count.
// Serializing on the row lock first means the count statement runs after
// the concurrent committer releases it and sees the committed rows.
func recomputeProgression(ctx context.Context, tx pgx.Tx, playerID string, gamesPerLevel, maxLevel int) (*domain.ProgressionResult, error) {
	var locked int
	err := tx.QueryRow(ctx, `SELECT 1 FROM players WHERE id = $1 FOR UPDATE`, playerID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("locking player row: %w", err)
	}

	var gameCount int
	var highest int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MAX(score), 0) FROM scores WHERE player_id = $1`,
		playerID,
	).Scan(&gameCount, &highest)
	if err != nil {
		return nil, fmt.Errorf("recomputing progression: %w", err)
	}

	level := domain.LevelForGameCount(gameCount, gamesPerLevel, maxLevel)

	result, err := tx.Exec(ctx,
		`UPDATE players SET level = $1, game_count = $2 WHERE id = $3`,
		level, gameCount, playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating player progression: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, domain.ErrPlayerNotFound
	}

	return &domain.ProgressionResult{
		NewLevel:        level,
		NewGameCount:    gameCount,
		NewHighestScore: highest,
	}, nil
}

// RefreshLeaderboardView refreshes the materialized leaderboard. The
// concurrent refresh keeps reads available; it falls back to a plain refresh
// on the first run before the view is populated.
func (r *Repository) RefreshLeaderboardView(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY leaderboard_view`)
	if err != nil {
		r.logger.Warn("concurrent refresh failed, refreshing normally", "error", err)
		if _, err := r.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW leaderboard_view`); err != nil {
			return fmt.Errorf("refreshing leaderboard view: %w", err)
		}
	}
	return nil
}

// LeaderboardRows reads the materialized individual leaderboard, best score
// first.
func (r *Repository) LeaderboardRows(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	query := `
		SELECT player_id, username, COALESCE(country, ''), COALESCE(avatar_url, ''),
			   level, created_at, best_score, mode, COALESCE(highest_score, 0), COALESCE(game_count, 0)
		FROM leaderboard_view
		ORDER BY best_score DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard view: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardRow
	for rows.Next() {
		var row domain.LeaderboardRow
		err := rows.Scan(
			&row.PlayerID,
			&row.Username,
			&row.Country,
			&row.AvatarURL,
			&row.Level,
			&row.CreatedAt,
			&row.BestScore,
			&row.Mode,
			&row.HighestScore,
			&row.GameCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		if row.Country != "" {
			row.Flag = domain.FlagPath(row.Country)
		}
		entries = append(entries, row)
	}
	return entries, rows.Err()
}

// CountryLeaderboard aggregates average score and player count per country.
func (r *Repository) CountryLeaderboard(ctx context.Context) ([]domain.CountryLeaderboardRow, error) {
	query := `
		SELECT p.country,
			   COALESCE(SUM(s.score), 0) AS total_score,
			   COUNT(DISTINCT p.id) AS player_count
		FROM players p
		LEFT JOIN scores s ON p.id = s.player_id
		WHERE p.country IS NOT NULL AND p.country != ''
		GROUP BY p.country
		ORDER BY total_score DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregating country leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.CountryLeaderboardRow
	for rows.Next() {
		var code string
		var total int64
		var count int
		if err := rows.Scan(&code, &total, &count); err != nil {
			return nil, fmt.Errorf("scanning country row: %w", err)
		}
		var avg int64
		if count > 0 {
			avg = total / int64(count)
		}
		entries = append(entries, domain.CountryLeaderboardRow{
			CountryCode:  code,
			CountryName:  domain.CountryName(code),
			Flag:         domain.FlagPath(code),
			AverageScore: avg,
			PlayerCount:  count,
		})
	}
	return entries, rows.Err()
}
