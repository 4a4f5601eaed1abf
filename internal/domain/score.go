package domain

import "time"

// ModeAdminAdded marks synthetic zero-value submissions inserted by the
// administrative game-count override. They contribute to the game count but
// never to the best score.
const ModeAdminAdded = "admin_added"

// ScoreSubmission is one verified game result. ID is the client-supplied
// idempotency key; a replayed (PlayerID, ID) pair is rejected, not merged.
type ScoreSubmission struct {
	ID           string    `json:"id"`
	PlayerID     string    `json:"playerId"`
	Score        int64     `json:"score"`
	Mode         string    `json:"mode"`
	MemoryTime   *int      `json:"memoryTime,omitempty"`
	MatchingTime *int      `json:"matchingTime,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ProgressionResult is the player state after an accepted submission or an
// administrative override, recomputed inside the same transaction.
type ProgressionResult struct {
	NewLevel        int   `json:"newLevel"`
	NewGameCount    int   `json:"newGameCount"`
	NewHighestScore int64 `json:"newHighestScore"`
}

// LeaderboardRow is one row of the materialized individual leaderboard.
type LeaderboardRow struct {
	PlayerID     string    `json:"playerid"`
	Username     string    `json:"name"`
	Country      string    `json:"country,omitempty"`
	Flag         string    `json:"flag,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	Level        int       `json:"level"`
	BestScore    int64     `json:"score"`
	Mode         string    `json:"mode,omitempty"`
	HighestScore int64     `json:"highestScore"`
	GameCount    int       `json:"gameCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CountryLeaderboardRow aggregates scores per country.
type CountryLeaderboardRow struct {
	CountryCode  string `json:"countryCode"`
	CountryName  string `json:"countryName"`
	Flag         string `json:"flag"`
	AverageScore int64  `json:"averageScore"`
	PlayerCount  int    `json:"playerCount"`
}
