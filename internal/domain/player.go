package domain

import "time"

// Player is the persistent player record, restricted to the fields the chat
// and progression core reads and writes.
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Country   string    `json:"country,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Level     int       `json:"level"`
	GameCount int       `json:"gameCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Presence is the ephemeral record of one live connection. A player with
// several tabs open holds several independent Presence records.
type Presence struct {
	ConnectionID string `json:"-"`
	PlayerID     string `json:"playerId"`
	Username     string `json:"username"`
	Country      string `json:"country,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	Level        int    `json:"level"`
	Room         string `json:"-"`
}

// LevelForGameCount derives a player's level from their cumulative verified
// game count: one level per gamesPerLevel games, capped at maxLevel.
func LevelForGameCount(gameCount, gamesPerLevel, maxLevel int) int {
	if gameCount <= 0 || gamesPerLevel <= 0 {
		return 0
	}
	level := gameCount / gamesPerLevel
	if level > maxLevel {
		return maxLevel
	}
	return level
}
