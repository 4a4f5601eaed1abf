package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Cooldown enforces a minimum interval between a player's chat messages.
// Each player gets a single-token limiter that refills once per interval, so
// a denied attempt never pushes the next allowed send further out. State is
// in memory only and resets with the process.
type Cooldown struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

// NewCooldown creates a per-player message cooldown.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// TryConsume reports whether a message from the player is allowed at the
// given instant. Allowed consumes the player's token; denied leaves it
// untouched.
func (c *Cooldown) TryConsume(playerID string, now time.Time) bool {
	c.mu.Lock()
	lim, ok := c.limiters[playerID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.interval), 1)
		c.limiters[playerID] = lim
	}
	c.mu.Unlock()

	return lim.AllowN(now, 1)
}
