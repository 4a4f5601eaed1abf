package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownBoundary(t *testing.T) {
	c := NewCooldown(2 * time.Second)
	t0 := time.Now()

	assert.True(t, c.TryConsume("p1", t0), "first message should pass")
	assert.False(t, c.TryConsume("p1", t0.Add(1999*time.Millisecond)), "1999ms after send should be denied")
	assert.True(t, c.TryConsume("p1", t0.Add(2000*time.Millisecond)), "2000ms after send should pass")
}

func TestCooldownDenialDoesNotExtend(t *testing.T) {
	c := NewCooldown(2 * time.Second)
	t0 := time.Now()

	assert.True(t, c.TryConsume("p1", t0))

	// Hammering during the cooldown must not push the window out.
	for ms := 100; ms < 2000; ms += 400 {
		assert.False(t, c.TryConsume("p1", t0.Add(time.Duration(ms)*time.Millisecond)))
	}
	assert.True(t, c.TryConsume("p1", t0.Add(2*time.Second)))
}

func TestCooldownPerPlayer(t *testing.T) {
	c := NewCooldown(2 * time.Second)
	t0 := time.Now()

	assert.True(t, c.TryConsume("p1", t0))
	assert.True(t, c.TryConsume("p2", t0), "another player's cooldown is independent")
	assert.False(t, c.TryConsume("p1", t0.Add(time.Second)))
	assert.False(t, c.TryConsume("p2", t0.Add(time.Second)))
}
