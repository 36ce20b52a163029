package integrity

import (
	"sync"
	"time"
)

// DefaultWarningDuration is how long a warning banner stays up.
const DefaultWarningDuration = 3 * time.Second

// Cooldown decides when a new warning banner may be shown. Violations that
// arrive while a banner is still visible are recorded but not re-announced.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	until  time.Time
}

// NewCooldown returns a Cooldown with the given banner duration.
func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultWarningDuration
	}
	return &Cooldown{window: window}
}

// Allow reports whether a banner should be shown at now, and if so starts
// a new window.
func (c *Cooldown) Allow(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.until) {
		return false
	}
	c.until = now.Add(c.window)
	return true
}

// Window returns the banner duration.
func (c *Cooldown) Window() time.Duration {
	return c.window
}
