package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base doubled per attempt (1-based) with symmetric jitter.
// jitter is a fraction of the delay: 0.2 spreads it by ±20%.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	attempt = max(attempt, 1)
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << (attempt - 1)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
