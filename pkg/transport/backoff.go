package transport

import (
	"math/rand/v2"
	"time"
)

// Redial backoff defaults.
const (
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
	DefaultMultiplier     = 2.0
)

// BackoffConfig tunes the delay between dial attempts for one server.
// Zero fields take the defaults; Jitter is a fraction of the base delay
// added at random and defaults to none.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = DefaultInitialBackoff
	}
	if c.Max <= 0 {
		c.Max = DefaultMaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier <= 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Backoff yields exponentially growing delays capped at Max.
// It is not safe for concurrent use; the engine guards it with its mutex.
type Backoff struct {
	config   BackoffConfig
	current  time.Duration
	attempts int
}

// NewBackoff creates a backoff starting at config.Initial.
func NewBackoff(config BackoffConfig) *Backoff {
	config = config.withDefaults()
	return &Backoff{config: config, current: config.Initial}
}

// Next returns the delay before the next attempt and grows the base delay.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	if b.config.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.config.Jitter * rand.Float64())
	}

	b.attempts++
	b.current = min(time.Duration(float64(b.current)*b.config.Multiplier), b.config.Max)
	return delay
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() {
	b.current = b.config.Initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int { return b.attempts }
