package transport

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff defaults for observe re-subscription.
const (
	// InitialBackoff is the initial re-subscription delay.
	InitialBackoff = 1 * time.Second

	// MaxBackoff is the maximum re-subscription delay.
	MaxBackoff = 30 * time.Second

	// JitterFactor is the maximum jitter as a fraction of base delay.
	JitterFactor = 0.25
)

// Backoff produces the delay before each re-subscription attempt:
// doubling from Initial up to Max, with up to Jitter extra randomness
// so recovering clients do not stampede a rebooting device.
type Backoff struct {
	mu      sync.Mutex
	next    time.Duration
	initial time.Duration
	max     time.Duration
	jitter  float64
	rng     *rand.Rand
}

// BackoffConfig customizes the delay schedule. Zero values fall back
// to the package defaults.
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// NewBackoff creates a backoff schedule.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		next:    cfg.Initial,
		initial: cfg.Initial,
		max:     cfg.Max,
		jitter:  cfg.Jitter,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay for the upcoming attempt (with jitter) and
// doubles the base for the one after, capped at the maximum.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.next
	if b.jitter > 0 {
		delay += time.Duration(float64(delay) * b.jitter * b.rng.Float64())
	}

	doubled := 2 * b.next
	if doubled > b.max {
		doubled = b.max
	}
	b.next = doubled

	return delay
}

// Reset restarts the schedule from the initial delay. Call after a
// successful recovery.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = b.initial
}
