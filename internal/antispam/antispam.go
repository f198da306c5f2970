// Package antispam throttles the commands an interactive session sends.
package antispam

import (
	"sync"
	"time"
)

// Config holds throttle settings
type Config struct {
	Enabled     bool          // Whether throttling is enabled
	MaxCommands int           // Commands allowed in the window
	Window      time.Duration // Sliding window length
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxCommands: 50,
		Window:      10 * time.Second,
	}
}

// ConfigFromYAML creates a Config from YAML-loaded values. Non-positive
// values keep the defaults.
func ConfigFromYAML(enabled bool, maxCommands, windowSeconds int) Config {
	cfg := DefaultConfig()
	cfg.Enabled = enabled
	if maxCommands > 0 {
		cfg.MaxCommands = maxCommands
	}
	if windowSeconds > 0 {
		cfg.Window = time.Duration(windowSeconds) * time.Second
	}
	return cfg
}

// Tracker counts one session's commands over a sliding window
type Tracker struct {
	mu       sync.Mutex
	config   Config
	times    []time.Time // Accepted commands still inside the window, oldest first
	rejected int
	now      func() time.Time
}

// NewTracker creates a tracker with the given config
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config: config,
		times:  make([]time.Time, 0, config.MaxCommands),
		now:    time.Now,
	}
}

// CheckResult is the outcome of Check
type CheckResult struct {
	Allowed bool
	Wait    time.Duration // Until the next command would be accepted, if not allowed
}

// Check records a command and reports whether it may run. Rejected
// commands do not count toward the window.
func (t *Tracker) Check() CheckResult {
	if !t.config.Enabled || t.config.MaxCommands <= 0 {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.expire(now)

	if len(t.times) >= t.config.MaxCommands {
		t.rejected++
		return CheckResult{
			Allowed: false,
			Wait:    t.times[0].Add(t.config.Window).Sub(now),
		}
	}

	t.times = append(t.times, now)
	return CheckResult{Allowed: true}
}

// Rejected returns how many commands have been refused so far
func (t *Tracker) Rejected() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rejected
}

func (t *Tracker) expire(now time.Time) {
	cutoff := now.Add(-t.config.Window)
	kept := t.times[:0]
	for _, at := range t.times {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	t.times = kept
}

// Reset clears all tracking data
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = t.times[:0]
	t.rejected = 0
}
