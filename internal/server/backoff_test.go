package server

import (
	"testing"
	"time"

	"github.com/lawnchairsociety/tilecollapse/internal/config"
)

// fakeClock is advanced by hand so lockouts can be tested without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBackoff(t *testing.T, cfg config.BackoffConfig) (*GenerationBackoff, *fakeClock) {
	t.Helper()
	b := NewGenerationBackoff(cfg)
	t.Cleanup(b.Stop)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	b.now = clock.now
	return b, clock
}

func TestGenerationBackoff_Basic(t *testing.T) {
	b, _ := newTestBackoff(t, config.BackoffConfig{MaxFailures: 3, LockoutSeconds: 1, MaxLockoutSeconds: 10})
	ip := "192.168.1.1"

	for i := 1; i <= 2; i++ {
		if locked, _ := b.RecordFailure(ip); locked {
			t.Errorf("failure %d should not trigger lockout", i)
		}
	}

	locked, duration := b.RecordFailure(ip)
	if !locked {
		t.Error("third failure should trigger lockout")
	}
	if duration != time.Second {
		t.Errorf("lockout = %v, want 1s", duration)
	}

	if isLocked, _ := b.IsLocked(ip); !isLocked {
		t.Error("IP should be locked")
	}
}

func TestGenerationBackoff_SuccessClears(t *testing.T) {
	b, _ := newTestBackoff(t, config.BackoffConfig{MaxFailures: 3, LockoutSeconds: 1, MaxLockoutSeconds: 10})
	ip := "192.168.1.1"

	b.RecordFailure(ip)
	b.RecordFailure(ip)
	b.RecordSuccess(ip)

	if got := b.Failures(ip); got != 0 {
		t.Errorf("Failures() after success = %d, want 0", got)
	}
	if locked, _ := b.RecordFailure(ip); locked {
		t.Error("first failure after success should not trigger lockout")
	}
}

func TestGenerationBackoff_Doubling(t *testing.T) {
	b, clock := newTestBackoff(t, config.BackoffConfig{MaxFailures: 1, LockoutSeconds: 1, MaxLockoutSeconds: 10})
	ip := "192.168.1.1"

	for _, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second} {
		locked, got := b.RecordFailure(ip)
		if !locked || got != want {
			t.Errorf("RecordFailure() = (%v, %v), want (true, %v)", locked, got, want)
		}
		clock.advance(got + time.Millisecond)
	}
}

func TestGenerationBackoff_FailureWhileLocked(t *testing.T) {
	b, clock := newTestBackoff(t, config.BackoffConfig{MaxFailures: 1, LockoutSeconds: 10, MaxLockoutSeconds: 60})
	ip := "192.168.1.1"

	b.RecordFailure(ip)
	clock.advance(4 * time.Second)

	locked, remaining := b.RecordFailure(ip)
	if !locked || remaining != 6*time.Second {
		t.Errorf("RecordFailure() while locked = (%v, %v), want (true, 6s)", locked, remaining)
	}

	clock.advance(6 * time.Second)
	if isLocked, _ := b.IsLocked(ip); isLocked {
		t.Error("lockout should have expired")
	}
}

func TestGenerationBackoff_MultipleIPs(t *testing.T) {
	b, _ := newTestBackoff(t, config.BackoffConfig{MaxFailures: 2, LockoutSeconds: 1, MaxLockoutSeconds: 10})

	b.RecordFailure("192.168.1.1")
	b.RecordFailure("192.168.1.1")

	if locked, _ := b.IsLocked("192.168.1.1"); !locked {
		t.Error("IP1 should be locked")
	}
	if locked, _ := b.IsLocked("192.168.1.2"); locked {
		t.Error("IP2 should not be locked")
	}
	if locked, _ := b.RecordFailure("192.168.1.2"); locked {
		t.Error("first failure for IP2 should not trigger lockout")
	}
}

func TestGenerationBackoff_Defaults(t *testing.T) {
	b, _ := newTestBackoff(t, config.BackoffConfig{})

	if b.maxFailures != 5 || b.lockout != 30*time.Second || b.maxLockout != 300*time.Second {
		t.Errorf("defaults = %d/%v/%v, want 5/30s/300s", b.maxFailures, b.lockout, b.maxLockout)
	}
}

func TestGenerationBackoff_Cleanup(t *testing.T) {
	b, clock := newTestBackoff(t, config.BackoffConfig{MaxFailures: 1, LockoutSeconds: 1, MaxLockoutSeconds: 1})

	b.RecordFailure("10.0.0.1")
	clock.advance(11 * time.Minute)
	b.cleanup()

	b.mu.Lock()
	n := len(b.clients)
	b.mu.Unlock()
	if n != 0 {
		t.Errorf("cleanup left %d clients, want 0", n)
	}
}
