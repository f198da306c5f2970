package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/tilecollapse/internal/config"
)

// GenerationBackoff locks out clients whose generation requests keep ending
// in contradictions. Each lockout doubles the previous one up to a cap.
type GenerationBackoff struct {
	mu              sync.Mutex
	clients         map[string]*failureInfo
	maxFailures     int
	lockout         time.Duration
	maxLockout      time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

type failureInfo struct {
	failures     int
	lockedUntil  time.Time
	lockoutCount int
}

// NewGenerationBackoff creates a backoff tracker. Zero settings fall back
// to 5 failures, 30s and 300s.
func NewGenerationBackoff(cfg config.BackoffConfig) *GenerationBackoff {
	b := &GenerationBackoff{
		clients:         make(map[string]*failureInfo),
		maxFailures:     cfg.MaxFailures,
		lockout:         time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:      time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	if b.maxFailures <= 0 {
		b.maxFailures = 5
	}
	if b.lockout <= 0 {
		b.lockout = 30 * time.Second
	}
	if b.maxLockout < b.lockout {
		b.maxLockout = 300 * time.Second
		if b.maxLockout < b.lockout {
			b.maxLockout = b.lockout
		}
	}

	go b.cleanupLoop()
	return b
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (b *GenerationBackoff) Stop() {
	b.stopOnce.Do(func() { close(b.stopCleanup) })
}

// IsLocked reports whether ip is locked out and for how much longer.
func (b *GenerationBackoff) IsLocked(ip string) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.clients[ip]
	if !ok {
		return false, 0
	}
	if now := b.now(); now.Before(info.lockedUntil) {
		return true, info.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a failed generation for ip. It returns true and the
// lockout duration when this failure triggers or falls inside a lockout.
func (b *GenerationBackoff) RecordFailure(ip string) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.clients[ip]
	if !ok {
		info = &failureInfo{}
		b.clients[ip] = info
	}

	now := b.now()
	if now.Before(info.lockedUntil) {
		return true, info.lockedUntil.Sub(now)
	}

	info.failures++
	if info.failures < b.maxFailures {
		return false, 0
	}

	info.lockoutCount++
	duration := b.lockout
	for i := 1; i < info.lockoutCount && duration < b.maxLockout; i++ {
		duration *= 2
	}
	if duration > b.maxLockout {
		duration = b.maxLockout
	}

	info.lockedUntil = now.Add(duration)
	info.failures = 0
	return true, duration
}

// RecordSuccess forgets ip's failure history.
func (b *GenerationBackoff) RecordSuccess(ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, ip)
}

// Failures returns the failures counted toward ip's next lockout.
func (b *GenerationBackoff) Failures(ip string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if info, ok := b.clients[ip]; ok {
		return info.failures
	}
	return 0
}

func (b *GenerationBackoff) cleanupLoop() {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCleanup:
			return
		case <-ticker.C:
			b.cleanup()
		}
	}
}

// cleanup drops clients unlocked for 10 minutes with no pending failures.
func (b *GenerationBackoff) cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-10 * time.Minute)
	for ip, info := range b.clients {
		if info.lockedUntil.Before(cutoff) && info.failures == 0 {
			delete(b.clients, ip)
		}
	}
}
