package server

import (
	"sync"

	"github.com/lawnchairsociety/tilecollapse/internal/config"
)

// sessionSlots bounds how many interactive sessions may be open, per client
// address and overall. A limit of zero is no limit.
type sessionSlots struct {
	perIP, total int

	mu   sync.Mutex
	held map[string]int
	open int
}

func newSessionSlots(cfg config.ConnectionsConfig) *sessionSlots {
	return &sessionSlots{
		perIP: cfg.MaxPerIP,
		total: cfg.MaxTotal,
		held:  make(map[string]int),
	}
}

// acquire takes a slot for ip. The returned release may be called any
// number of times; only the first call frees the slot.
func (p *sessionSlots) acquire(ip string) (release func(), ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if full(p.open, p.total) || full(p.held[ip], p.perIP) {
		return nil, false
	}
	p.held[ip]++
	p.open++

	var once sync.Once
	return func() { once.Do(func() { p.free(ip) }) }, true
}

func (p *sessionSlots) free(ip string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.held[ip]--; p.held[ip] <= 0 {
		delete(p.held, ip)
	}
	p.open--
}

// count reports open sessions and the number of addresses holding them.
func (p *sessionSlots) count() (sessions, addrs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open, len(p.held)
}

func (p *sessionSlots) heldBy(ip string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held[ip]
}

func full(n, limit int) bool {
	return limit > 0 && n >= limit
}
