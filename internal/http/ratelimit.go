package http

import (
	"log/slog"
	"sync"
	"time"
)

// rateLimiter is a fixed-window per-client limiter. Writes against the
// spreadsheet backend are quota-bound, so bursts are rejected early.
type rateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	clients  map[string]*clientWindow
	stop     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	lastSeen time.Time
	requests int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientWindow),
		stop:    make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[clientIP]
	if !ok {
		rl.clients[clientIP] = &clientWindow{lastSeen: now, requests: 1}
		return true
	}
	if now.Sub(c.lastSeen) > rl.window {
		c.requests = 1
		c.lastSeen = now
		return true
	}
	c.requests++
	c.lastSeen = now
	return c.requests <= rl.limit
}

func (rl *rateLimiter) activeClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// evictLoop drops clients idle for more than ten windows.
func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-10 * rl.window)
			evicted := 0
			for ip, c := range rl.clients {
				if c.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
					evicted++
				}
			}
			rl.mu.Unlock()
			if evicted > 0 {
				slog.Debug("Rate limiter evicted idle clients",
					"evicted", evicted,
					"active", rl.activeClients(),
				)
			}
		case <-rl.stop:
			return
		}
	}
}

func (rl *rateLimiter) close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
