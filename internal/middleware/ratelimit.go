package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/issuetrack/internal/config"
	"github.com/huangang/issuetrack/internal/metrics"
	"github.com/huangang/issuetrack/pkg/logger"
	"github.com/huangang/issuetrack/pkg/response"
	"golang.org/x/time/rate"
)

const (
	throttleIdleTTL       = 10 * time.Minute
	throttleSweepInterval = time.Minute
)

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// AuthThrottle limits register and login attempts per client IP. Those are
// the only routes reachable without a token.
type AuthThrottle struct {
	mu      sync.Mutex
	clients map[string]*throttleEntry
	limit   rate.Limit
	burst   int
	metrics *metrics.Metrics

	stop     chan struct{}
	stopOnce sync.Once
}

// NewAuthThrottle starts the idle sweeper. Call Stop on shutdown.
func NewAuthThrottle(cfg config.RateLimitConfig, m *metrics.Metrics) *AuthThrottle {
	t := &AuthThrottle{
		clients: make(map[string]*throttleEntry),
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		metrics: m,
		stop:    make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Stop ends the sweeper. It is safe to call more than once.
func (t *AuthThrottle) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *AuthThrottle) allow(ip string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.clients[ip]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops clients idle since before now minus the TTL and returns how
// many remain.
func (t *AuthThrottle) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ip, entry := range t.clients {
		if now.Sub(entry.lastSeen) > throttleIdleTTL {
			delete(t.clients, ip)
		}
	}
	return len(t.clients)
}

func (t *AuthThrottle) sweepLoop() {
	ticker := time.NewTicker(throttleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.sweep(now)
		}
	}
}

// Middleware rejects a client over its budget with a too_many_requests
// envelope before any credential is checked.
func (t *AuthThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !t.allow(ip, time.Now()) {
			t.metrics.IncrementThrottled(c.FullPath())
			logger.Warn().
				Str("ip", ip).
				Str("path", c.FullPath()).
				Str("request_id", c.GetString(logger.RequestIDKey)).
				Msg("auth request throttled")
			response.TooManyRequests(c, "too many attempts, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
