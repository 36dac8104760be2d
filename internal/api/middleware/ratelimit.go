package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig sets per-caller request limits.
type RateLimitConfig struct {
	// Rate is the sustained requests per second allowed per caller IP.
	Rate rate.Limit
	// Burst is the instantaneous allowance per caller IP.
	Burst int
	// CleanupInterval is how often idle caller state is swept.
	CleanupInterval time.Duration
	// MaxAge is how long a caller may stay idle before its state is dropped.
	MaxAge time.Duration
}

// DefaultRateLimitConfig limits the action API: 20 requests/second with a
// burst of 40 is far above any legitimate client of this service.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            rate.Limit(20),
		Burst:           40,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// WebhookRateLimitConfig limits the webhook surface. Call setup fires a
// quick burst of lifecycle callbacks per call and the provider retries
// failed deliveries, so the allowance is much higher than the API's.
func WebhookRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            rate.Limit(50),
		Burst:           100,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// callerLimit is one caller IP's token bucket plus its last activity,
// which drives eviction.
type callerLimit struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter tracks a token bucket per caller IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	callers map[string]*callerLimit
	cfg     RateLimitConfig
	stopCh  chan struct{}
}

// NewIPRateLimiter creates a limiter and starts its eviction loop.
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	rl := &IPRateLimiter{
		callers: make(map[string]*callerLimit),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow reports whether the caller at ip may proceed, consuming one token.
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	c, ok := rl.callers[ip]
	if !ok {
		c = &callerLimit{bucket: rate.NewLimiter(rl.cfg.Rate, rl.cfg.Burst)}
		rl.callers[ip] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.bucket.Allow()
}

// Stop terminates the eviction loop.
func (rl *IPRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *IPRateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

// evictIdle drops callers not seen within MaxAge.
func (rl *IPRateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.cfg.MaxAge)
	evicted := 0
	for ip, c := range rl.callers {
		if c.lastSeen.Before(cutoff) {
			delete(rl.callers, ip)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug("rate limiter evicted idle callers",
			"evicted", evicted, "tracked", len(rl.callers))
	}
}

// RateLimit returns middleware that rejects over-limit callers with 429
// and a Retry-After hint. The provider treats the 429 as a failed webhook
// delivery and retries on its own schedule.
func RateLimit(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractIP(r)

			if !limiter.Allow(ip) {
				slog.Warn("rate limit exceeded",
					"ip", ip,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", "1")
				writeMWError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP strips the port from RemoteAddr. chi's RealIP runs earlier and
// has already folded X-Forwarded-For / X-Real-IP into RemoteAddr when the
// service sits behind a proxy.
func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
