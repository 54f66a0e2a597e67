package auth

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimitConfig is one rate-limit tier. Tiers are configured per route
// group: the general API edge, and the tighter public/integration
// surface.
type LimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// EdgeLimits is the default tier for authenticated API traffic.
func EdgeLimits() LimitConfig {
	return LimitConfig{RequestsPerMinute: 100, Burst: 10}
}

// PublicLimits is the tier for anonymous and integration endpoints.
func PublicLimits() LimitConfig {
	return LimitConfig{RequestsPerMinute: 20, Burst: 5}
}

// RateLimiter applies a token bucket per client IP. Idle buckets are
// swept on access rather than by a background goroutine, so a limiter
// owns no lifecycle.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter for one tier.
func NewRateLimiter(cfg LimitConfig) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg = EdgeLimits()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(cfg.RequestsPerMinute / 60),
		burst:     cfg.Burst,
		idleAfter: 3 * time.Minute,
		lastSweep: time.Now(),
	}
}

// take reserves one token for the client, returning the wait duration
// when the bucket is empty.
func (rl *RateLimiter) take(ip string, now time.Time) (wait time.Duration, remaining int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rl.idleAfter {
		for key, b := range rl.buckets {
			if now.Sub(b.lastSeen) > rl.idleAfter {
				delete(rl.buckets, key)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now

	reservation := b.limiter.ReserveN(now, 1)
	wait = reservation.DelayFrom(now)
	if wait > 0 {
		reservation.CancelAt(now)
	}
	remaining = int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return wait, remaining
}

// ClientIP resolves the caller's address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// Middleware enforces the tier, answering 429 with the standard error
// envelope and Retry-After when the bucket is drained.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		wait, remaining := rl.take(ClientIP(r), now)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if wait > 0 {
			retryAfter := int(wait.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(wait).Unix(), 10))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
