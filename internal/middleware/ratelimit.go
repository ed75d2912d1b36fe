package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/emporium/internal/domain"
)

// RateLimiterConfig configures a per-caller token bucket.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int

	// Idle full buckets older than CleanupInterval are dropped. Default 1m.
	CleanupInterval time.Duration

	// KeyFunc identifies the caller. Default CallerKey.
	KeyFunc func(r *http.Request) string
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// RateLimiter throttles order placement per caller. State is in memory, so
// each replica enforces its own budget.
type RateLimiter struct {
	config    RateLimiterConfig
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = CallerKey
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.BurstSize < 1 {
		config.BurstSize = 1
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Take spends one token for key. When none is left it returns false and
// how long until the next token is available.
func (rl *RateLimiter) Take(key string) (bool, time.Duration) {
	now := rl.now()
	burst := float64(rl.config.BurstSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: burst, seen: now}
		rl.buckets[key] = b
	}
	b.tokens = math.Min(burst, b.tokens+now.Sub(b.seen).Seconds()*rl.config.RequestsPerSecond)
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if rl.config.RequestsPerSecond <= 0 {
		return false, rl.config.CleanupInterval
	}
	wait := time.Duration((1 - b.tokens) / rl.config.RequestsPerSecond * float64(time.Second))
	return false, wait
}

// sweep drops idle full buckets at most once per CleanupInterval.
// Callers hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.config.CleanupInterval {
		return
	}
	rl.lastSweep = now
	burst := float64(rl.config.BurstSize)
	for key, b := range rl.buckets {
		refilled := b.tokens + now.Sub(b.seen).Seconds()*rl.config.RequestsPerSecond
		if refilled >= burst && now.Sub(b.seen) > rl.config.CleanupInterval {
			delete(rl.buckets, key)
		}
	}
}

// Len is the number of tracked callers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Middleware rejects over-budget callers with 429 and a Retry-After in
// whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Take(rl.config.KeyFunc(r))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			respondWithError(w, r, domain.Errorf(domain.ERATELIMIT, "checkout.ratelimit", "Too many checkout attempts"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerKey keys authenticated callers by user id and everyone else by
// client IP.
func CallerKey(r *http.Request) string {
	if user := domain.UserFromContext(r.Context()); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + clientIP(r)
}

// clientIP trusts the first X-Forwarded-For hop, which the gateway sets.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
