package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/models"
	"github.com/seoinsight/seoinsight/internal/security"
)

// Limiter decides whether one more request for key fits in the current
// minute.
type Limiter interface {
	Allow(ctx context.Context, key string) (remaining int, ok bool, err error)
}

type slidingWindow struct {
	mu        sync.Mutex
	requests  []time.Time
	limit     int
	windowDur time.Duration
}

func (sw *slidingWindow) allow(now time.Time) (remaining int, ok bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := now.Add(-sw.windowDur)

	valid := sw.requests[:0]
	for _, t := range sw.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	sw.requests = valid

	if len(sw.requests) >= sw.limit {
		return 0, false
	}
	sw.requests = append(sw.requests, now)
	return sw.limit - len(sw.requests), true
}

// MemoryLimiter keeps a sliding one-minute window per key in process.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	limit   int
	now     func() time.Time
}

func NewMemoryLimiter(limitPerMinute int) *MemoryLimiter {
	rl := &MemoryLimiter{
		windows: make(map[string]*slidingWindow),
		limit:   limitPerMinute,
		now:     time.Now,
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.cleanup()
		}
	}()
	return rl
}

func (rl *MemoryLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-time.Minute)
	for key, sw := range rl.windows {
		sw.mu.Lock()
		if len(sw.requests) == 0 || sw.requests[len(sw.requests)-1].Before(cutoff) {
			delete(rl.windows, key)
		}
		sw.mu.Unlock()
	}
}

func (rl *MemoryLimiter) window(key string) *slidingWindow {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if sw, ok := rl.windows[key]; ok {
		return sw
	}
	sw := &slidingWindow{limit: rl.limit, windowDur: time.Minute}
	rl.windows[key] = sw
	return sw
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (int, bool, error) {
	remaining, ok := rl.window(key).allow(rl.now())
	return remaining, ok, nil
}

var incrWithTTLScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// RedisLimiter shares a fixed one-minute window across instances.
type RedisLimiter struct {
	redis *redis.Client
	limit int
	now   func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, limitPerMinute int) *RedisLimiter {
	return &RedisLimiter{redis: rdb, limit: limitPerMinute, now: time.Now}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (int, bool, error) {
	now := r.now().UTC()
	windowStart := now.Truncate(time.Minute)
	ttl := int64(windowStart.Add(time.Minute).Sub(now).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	k := fmt.Sprintf("seoinsight:ratelimit:%s:%s", key, windowStart.Format("200601021504"))
	used, err := incrWithTTLScript.Run(ctx, r.redis, []string{k}, ttl).Int()
	if err != nil {
		return 0, false, fmt.Errorf("rate limit script: %w", err)
	}
	if used > r.limit {
		return 0, false, nil
	}
	return r.limit - used, true, nil
}

// RateLimit keys on the authenticated subject, then the API key, then the
// client IP. A limiter error lets the request through.
func RateLimit(l Limiter, limitPerMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateKey(r)

			remaining, ok, err := l.Allow(r.Context(), key)
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limitPerMinute))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

			if !ok {
				w.Header().Set("Retry-After", "60")
				models.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(r *http.Request) string {
	if sub, ok := SubjectFromContext(r.Context()); ok {
		return "user:" + sub
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return "key:" + security.HashID(k)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
