package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	rateLimitPrefix = "rl:write:"
	rateWindow      = time.Minute
	limiterIdleTTL  = 10 * time.Minute
)

// WriteRateLimit caps unsafe requests per client IP at perMinute. With Redis
// it counts fixed one-minute windows shared across instances; without Redis it
// falls back to in-process token buckets. perMinute <= 0 disables limiting.
func WriteRateLimit(cache *redis.Client, perMinute int, logger *slog.Logger) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	var local *keyedLimiter
	if cache == nil {
		local = newKeyedLimiter(rate.Every(rateWindow/time.Duration(perMinute)), perMinute)
	}

	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		client := c.IP()
		if local != nil {
			if !local.allow(client, time.Now()) {
				return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
			}
			return c.Next()
		}

		key := rateLimitPrefix + client
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			logger.Warn("rate limit counter failed", slog.String("client", client), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, rateWindow)
		}
		if cnt > int64(perMinute) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter holds one token bucket per key and evicts idle buckets.
type keyedLimiter struct {
	limit rate.Limit
	burst int
	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{limit: limit, burst: burst, byKey: make(map[string]*limiterEntry)}
}

func (l *keyedLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%256 == 0 {
		cutoff := now.Add(-limiterIdleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}
