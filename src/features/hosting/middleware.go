package hosting

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// LogAllRequestsMiddleware logs every request, failed ones at error level.
func LogAllRequestsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		if status >= 500 {
			slog.Error("HTTP request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
				"error", err,
			)
		} else {
			slog.Debug("HTTP request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
			)
		}
		return err
	}
}

// limiterIdleTTL is how long an address may stay quiet before its bucket is dropped.
const limiterIdleTTL = 10 * time.Minute

type addressLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter hands out one token bucket per client address and forgets idle ones.
type clientLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
	limiters  map[string]*addressLimiter
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		idleTTL:   limiterIdleTTL,
		now:       time.Now,
		lastSweep: time.Now(),
		limiters:  make(map[string]*addressLimiter),
	}
}

func (l *clientLimiter) allow(address string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}
	entry, ok := l.limiters[address]
	if !ok {
		entry = &addressLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[address] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// sweepLocked drops buckets of addresses idle for longer than idleTTL. l.mu must be held.
func (l *clientLimiter) sweepLocked(now time.Time) {
	for address, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.limiters, address)
		}
	}
	l.lastSweep = now
}

func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RateLimitMiddleware rejects clients that send requests faster than perSecond.
// A non-positive rate lets everything through.
func RateLimitMiddleware(perSecond float64, burst int) fiber.Handler {
	if perSecond <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	limiter := newClientLimiter(perSecond, burst)
	return func(c *fiber.Ctx) error {
		if !limiter.allow(c.IP()) {
			slog.Info("Request rate limited", "address", c.IP(), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too_many_requests"})
		}
		return c.Next()
	}
}
