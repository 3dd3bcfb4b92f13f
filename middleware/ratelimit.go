package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// bucket holds one client's remaining tokens as of last.
type bucket struct {
	tokens float64
	last   time.Time
}

// RateLimiter keeps one token bucket per key. Each bucket holds up to
// maxRequests tokens and refills at maxRequests per window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	capacity float64
	perSec   float64
	now      func() time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(maxRequests),
		perSec:   float64(maxRequests) / window.Seconds(),
		now:      time.Now,
	}
}

// Allow spends one token from key's bucket, topping it up for the time
// since the previous call first.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, last: now}
		rl.buckets[key] = b
	}
	b.tokens = min(rl.capacity, b.tokens+now.Sub(b.last).Seconds()*rl.perSec)
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sweep drops buckets idle for longer than idle and returns how many went.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.last) > idle {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps idle buckets every ten minutes until ctx is done.
func (rl *RateLimiter) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(30 * time.Minute)
		}
	}
}

// RateLimit rejects clients whose bucket is empty. Health and websocket
// paths are never limited.
func RateLimit(rl *RateLimiter, message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/health" || strings.HasPrefix(path, "/ws") {
			return c.Next()
		}

		if !rl.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   message,
			})
		}
		return c.Next()
	}
}
