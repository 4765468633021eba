package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ScanRateLimit bounds scan attempts per account (falling back to client IP)
// using Redis counters. Fails open when the cache is unreachable so payments
// keep flowing during cache outages.
func ScanRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		subject, _ := c.Locals("account_id").(string)
		if subject == "" {
			subject = c.IP()
		}
		key := "rl:scan:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next()
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many scan attempts, try again later")
		}
		return c.Next()
	}
}
