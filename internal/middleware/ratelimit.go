package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimit applies a fixed-window limit of max requests per window, keyed
// by client IP and route path, counted in Redis so the limit holds across
// replicas. A nil client disables limiting entirely; Redis errors fail
// open so an outage never takes the API down with it.
func RateLimit(rdb *redis.Client, max int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rdb == nil || max <= 0 {
				return next(c)
			}
			key := fmt.Sprintf("rl:%s:%s", c.RealIP(), c.Path())
			ctx := c.Request().Context()

			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if n == 1 {
				rdb.Expire(ctx, key, window)
			}
			if n > int64(max) {
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
			}
			return next(c)
		}
	}
}
