package middleware

import (
	"net/http"

	"github.com/autoland/lando/common/ratelimit"
	"github.com/labstack/echo/v4"
)

// RequesterRateLimit limits how many landing submissions one requester may
// make per window. A limit of 0 disables the check. Checks fail open: a
// broken limiter never blocks a landing.
func RequesterRateLimit(limiter *ratelimit.Limiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limit <= 0 {
				return next(c)
			}

			requester := GetRequester(c)
			if requester == "" {
				// Unauthenticated requests are rejected downstream.
				return next(c)
			}

			result, err := limiter.CheckRequesterLimit(c.Request().Context(), requester, limit, windowSec)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error": "rate limit exceeded",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
