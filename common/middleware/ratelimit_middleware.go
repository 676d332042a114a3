package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/modelibr/modelibr/common/config"
	"github.com/modelibr/modelibr/common/ratelimit"
)

// UploadRateLimitMiddleware applies the global and per-client upload limits.
// Rate limiting fails open: a Redis error never blocks an upload.
func UploadRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, cfg config.RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Enabled {
				return next(c)
			}

			ctx := c.Request().Context()

			global, err := rateLimiter.CheckGlobalLimit(ctx, cfg.GlobalLimit, cfg.WindowSec)
			if err != nil {
				return next(c)
			}
			if !global.Allowed {
				return tooManyRequests(c, "global_rate_limit_exceeded", global)
			}

			client, err := rateLimiter.CheckClientLimit(ctx, c.RealIP(), cfg.ClientLimit, cfg.WindowSec)
			if err != nil {
				return next(c)
			}
			if !client.Allowed {
				return tooManyRequests(c, "client_rate_limit_exceeded", client)
			}

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, code string, result *ratelimit.RateLimitResult) error {
	return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
		"error":   code,
		"message": "Too many uploads. Please try again later.",
		"details": map[string]interface{}{
			"limit":               result.Limit,
			"retry_after_seconds": result.RetryAfterSeconds,
		},
	})
}
