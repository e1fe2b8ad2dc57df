package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ElementalEngine/core-api-backend/pkg/logger"
	"github.com/ElementalEngine/core-api-backend/pkg/ratelimit"
)

// ReportRateLimitConfig bounds how fast a single reporter may submit
// matches.
type ReportRateLimitConfig struct {
	Limiter *ratelimit.RedisLimiter // nil falls back to a local limiter
	Limit   int
	Window  time.Duration
}

// reporterKey identifies the submitting reporter: the reporter id from
// the query string or the submitted form, then the authenticated
// service, then the client IP. JSON submissions carry no form, so they
// bucket per service.
func reporterKey(c *gin.Context) string {
	reporter := c.Query("reporterId")
	if reporter == "" {
		reporter = c.PostForm("reporterId")
	}
	if reporter != "" {
		return "reporter:" + reporter
	}
	if serviceID, ok := c.Get("serviceId"); ok {
		return fmt.Sprintf("service:%v", serviceID)
	}
	return "ip:" + c.ClientIP()
}

// ReportRateLimit limits match submissions per reporter. Redis errors
// fail open: a broken limiter must not block reporting.
func ReportRateLimit(cfg ReportRateLimitConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	var local *ratelimit.Limiter
	if cfg.Limiter == nil {
		perSecond := int64(cfg.Limit) / int64(cfg.Window.Seconds())
		if perSecond < 1 {
			perSecond = 1
		}
		local = ratelimit.NewLimiter(int64(cfg.Limit), perSecond)
	}

	return func(c *gin.Context) {
		key := reporterKey(c)

		if local != nil {
			if !local.Allow(key) {
				tooManyRequests(c, cfg.Limit, cfg.Window, 1)
				return
			}
			c.Next()
			return
		}

		allowed, info, err := cfg.Limiter.AllowWithInfo(context.Background(), key, cfg.Limit, cfg.Window)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(info.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			tooManyRequests(c, cfg.Limit, cfg.Window, retryAfter)
			return
		}

		c.Next()
	}
}

func tooManyRequests(c *gin.Context, limit int, window time.Duration, retryAfter int) {
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":   "Rate limit exceeded",
		"message": fmt.Sprintf("Too many submissions. Limit: %d per %v", limit, window),
	})
	c.Abort()
}
