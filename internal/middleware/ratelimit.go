package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mybeatfi/securegate/internal/ratelimit"
	"go.uber.org/zap"
)

// Applies limiter to every request of the route, keyed by keyFunc. A denial
// is logged as a violation on the session gate when there is one.
func RateLimit(limiter ratelimit.Limiter, class string, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		ctx := c.Request.Context()

		err := ratelimit.Check(ctx, limiter, class, key)
		if err != nil && !errors.Is(err, ratelimit.ErrRateLimited) {
			logger.Error("Rate limit check failed",
				zap.String("class", class),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Rate limit check failed",
			})
			return
		}

		remaining, _ := limiter.Remaining(ctx, key)
		resetIn, _ := limiter.RemainingTime(ctx, key)
		SetRateLimitHeaders(c, limiter.Limit(), remaining, resetIn)

		if err != nil {
			if g := GateFrom(c); g != nil {
				g.LogViolation("Rate limit exceeded for " + class + " requests")
			}

			c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds(resetIn)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": err.Error(),
				"code":  "rate_limited",
				"class": class,
				"limit": limiter.Limit(),
			})
			return
		}

		c.Next()
	}
}

func SetRateLimitHeaders(c *gin.Context, limit, remaining int, resetIn time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetIn).Unix(), 10))
}

// Whole seconds, rounded up
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
