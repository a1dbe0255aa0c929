package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Allows the listed origins, or any origin when the list contains "*"
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || allowAll {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+SessionHeader+", "+RequestIDHeader)
				c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				c.Header("Access-Control-Expose-Headers", strings.Join([]string{
					SessionHeader, RequestIDHeader, "Retry-After",
					"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
				}, ", "))
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
