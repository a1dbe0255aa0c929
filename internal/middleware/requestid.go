package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by the middlewares in this package
const (
	KeyRequestID   = "request_id"
	KeySessionID   = "session_id"
	KeyGate        = "gate"
	KeyUserID      = "user_id"
	KeyEmail       = "email"
	KeyRole        = "role"
	KeyAccountType = "account_type"
	KeyClaims      = "claims"
)

const RequestIDHeader = "X-Request-ID"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set(KeyRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
