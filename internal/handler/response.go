package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/circuitbreaker"
	"github.com/mybeatfi/securegate/internal/middleware"
	"github.com/mybeatfi/securegate/internal/ratelimit"
	"github.com/mybeatfi/securegate/internal/security"
	"github.com/mybeatfi/securegate/internal/service"
)

// Writes the response for an error returned by a gate wrapper
func respondError(c *gin.Context, err error) {
	var exceeded *ratelimit.ExceededError
	var clientErr *service.ClientError

	switch {
	case errors.Is(err, security.ErrBlocked):
		if g := middleware.GateFrom(c); g != nil {
			c.JSON(http.StatusLocked, middleware.BlockPayload(g))
			return
		}
		c.JSON(http.StatusLocked, gin.H{"error": err.Error(), "code": "blocked"})
	case errors.As(err, &exceeded):
		c.Header("Retry-After", strconv.Itoa(middleware.RetryAfterSeconds(exceeded.RetryAfter)))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "code": "rate_limited", "class": exceeded.Class})
	case errors.Is(err, security.ErrValidation), errors.Is(err, security.ErrFileValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_failed"})
	case errors.As(err, &clientErr):
		c.JSON(clientErr.Status, clientErr)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable", "code": "circuit_open"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request cancelled"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

// Session gate set by middleware.Session. Writes a 500 when the route was
// registered without it.
func sessionGate(c *gin.Context) (*security.Gate, bool) {
	g := middleware.GateFrom(c)
	if g == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not initialized"})
		return nil, false
	}
	return g, true
}

// Authenticated user id, nil for anonymous requests
func currentUserID(c *gin.Context) *uuid.UUID {
	id, err := uuid.Parse(c.GetString(middleware.KeyUserID))
	if err != nil {
		return nil
	}
	return &id
}
