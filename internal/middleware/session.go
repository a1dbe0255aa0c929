package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/identity"
	"github.com/mybeatfi/securegate/internal/security"
)

const SessionHeader = "X-Session-ID"

const keyClock = "clock"

type SessionOption func(*sessionConfig)

type sessionConfig struct {
	now func() time.Time
}

// Clock ThrottleKey reads the anonymous time bucket from
func WithSessionClock(now func() time.Time) SessionOption {
	return func(cfg *sessionConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Binds the request to its session's gate. Clients without a valid session
// id get a fresh one in the response header.
func Session(registry *security.Registry, opts ...SessionOption) gin.HandlerFunc {
	cfg := sessionConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Header(SessionHeader, id)
		c.Set(KeySessionID, id)
		c.Set(KeyGate, registry.Get(id))
		c.Set(keyClock, cfg.now)
		c.Next()
	}
}

// Must run after Session
func GateFrom(c *gin.Context) *security.Gate {
	v, _ := c.Get(KeyGate)
	g, _ := v.(*security.Gate)
	return g
}

// Refuses every request of a blocked session with the block payload
func Blocked() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g := GateFrom(c); g != nil && g.IsBlocked() {
			c.AbortWithStatusJSON(http.StatusLocked, BlockPayload(g))
			return
		}
		c.Next()
	}
}

func BlockPayload(g *security.Gate) gin.H {
	violations := g.Violations()
	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = v.String()
	}

	return gin.H{
		"error":      "Access temporarily blocked due to security violations",
		"code":       "blocked",
		"blocked":    true,
		"violations": messages,
	}
}

// Rate limit key for the request: the user id when authenticated, otherwise
// the client IP with the anonymous identifier.
func ThrottleKey(c *gin.Context) string {
	now := time.Now
	if v, ok := c.Get(keyClock); ok {
		if clock, ok := v.(func() time.Time); ok {
			now = clock
		}
	}

	return identity.ForRequest(identity.Request{
		UserID:    c.GetString(KeyUserID),
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, now())
}
