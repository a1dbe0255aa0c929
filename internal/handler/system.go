package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mybeatfi/securegate/internal/circuitbreaker"
)

// Handles system-related endpoints
type SystemHandler struct {
	breakers map[string]*circuitbreaker.CircuitBreaker
}

func NewSystemHandler(breakers ...*circuitbreaker.CircuitBreaker) *SystemHandler {
	h := &SystemHandler{breakers: make(map[string]*circuitbreaker.CircuitBreaker, len(breakers))}
	for _, cb := range breakers {
		h.breakers[cb.Name()] = cb
	}
	return h
}

// Returns the status of all circuit breakers
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	statuses := make(map[string]circuitbreaker.Metrics, len(h.breakers))
	for name, cb := range h.breakers {
		statuses[name] = cb.Metrics()
	}

	c.JSON(http.StatusOK, statuses)
}

// Manually resets a circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	cb, exists := h.breakers[c.Param("name")]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Circuit breaker not found",
		})
		return
	}

	cb.Reset()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
	})
}
