package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mybeatfi/securegate/internal/security"
)

type SecurityHandler struct{}

func NewSecurityHandler() *SecurityHandler {
	return &SecurityHandler{}
}

// Handles GET /api/security/status
func (h *SecurityHandler) Status(c *gin.Context) {
	g, ok := sessionGate(c)
	if !ok {
		return
	}

	violations := g.Violations()
	messages := make([]string, len(violations))
	for i, v := range violations {
		messages[i] = v.String()
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": g.SessionID(),
		"blocked":    g.IsBlocked(),
		"violations": messages,
	})
}

// Handles DELETE /api/security/violations
func (h *SecurityHandler) ClearViolations(c *gin.Context) {
	g, ok := sessionGate(c)
	if !ok {
		return
	}

	g.ClearViolations()
	c.JSON(http.StatusOK, gin.H{"message": "Violations cleared", "blocked": false})
}

// Handles POST /api/files/validate. Checks the declared metadata before the
// client starts a large upload.
func (h *SecurityHandler) ValidateFile(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,max=255"`
		Size int64  `json:"size" binding:"min=0"`
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, ok := sessionGate(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, g.ValidateFile(security.File{Name: req.Name, Size: req.Size, Type: req.Type}))
}
