package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/middleware"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
	"github.com/mybeatfi/securegate/internal/service"
)

type FormSubmitter interface {
	Submit(ctx context.Context, form string, userID *uuid.UUID, payload security.Form) (*models.FormSubmission, error)
}

type FormHandler struct {
	forms FormSubmitter
}

func NewFormHandler(forms FormSubmitter) *FormHandler {
	return &FormHandler{forms: forms}
}

// Handles POST /api/forms/:form
func (h *FormHandler) Submit(c *gin.Context) {
	name := c.Param("form")
	if !service.ValidFormName(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Form not found"})
		return
	}

	var payload security.Form
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body must be a JSON object"})
		return
	}

	g, ok := sessionGate(c)
	if !ok {
		return
	}

	userID := currentUserID(c)
	var submission *models.FormSubmission
	err := g.SecureSubmit(c.Request.Context(), middleware.ThrottleKey(c), payload, func(ctx context.Context, clean security.Form) error {
		var err error
		submission, err = h.forms.Submit(ctx, name, userID, clean)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}
