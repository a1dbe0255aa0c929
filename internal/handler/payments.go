package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/middleware"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
)

type PaymentCreator interface {
	CreateIntent(ctx context.Context, userID uuid.UUID, f security.Form) (*models.PaymentIntent, error)
}

type PaymentHandler struct {
	payments PaymentCreator
}

func NewPaymentHandler(payments PaymentCreator) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Handles POST /api/payments. Requires RequireAuth.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID := currentUserID(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
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

	var intent *models.PaymentIntent
	err := g.SecurePayment(c.Request.Context(), middleware.ThrottleKey(c), payload, func(ctx context.Context, clean security.Form) error {
		var err error
		intent, err = h.payments.CreateIntent(ctx, *userID, clean)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, intent)
}
