package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mybeatfi/securegate/internal/middleware"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
	"github.com/mybeatfi/securegate/internal/service"
)

type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	IssueToken(user *models.User) (string, error)
}

type AuthHandler struct {
	auth Authenticator
}

func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password" binding:"required,max=72"`
		Name        string `json:"name" binding:"max=100"`
		AccountType string `json:"account_type"`
		AcceptTerms bool   `json:"accept_terms"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, ok := sessionGate(c)
	if !ok {
		return
	}

	var user *models.User
	var token string
	creds := security.Credentials{Email: req.Email, Password: req.Password}
	err := g.SecureAuth(c.Request.Context(), middleware.ThrottleKey(c), creds, func(ctx context.Context, clean security.Credentials) error {
		var err error
		user, err = h.auth.Register(ctx, service.RegisterInput{
			Email:       clean.Email,
			Password:    clean.Password,
			Name:        security.Sanitize(req.Name),
			AccountType: req.AccountType,
			AcceptTerms: req.AcceptTerms,
		})
		if err != nil {
			return err
		}
		token, err = h.auth.IssueToken(user)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  user,
		"token": token,
	})
}

// Handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, ok := sessionGate(c)
	if !ok {
		return
	}

	var token string
	creds := security.Credentials{Email: req.Email, Password: req.Password}
	err := g.SecureAuth(c.Request.Context(), middleware.ThrottleKey(c), creds, func(ctx context.Context, clean security.Credentials) error {
		var err error
		token, err = h.auth.Login(ctx, clean.Email, clean.Password)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
