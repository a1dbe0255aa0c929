package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/service"
)

type TokenValidator interface {
	ValidateToken(token string) (*service.Claims, error)
}

// Validates JWT token and requires authentication
func RequireAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Use: Bearer <token>",
			})
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// Attaches the user when a valid token is present, never rejects
func OptionalAuth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := tokens.ValidateToken(tokenString); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// Must run after RequireAuth
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(KeyRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Insufficient permissions",
		})
	}
}

// Creator accounts must have accepted the terms and be verified. Must run
// after RequireAuth.
func RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		if !claims.TermsAccepted {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Terms of service not accepted",
				"code":  "terms_not_accepted",
			})
			return
		}

		if claims.AccountType != models.AccountClient && claims.Verification != models.VerificationVerified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":  "Account pending verification",
				"code":   "pending_verification",
				"status": claims.Verification,
			})
			return
		}

		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*service.Claims, bool) {
	v, exists := c.Get(KeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*service.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *service.Claims) {
	c.Set(KeyClaims, claims)
	c.Set(KeyUserID, claims.UserID)
	c.Set(KeyEmail, claims.Email)
	c.Set(KeyRole, claims.Role)
	c.Set(KeyAccountType, claims.AccountType)
}
