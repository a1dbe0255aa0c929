package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mybeatfi/securegate/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type AuthService struct {
	repo      UserStore
	jwtSecret []byte // Stored in env (JWT_SECRET)
	jwtExpiry time.Duration
	now       func() time.Time
}

func NewAuthService(repo UserStore, secret string, expiryHours int) *AuthService {
	return &AuthService{
		repo:      repo,
		jwtSecret: []byte(secret),
		jwtExpiry: time.Duration(expiryHours) * time.Hour,
		now:       time.Now,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	AccountType string
	AcceptTerms bool
}

type Claims struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	AccountType   string `json:"account_type"`
	Verification  string `json:"verification"`
	TermsAccepted bool   `json:"terms_accepted"`
	jwt.RegisteredClaims
}

// Creates a marketplace account. Creator accounts start pending verification.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	accountType := in.AccountType
	if accountType == "" {
		accountType = models.AccountClient
	}
	switch accountType {
	case models.AccountClient, models.AccountProducer, models.AccountArtist, models.AccountRightsOwner:
	default:
		return nil, ErrUnknownAccountType
	}

	existingUser, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:              in.Email,
		PasswordHash:       string(hashedPassword),
		Name:               in.Name,
		Role:               models.RoleUser,
		AccountType:        accountType,
		VerificationStatus: models.VerificationPending,
	}
	if accountType == models.AccountClient {
		user.VerificationStatus = models.VerificationVerified
	}
	if in.AcceptTerms {
		now := s.now().UTC()
		user.TermsAcceptedAt = &now
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticates a user and returns a JWT token
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(user)
}

func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:        user.ID.String(),
		Email:         user.Email,
		Role:          user.Role,
		AccountType:   user.AccountType,
		Verification:  user.VerificationStatus,
		TermsAccepted: user.TermsAcceptedAt != nil,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// Validates a JWT token and return the claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
