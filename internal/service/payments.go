package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Beat license tiers sold on the marketplace
var licenseTypes = map[string]struct{}{
	"basic":     {},
	"premium":   {},
	"unlimited": {},
	"exclusive": {},
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.PaymentIntent) error
}

type PaymentService struct {
	repo PaymentStore
}

func NewPaymentService(repo PaymentStore) *PaymentService {
	return &PaymentService{repo: repo}
}

// Records a pending payment intent for the license described by f. Capture
// happens at the payment processor.
func (s *PaymentService) CreateIntent(ctx context.Context, userID uuid.UUID, f security.Form) (*models.PaymentIntent, error) {
	intent, err := parsePayment(f)
	if err != nil {
		return nil, err
	}
	intent.UserID = userID
	intent.Status = models.PaymentPending

	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to store payment intent: %w", err)
	}
	return intent, nil
}

func parsePayment(f security.Form) (*models.PaymentIntent, error) {
	trackID := strings.TrimSpace(f.String("track_id"))
	if trackID == "" {
		return nil, invalidInput("track_id is required")
	}

	license := strings.ToLower(strings.TrimSpace(f.String("license_type")))
	if _, ok := licenseTypes[license]; !ok {
		return nil, invalidInput(fmt.Sprintf("unknown license type %q", license))
	}

	amount, ok := f["amount_cents"].(float64)
	if !ok || amount <= 0 || amount != math.Trunc(amount) || amount > math.MaxInt32 {
		return nil, invalidInput("amount_cents must be a positive whole number")
	}

	currency := strings.ToUpper(strings.TrimSpace(f.String("currency")))
	if currency == "" {
		currency = "USD"
	}
	if !currencyCode.MatchString(currency) {
		return nil, invalidInput(fmt.Sprintf("invalid currency %q", currency))
	}

	return &models.PaymentIntent{
		TrackID:     trackID,
		LicenseType: license,
		AmountCents: int64(amount),
		Currency:    currency,
	}, nil
}
