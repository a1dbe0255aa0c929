package repository

import (
	"context"

	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/storage"
)

type PaymentRepository struct {
	db *storage.Postgres
}

func NewPaymentRepository(db *storage.Postgres) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentIntent) error {
	return r.db.DB.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]models.PaymentIntent, error) {
	var payments []models.PaymentIntent
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error

	return payments, err
}
