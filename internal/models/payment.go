package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const PaymentPending = "pending"

// License purchase awaiting capture by the payment processor
type PaymentIntent struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	TrackID     string    `gorm:"index;not null" json:"track_id"`
	LicenseType string    `gorm:"not null" json:"license_type"`
	AmountCents int64     `gorm:"not null" json:"amount_cents"`
	Currency    string    `gorm:"size:3;not null" json:"currency"`
	Status      string    `gorm:"default:'pending'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *PaymentIntent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}
