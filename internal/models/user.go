package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Marketplace account types
const (
	AccountClient      = "client"
	AccountProducer    = "producer"
	AccountArtist      = "artist"
	AccountRightsOwner = "rights_holder"
)

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

type User struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Email              string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash       string     `gorm:"not null" json:"-"`
	Name               string     `json:"name"`
	Role               string     `gorm:"default:'user'" json:"role"`
	AccountType        string     `gorm:"default:'client'" json:"account_type"`
	VerificationStatus string     `gorm:"default:'pending'" json:"verification_status"`
	TermsAcceptedAt    *time.Time `json:"terms_accepted_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	return nil
}

func (User) TableName() string {
	return "users"
}

// Creator accounts must be verified before they can sell
func (u *User) NeedsVerification() bool {
	return u.AccountType != AccountClient && u.VerificationStatus != VerificationVerified
}
