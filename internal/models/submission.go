package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sanitized form payload, e.g. a producer application or a contact request
type FormSubmission struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Form      string     `gorm:"index;not null" json:"form"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Payload   string     `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s *FormSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (FormSubmission) TableName() string {
	return "form_submissions"
}
