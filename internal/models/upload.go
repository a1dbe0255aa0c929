package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Upload struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	FileName    string     `gorm:"not null" json:"file_name"`
	ContentType string     `gorm:"not null" json:"content_type"`
	Size        int64      `json:"size"`
	StoragePath string     `gorm:"not null" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (u *Upload) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (Upload) TableName() string {
	return "uploads"
}
