package models

import "time"

// Persisted copy of an event raised by a session's security gate
type SecurityEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	SessionID string    `gorm:"index" json:"session_id"`
	Kind      string    `gorm:"index" json:"kind"`
	Message   string    `json:"message"`
}

func (SecurityEvent) TableName() string {
	return "security_events"
}
