package repository

import (
	"context"
	"time"

	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/storage"
)

type SecurityEventRepository struct {
	db *storage.Postgres
}

func NewSecurityEventRepository(db *storage.Postgres) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Inserts multiple events (for batch insertion)
func (r *SecurityEventRepository) CreateBatch(ctx context.Context, events []models.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&events).Error
}

// Retrieves events within a time range, newest first. Empty kind matches all.
func (r *SecurityEventRepository) FindByTimeRange(ctx context.Context, kind string, from, to time.Time, limit, offset int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent

	q := r.db.DB.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", from, to)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}

	err := q.Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error

	return events, err
}

// Retrieves the events of one session, oldest first
func (r *SecurityEventRepository) FindBySession(ctx context.Context, sessionID string, limit int) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent

	err := r.db.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Limit(limit).
		Find(&events).Error

	return events, err
}

// Counts events in a time range grouped by kind
func (r *SecurityEventRepository) CountByKind(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select("kind, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("kind").
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}

	return counts, rows.Err()
}

type SessionCount struct {
	SessionID string `json:"session_id"`
	Count     int64  `json:"count"`
}

// Returns the sessions with the most events of a kind
func (r *SecurityEventRepository) TopSessions(ctx context.Context, kind string, from, to time.Time, limit int) ([]SessionCount, error) {
	var results []SessionCount

	err := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select("session_id, COUNT(*) as count").
		Where("kind = ? AND timestamp BETWEEN ? AND ?", kind, from, to).
		Group("session_id").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, err
}

type HourlyCount struct {
	Hour  time.Time `json:"hour"`
	Kind  string    `json:"kind"`
	Count int64     `json:"count"`
}

// Returns event counts grouped by hour and kind
func (r *SecurityEventRepository) GetHourlyCounts(ctx context.Context, from, to time.Time) ([]HourlyCount, error) {
	var results []HourlyCount

	err := r.db.DB.WithContext(ctx).
		Model(&models.SecurityEvent{}).
		Select("DATE_TRUNC('hour', timestamp) as hour, kind, COUNT(*) as count").
		Where("timestamp BETWEEN ? AND ?", from, to).
		Group("hour, kind").
		Order("hour ASC").
		Scan(&results).Error

	return results, err
}

// Deletes events older than the specified time
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.SecurityEvent{})

	return result.RowsAffected, result.Error
}
