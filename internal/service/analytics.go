package service

import (
	"context"
	"time"

	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/repository"
	"github.com/mybeatfi/securegate/internal/security"
)

// Live view of the sessions currently refused by their gate
type BlockedLister interface {
	Blocked() []string
}

type AnalyticsService struct {
	repository *repository.SecurityEventRepository
	sessions   BlockedLister
}

func NewAnalyticsService(repo *repository.SecurityEventRepository, sessions BlockedLister) *AnalyticsService {
	return &AnalyticsService{
		repository: repo,
		sessions:   sessions,
	}
}

// Holds security summary data
type SecuritySummary struct {
	From            time.Time                 `json:"from"`
	To              time.Time                 `json:"to"`
	Counts          map[string]int64          `json:"counts"`
	TopViolators    []repository.SessionCount `json:"top_violators"`
	BlockedSessions []string                  `json:"blocked_sessions"`
}

// Retrieves the security summary for a time range
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*SecuritySummary, error) {
	summary := &SecuritySummary{From: from, To: to}

	counts, err := s.repository.CountByKind(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.Counts = counts

	top, err := s.repository.TopSessions(ctx, string(security.EventViolation), from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopViolators = top

	summary.BlockedSessions = s.sessions.Blocked()
	if summary.BlockedSessions == nil {
		summary.BlockedSessions = []string{}
	}

	return summary, nil
}

// Event counts per hour and kind
func (s *AnalyticsService) GetTimeSeries(ctx context.Context, from, to time.Time) ([]repository.HourlyCount, error) {
	return s.repository.GetHourlyCounts(ctx, from, to)
}

func (s *AnalyticsService) GetEvents(ctx context.Context, kind string, from, to time.Time, limit, offset int) ([]models.SecurityEvent, error) {
	return s.repository.FindByTimeRange(ctx, kind, from, to, limit, offset)
}

func (s *AnalyticsService) GetSessionEvents(ctx context.Context, sessionID string, limit int) ([]models.SecurityEvent, error) {
	return s.repository.FindBySession(ctx, sessionID, limit)
}

// Deletes events older than retention
func (s *AnalyticsService) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repository.DeleteOlderThan(ctx, time.Now().Add(-retention))
}
