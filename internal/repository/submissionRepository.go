package repository

import (
	"context"

	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/storage"
)

type SubmissionRepository struct {
	db *storage.Postgres
}

func NewSubmissionRepository(db *storage.Postgres) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *models.FormSubmission) error {
	return r.db.DB.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) ListByForm(ctx context.Context, form string, limit, offset int) ([]models.FormSubmission, error) {
	var submissions []models.FormSubmission
	err := r.db.DB.WithContext(ctx).
		Where("form = ?", form).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&submissions).Error

	return submissions, err
}
