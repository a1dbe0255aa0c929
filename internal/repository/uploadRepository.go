package repository

import (
	"context"

	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/storage"
)

type UploadRepository struct {
	db *storage.Postgres
}

func NewUploadRepository(db *storage.Postgres) *UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) Create(ctx context.Context, u *models.Upload) error {
	return r.db.DB.WithContext(ctx).Create(u).Error
}
