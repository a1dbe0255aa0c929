package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
)

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, int64, error)
	Delete(key string) error
}

type UploadStore interface {
	Create(ctx context.Context, u *models.Upload) error
}

type UploadService struct {
	objects ObjectStore
	repo    UploadStore
}

func NewUploadService(objects ObjectStore, repo UploadStore) *UploadService {
	return &UploadService{objects: objects, repo: repo}
}

// Stores a validated file and records its metadata. The stored object is
// removed again when the record cannot be written.
func (s *UploadService) Save(ctx context.Context, userID *uuid.UUID, file security.File) (*models.Upload, error) {
	if file.Content == nil {
		return nil, invalidInput("file has no content")
	}

	id := uuid.New()
	key := id.String() + objectExt(file.Name)

	path, n, err := s.objects.Put(ctx, key, file.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	upload := &models.Upload{
		ID:          id,
		UserID:      userID,
		FileName:    security.Sanitize(filepath.Base(file.Name)),
		ContentType: file.Type,
		Size:        n,
		StoragePath: path,
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		s.objects.Delete(key)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	return upload, nil
}

func objectExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if !safeExt.MatchString(ext) {
		return ""
	}
	return ext
}
