package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/security"
)

var formName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

type SubmissionStore interface {
	Create(ctx context.Context, s *models.FormSubmission) error
}

type FormService struct {
	repo SubmissionStore
}

func NewFormService(repo SubmissionStore) *FormService {
	return &FormService{repo: repo}
}

func ValidFormName(name string) bool {
	return formName.MatchString(name)
}

// Stores an already sanitized payload under form
func (s *FormService) Submit(ctx context.Context, form string, userID *uuid.UUID, payload security.Form) (*models.FormSubmission, error) {
	if !ValidFormName(form) {
		return nil, invalidInput(fmt.Sprintf("unknown form %q", form))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, invalidInput("form payload is not serializable")
	}

	submission := &models.FormSubmission{
		Form:    form,
		UserID:  userID,
		Payload: string(body),
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	return submission, nil
}
