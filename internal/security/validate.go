package security

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Safe for concurrent use, shared by every gate
var validate = newValidator()

type Credentials struct {
	Email    string `json:"email" validate:"required,emailshape"`
	Password string `json:"password"`
}

// Plain form payload. Only string values are checked and sanitized, other
// values pass through untouched.
type Form map[string]any

func (f Form) String(key string) string {
	s, _ := f[key].(string)
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Copies form with every string field length-checked and sanitized
func (g *Gate) cleanForm(form Form, checkLength bool) (Form, error) {
	clean := make(Form, len(form))
	for field, value := range form {
		s, ok := value.(string)
		if !ok {
			clean[field] = value
			continue
		}

		if checkLength {
			if err := validate.Var(s, g.maxFieldTag); err != nil {
				return nil, fmt.Errorf("%w: field %q exceeds %d characters", ErrValidation, field, g.cfg.MaxFieldLength)
			}
		}
		clean[field] = Sanitize(s)
	}
	return clean, nil
}

func (g *Gate) checkCredentials(creds Credentials) error {
	if err := validate.Struct(creds); err != nil {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return nil
}
