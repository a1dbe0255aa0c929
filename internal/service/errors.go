package service

import "net/http"

// Refusal of a well-formed request. The security gate passes these through
// without counting them as backend failures.
type ClientError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Rejected() bool {
	return true
}

var (
	ErrInvalidCredentials = &ClientError{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "invalid credentials"}
	ErrEmailTaken         = &ClientError{Status: http.StatusConflict, Code: "email_taken", Message: "user with this email already exists"}
	ErrWeakPassword       = &ClientError{Status: http.StatusBadRequest, Code: "weak_password", Message: "password must be at least 8 characters"}
	ErrUnknownAccountType = &ClientError{Status: http.StatusBadRequest, Code: "unknown_account_type", Message: "unknown account type"}
	ErrUserNotFound       = &ClientError{Status: http.StatusNotFound, Code: "user_not_found", Message: "user not found"}
)

func invalidInput(message string) *ClientError {
	return &ClientError{Status: http.StatusBadRequest, Code: "invalid_input", Message: message}
}
