package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/rrnagar/marketplace/app/repositories"
)

// Sentinel errors. Controllers map them to HTTP status codes.
var (
	ErrNotFound           = repositories.ErrNotFound
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCode        = errors.New("invalid or missing code")
	ErrCodeExpired        = errors.New("code expired")
	ErrTooManyAttempts    = errors.New("too many attempts, request a new code")
	ErrNotApproved        = errors.New("account not approved")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrConflict           = errors.New("conflict")
	ErrThrottled          = errors.New("too many requests")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries field errors (HTTP 422).
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for f, msg := range e.Fields {
		return f + ": " + msg
	}
	return "validation failed"
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// notFoundErr maps gorm's not-found error to ErrNotFound.
func notFoundErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isDuplicate reports whether err is a unique-constraint violation.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"unique constraint", "duplicate key", "duplicate entry"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// uniqueErr turns a unique-constraint violation on field into a
// ValidationError.
func uniqueErr(err error, field, msg string) error {
	if isDuplicate(err) {
		return invalid(field, msg)
	}
	return err
}
