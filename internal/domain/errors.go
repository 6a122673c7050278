package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing content type, record, slug or relation.
	ErrNotFound = errors.New("not found")
	// ErrForbidden signals that the principal lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized signals missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidQuery signals malformed query parameters.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidRecord signals a write payload that does not fit the content type schema.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnsupportedMediaType signals that no renderer matches the Accept header.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrTransitionDenied signals a forbidden status change.
	ErrTransitionDenied = errors.New("status transition denied")
	// ErrInvalidSchema signals an invalid content type definition.
	ErrInvalidSchema = errors.New("invalid schema")
)

// TransitionDeniedError wraps ErrTransitionDenied with the attempted status change.
type TransitionDeniedError struct {
	From string
	To   string
}

func (e *TransitionDeniedError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrTransitionDenied.Error(), e.From, e.To)
}

func (e *TransitionDeniedError) Unwrap() error { return ErrTransitionDenied }

// NewTransitionDenied creates a transition denied error.
func NewTransitionDenied(from, to string) error {
	return &TransitionDeniedError{From: from, To: to}
}
