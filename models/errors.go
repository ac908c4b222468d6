package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindForbidden  ErrorKind = "forbidden"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindStorage    ErrorKind = "storage"
)

// AppError carries a user-facing message and the kind the HTTP layer maps to
// a status code. Err, when set, is the underlying cause and is never shown to
// clients.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewAuthError(message string) *AppError {
	return &AppError{Kind: KindAuth, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func NewNotFoundError(entity string) *AppError {
	return &AppError{Kind: KindNotFound, Message: entity + " not found"}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// NewStorageError wraps a persistence failure during op.
func NewStorageError(op string, err error) *AppError {
	return &AppError{Kind: KindStorage, Message: "Something went wrong", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of the first AppError in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
