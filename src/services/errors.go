package services

import (
	"errors"
	"fmt"

	"github.com/theleywin/Backend-Social-Feed/src/store"
)

// ValidationError reports a rejected request field. Field is the key used in
// the JSON error body.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

type AuthorizationError struct{}

func (e *AuthorizationError) Error() string { return "Unauthorized" }

// StoreError is any storage failure not classified above. Code is the
// backend's native error code.
type StoreError struct {
	Code string
	Err  error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store error %s: %v", e.Code, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func storeError(err error) error {
	return &StoreError{Code: store.ErrorCode(err), Err: err}
}

// notFoundOr maps store.ErrNotFound to a NotFoundError with msg and anything
// else to a StoreError.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Message: msg}
	}
	return storeError(err)
}
