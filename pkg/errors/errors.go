// Package errors defines the error taxonomy shared by the ingestion pipeline,
// the maintenance operations and the HTTP API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingKey       = errors.New("record is missing its natural key")
	ErrInvalidRecord    = errors.New("invalid record")
	ErrStorageOperation = errors.New("storage operation failed")
	ErrEnrichment       = errors.New("enrichment failed")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUpstream         = errors.New("upstream api error")
	ErrInternal         = errors.New("internal error")
)

// RecordError reports the failure of a single record inside a batch. It
// unwraps to the underlying cause, which in turn wraps one of the sentinels.
type RecordError struct {
	Collection string
	Key        string
	Err        error
}

func (e *RecordError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: record without key: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("%s: record %q: %v", e.Collection, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Storage wraps a backend error as ErrStorageOperation, keeping the cause
// reachable through errors.Is / errors.As.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageOperation, op, err)
}

// Reason returns a short, stable label for err, suitable for metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingKey):
		return "missing_key"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid_record"
	case errors.Is(err, ErrEnrichment):
		return "enrichment"
	case errors.Is(err, ErrStorageOperation):
		return "storage"
	default:
		return "other"
	}
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingKey), errors.Is(err, ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorageOperation), errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
