package client

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the job gateway.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  []FieldError
}

// FieldError is one rejected submission field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// NotFound reports whether the job does not exist.
func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

// Validation reports whether the submission was rejected.
func (e *APIError) Validation() bool { return e.Status == http.StatusBadRequest }

// TransportError means the gateway could not be reached or the stream broke.
// It never reflects server-side job state.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the gateway.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// IsTransport reports whether err is a connectivity failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
