package extract

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/joseph-ayodele/scrape-jobs/internal/llm"
)

// ErrorType categorizes producer failures.
type ErrorType string

const (
	ErrorTypeServiceUnavailable ErrorType = "service_unavailable"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeExtraction         ErrorType = "extraction"
	ErrorTypeInvalidResponse    ErrorType = "invalid_response"
	ErrorTypeCancelled          ErrorType = "cancelled"
)

// ProducerError is a structured failure from an extraction producer. The executor records
// UserMessage on the failed job.
type ProducerError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ProducerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ProducerError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the same request is likely to succeed later.
func (e *ProducerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeServiceUnavailable, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// UserMessage returns a user-friendly error message.
func (e *ProducerError) UserMessage() string {
	switch e.Type {
	case ErrorTypeServiceUnavailable:
		return "Scraper service unavailable. Please check if the service is running."
	case ErrorTypeTimeout:
		return "Scraping timed out. The source may be slow or the service may be busy."
	case ErrorTypeNetwork:
		return "Network error occurred while scraping."
	case ErrorTypeExtraction:
		return fmt.Sprintf("Failed to extract results: %s", e.Message)
	case ErrorTypeInvalidResponse:
		return "Received an invalid response from the extraction service."
	case ErrorTypeCancelled:
		return "Scraping was cancelled."
	default:
		return e.Message
	}
}

// UserMessage returns the text a job should record for err.
func UserMessage(err error) string {
	var pe *ProducerError
	if errors.As(err, &pe) {
		return pe.UserMessage()
	}
	return err.Error()
}

func newServiceUnavailableError(cause error) *ProducerError {
	return &ProducerError{Type: ErrorTypeServiceUnavailable, Message: "Service not available", Cause: cause}
}

func newTimeoutError(cause error) *ProducerError {
	return &ProducerError{Type: ErrorTypeTimeout, Message: "Request timed out", Cause: cause}
}

func newNetworkError(cause error) *ProducerError {
	return &ProducerError{Type: ErrorTypeNetwork, Message: "Network error", Cause: cause}
}

func newExtractionError(message string, cause error) *ProducerError {
	return &ProducerError{Type: ErrorTypeExtraction, Message: message, Cause: cause}
}

func newInvalidResponseError(message string, cause error) *ProducerError {
	return &ProducerError{Type: ErrorTypeInvalidResponse, Message: message, Cause: cause}
}

func newCancelledError(cause error) *ProducerError {
	return &ProducerError{Type: ErrorTypeCancelled, Message: "Operation cancelled", Cause: cause}
}

// classify maps transport and HTTP status failures onto the taxonomy.
func classify(err error) *ProducerError {
	var pe *ProducerError
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, context.Canceled):
		return newCancelledError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return newTimeoutError(err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return newServiceUnavailableError(err)
	}

	var statusErr *llm.HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Status == http.StatusServiceUnavailable || statusErr.Status == http.StatusBadGateway:
			return newServiceUnavailableError(err)
		case statusErr.Status == http.StatusGatewayTimeout || statusErr.Status == http.StatusRequestTimeout:
			return newTimeoutError(err)
		case statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= 500:
			return newServiceUnavailableError(err)
		default:
			return newExtractionError(fmt.Sprintf("request rejected with status %d", statusErr.Status), err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newTimeoutError(err)
		}
		return newNetworkError(err)
	}
	return newExtractionError(err.Error(), err)
}
