package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrConflict            ErrorCode = "CONFLICT"
	ErrBadRequest          ErrorCode = "BAD_REQUEST"
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrValidation          ErrorCode = "VALIDATION_ERROR"
	ErrForbidden           ErrorCode = "FORBIDDEN"
	ErrStateConflict       ErrorCode = "STATE_CONFLICT"
	ErrInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"
	ErrCapReached          ErrorCode = "CAP_REACHED"
	ErrNoEligibleReviewer  ErrorCode = "NO_ELIGIBLE_REVIEWER"
	ErrConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	ErrDependency          ErrorCode = "DEPENDENCY_ERROR"
	ErrInternalServer      ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes an underlying error kept in Details.
func (e APIError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the code carried by err, or an empty code when err is not an APIError.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// Is reports whether err is an APIError with the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func MapErrorToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrStateConflict, ErrConcurrencyConflict:
		return http.StatusConflict
	case ErrInvalidInput, ErrValidation, ErrBadRequest:
		return http.StatusBadRequest
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInsufficientCredits:
		return http.StatusPaymentRequired
	case ErrCapReached:
		return http.StatusTooManyRequests
	case ErrNoEligibleReviewer:
		return http.StatusOK
	case ErrDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
