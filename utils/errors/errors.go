package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Operational errors are expected failures whose message is safe to show.
func (e *APIError) Operational() bool {
	return e.Status < http.StatusInternalServerError
}

// WithDetails returns a copy carrying internal details.
func (e *APIError) WithDetails(details string) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput    = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrInvalidID       = NewAPIError("INVALID_ID", "Invalid id", http.StatusBadRequest)
	ErrUnauthorized    = NewAPIError("UNAUTHORIZED", "You are not logged in! Please log in to get access.", http.StatusUnauthorized)
	ErrForbidden       = NewAPIError("FORBIDDEN", "You do not have permission to perform this action", http.StatusForbidden)
	ErrNotFound        = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict        = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrTooManyRequests = NewAPIError("TOO_MANY_REQUESTS", "Too many requests from this IP, please try again in an hour!", http.StatusTooManyRequests)
	ErrInternal        = NewAPIError("INTERNAL_SERVER_ERROR", "Something went very wrong!", http.StatusInternalServerError)
)

func NotFound(resource string) *APIError {
	return NewAPIError("NOT_FOUND", fmt.Sprintf("No %s found with that ID", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return NewAPIError("INVALID_INPUT", message, http.StatusBadRequest)
}

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}
