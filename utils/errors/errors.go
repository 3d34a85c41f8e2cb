package errors

import (
	stderrors "errors"
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

// Operational reports whether the error is a known, client-facing failure.
func (e *APIError) Operational() bool {
	return e.Status < http.StatusInternalServerError
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

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeExternal       = "EXTERNAL_SERVICE_ERROR"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
	CodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeDuplicateField = "DUPLICATE_FIELD"
)

var (
	ErrInvalidInput = NewAPIError(CodeInvalidInput, "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized = NewAPIError(CodeUnauthorized, "You are not logged in! Please log in to get access.", http.StatusUnauthorized)
	ErrForbidden    = NewAPIError(CodeForbidden, "You do not have permission to perform this action", http.StatusForbidden)
	ErrNotFound     = NewAPIError(CodeNotFound, "No document found with that ID", http.StatusNotFound)
	ErrInternal     = NewAPIError(CodeInternal, "Something went very wrong!", http.StatusInternalServerError)
)

// Validation is raised when a schema constraint is violated.
func Validation(message string) *APIError {
	return NewAPIError(CodeValidation, message, http.StatusBadRequest)
}

func NotFound(message string) *APIError {
	return NewAPIError(CodeNotFound, message, http.StatusNotFound)
}

func Unauthorized(message string) *APIError {
	return NewAPIError(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	return NewAPIError(CodeForbidden, message, http.StatusForbidden)
}

// External is raised when the payment provider or another remote party rejects a call.
func External(message string, err error) *APIError {
	if err != nil {
		return NewAPIError(CodeExternal, message, http.StatusBadRequest, err.Error())
	}
	return NewAPIError(CodeExternal, message, http.StatusBadRequest)
}

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// As unwraps err into an *APIError when one is in the chain.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status an error maps to.
func StatusOf(err error) int {
	if apiErr, ok := As(err); ok {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}
