package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a VCP error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrConsentRequired ErrorCode = "CONSENT_REQUIRED"  // 403
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrConflict        ErrorCode = "CONFLICT"          // 409
	ErrContextTooLarge ErrorCode = "CONTEXT_TOO_LARGE" // 413
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// VCPError represents a structured error with code, status, and details.
type VCPError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *VCPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *VCPError {
	return &VCPError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewConsentRequired creates a 403 error for platform access without a
// granted consent record.
func NewConsentRequired(platformID string) *VCPError {
	return &VCPError{
		Code:    ErrConsentRequired,
		Status:  403,
		Message: fmt.Sprintf("no granted consent for platform: %s", platformID),
		Details: map[string]any{"platform_id": platformID},
	}
}

// NewNotFound creates a 404 error for a missing profile, constitution, or
// audit entry.
func NewNotFound(identifier string) *VCPError {
	return &VCPError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *VCPError {
	return &VCPError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewContextTooLarge creates a 413 error when a context snapshot exceeds the
// configured size limit.
func NewContextTooLarge(max, actual int) *VCPError {
	return &VCPError{
		Code:    ErrContextTooLarge,
		Status:  413,
		Message: fmt.Sprintf("context exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for
// logging, never surfaced to callers.
func NewInternal(err error) *VCPError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &VCPError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (possibly wrapped) is a VCPError with the given code.
func Is(err error, code ErrorCode) bool {
	var vErr *VCPError
	if stderrors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}
