package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a protocol or business error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "TM-SESS-4011")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return code == "" || de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Stream-scoped errors: terminate the offending stream only.
// ============================================================================

var (
	// ErrProtocolViolation indicates malformed framing on a stream.
	ErrProtocolViolation = NewDomainError("TM-PROTO-4000", "protocol violation")

	// ErrMalformedRequest indicates a request line or body that cannot be parsed.
	ErrMalformedRequest = NewDomainError("TM-REQ-4001", "malformed request")

	// ErrAuthenticationFailed indicates the login credentials were rejected.
	ErrAuthenticationFailed = NewDomainError("TM-AUTH-4010", "authentication failed")

	// ErrInvalidSession indicates a missing, forged or foreign-connection session.
	ErrInvalidSession = NewDomainError("TM-SESS-4011", "invalid session")

	// ErrRateLimited indicates too many login attempts from one peer.
	ErrRateLimited = NewDomainError("TM-SYS-4290", "too many requests")
)

// ============================================================================
// Resolution errors: converted into the fallback payload by the request handler.
// ============================================================================

var (
	// ErrNotFound indicates the requested file does not exist.
	ErrNotFound = NewDomainError("TM-FILE-4040", "file not found")

	// ErrIO indicates the requested file could not be read.
	ErrIO = NewDomainError("TM-FILE-5001", "io error")
)

// ============================================================================
// Connection-scoped errors.
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("TM-SYS-5000", "internal server error")

	// ErrTransportFatal indicates an unclassified transport failure that drops
	// the connection.
	ErrTransportFatal = NewDomainError("TM-CONN-5020", "transport failure")
)

// Stream reset codes sent to the peer when a stream is terminated.
const (
	StreamCodeNone              uint64 = 0x00
	StreamCodeProtocolViolation uint64 = 0x10
	StreamCodeMalformedRequest  uint64 = 0x11
	StreamCodeAuthFailed        uint64 = 0x12
	StreamCodeInvalidSession    uint64 = 0x13
	StreamCodeRateLimited       uint64 = 0x14
	StreamCodeInternal          uint64 = 0x1f
)

// StreamCode maps an error to the reset code used when terminating a stream.
func StreamCode(err error) uint64 {
	switch {
	case err == nil:
		return StreamCodeNone
	case errors.Is(err, ErrInvalidSession):
		return StreamCodeInvalidSession
	case errors.Is(err, ErrAuthenticationFailed):
		return StreamCodeAuthFailed
	case errors.Is(err, ErrRateLimited):
		return StreamCodeRateLimited
	case errors.Is(err, ErrMalformedRequest):
		return StreamCodeMalformedRequest
	case errors.Is(err, ErrProtocolViolation):
		return StreamCodeProtocolViolation
	default:
		return StreamCodeInternal
	}
}

// ErrorForStreamCode maps a reset code received from the peer back to its
// domain error. Unknown codes map to ErrInternalServer.
func ErrorForStreamCode(code uint64) *DomainError {
	switch code {
	case StreamCodeProtocolViolation:
		return ErrProtocolViolation
	case StreamCodeMalformedRequest:
		return ErrMalformedRequest
	case StreamCodeAuthFailed:
		return ErrAuthenticationFailed
	case StreamCodeInvalidSession:
		return ErrInvalidSession
	case StreamCodeRateLimited:
		return ErrRateLimited
	default:
		return ErrInternalServer
	}
}
