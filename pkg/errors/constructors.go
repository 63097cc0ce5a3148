package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a code and message. The wrapped error
// becomes the Cause. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
// Returns nil if err is nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Unauthenticated creates a new authentication error with the general
// CodeUnauthenticated code. Use the more specific token codes when the
// failure mode is known.
func Unauthenticated(message string) *Error {
	return New(CodeUnauthenticated, message)
}

// Forbidden creates a new authorization error. Used by the profile scope
// guard for both fabricated and foreign profile ids.
func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

// ConsentRequired creates a consent-gate blocking error carrying the
// consent type the client must remediate (e.g. "GDPR", "COPPA").
func ConsentRequired(consentType string) *Error {
	return New(CodeConsentRequired, "guardian consent is required before this profile can be used").
		WithDetail("consent_type", consentType)
}

// ConsentWithdrawn creates a consent-gate blocking error for a profile
// whose guardian has withdrawn a previously granted consent.
func ConsentWithdrawn(consentType string) *Error {
	return New(CodeConsentWithdrawn, "guardian consent has been withdrawn for this profile").
		WithDetail("consent_type", consentType)
}

// NotFound creates a new not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// Conflict creates a new conflict error.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// Internal creates a new internal error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// FromError converts any error to an *Error. If err is already an *Error
// anywhere in its chain, that value is returned; otherwise err is wrapped
// as an internal error. Returns nil for a nil err.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
