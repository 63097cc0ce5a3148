package errors

import (
	"fmt"
	"net/http"
)

// Error is the structured error carried through the request pipeline. It
// implements the standard error interface and adds a stable code, an
// optional cause, and structured details for the API error body.
//
// Error values are treated as immutable after creation; the WithDetail
// helpers return modified copies.
type Error struct {
	// Code is the machine-readable error code (e.g. "AUTHZ_002").
	Code Code

	// Message is the human-readable message. It may be shown to end users
	// and must not contain tokens, key material, or internal identifiers.
	Message string

	// Cause is the underlying error, if any. Unwrap exposes it for
	// errors.Is / errors.As chains.
	Cause error

	// Details holds additional structured data for the error body, such as
	// the consent type the client must remediate ("consent_type": "GDPR").
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, supporting the standard library's
// errors.Unwrap, errors.Is, and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code for this error based on its
// code category. Every authentication failure maps to 401 and every
// authorization failure (including the consent-gate outcomes) to 403.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "VAL":
		return http.StatusBadRequest
	case "AUTH":
		return http.StatusUnauthorized
	case "AUTHZ":
		return http.StatusForbidden
	case "NF":
		return http.StatusNotFound
	case "CONF":
		return http.StatusConflict
	case "UNAVAIL":
		return http.StatusServiceUnavailable
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail returns a copy of the error with a single detail added.
// The original error is not modified.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// Format implements fmt.Formatter. %v prints the standard message, %+v
// additionally prints details and the cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
