package errors

// Code is a machine-readable error code of the form CATEGORY_NNN, where
// CATEGORY is a short identifier (VAL, AUTH, AUTHZ, ...) and NNN is a
// three-digit number. Codes are stable once assigned: clients key their
// remediation flows off them (e.g. AUTHZ_002 redirects to the guardian
// consent flow).
type Code string

// Error code categories and their HTTP mappings:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization errors (403 Forbidden)
//	NF_xxx      - Not found errors (404 Not Found)
//	CONF_xxx    - Conflict errors (409 Conflict)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// All of these map to 401 so that callers cannot distinguish a
	// cryptographic failure from malformed input (avoids oracle leakage).

	// CodeUnauthenticated indicates a missing or unusable credential.
	CodeUnauthenticated Code = "AUTH_001"

	// CodeTokenMalformed indicates the bearer token does not have the
	// expected three-segment structure or cannot be decoded.
	CodeTokenMalformed Code = "AUTH_002"

	// CodeTokenExpired indicates the token's exp claim is in the past
	// (boundary equality counts as expired).
	CodeTokenExpired Code = "AUTH_003"

	// CodeTokenNotYetValid indicates the token's nbf claim is in the future.
	CodeTokenNotYetValid Code = "AUTH_004"

	// CodeUnknownKey indicates the token's kid is not present in the
	// verification key set, even after a forced refresh.
	CodeUnknownKey Code = "AUTH_005"

	// CodeKeySetUnavailable indicates the JWKS endpoint could not be
	// reached or returned a non-2xx response. Verification fails closed.
	CodeKeySetUnavailable Code = "AUTH_006"

	// Authorization errors (AUTHZ_xxx) - HTTP 403

	// CodeForbidden indicates the caller may not act on the claimed
	// resource. A fabricated profile id and a foreign profile id produce
	// the same code: existence is never confirmed.
	CodeForbidden Code = "AUTHZ_001"

	// CodeConsentRequired indicates guardian consent is mandatory for the
	// profile's jurisdiction and has not yet been granted.
	CodeConsentRequired Code = "AUTHZ_002"

	// CodeConsentWithdrawn indicates a previously granted consent has been
	// withdrawn by the guardian.
	CodeConsentWithdrawn Code = "AUTHZ_003"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound Code = "NF_001"

	// Conflict errors (CONF_xxx) - HTTP 409

	// CodeConflict indicates a general conflict with current state.
	CodeConflict Code = "CONF_001"

	// CodeAlreadyExists indicates a uniqueness constraint was violated.
	// The account resolver treats this as the concurrent-winner signal.
	CodeAlreadyExists Code = "CONF_002"

	// CodeInvalidTransition indicates a consent status transition that the
	// state machine does not allow.
	CodeInvalidTransition Code = "CONF_003"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "INT_001"

	// CodeStorage indicates a database operation failed.
	CodeStorage Code = "INT_002"

	// CodeConfiguration indicates a configuration error.
	CodeConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503

	// CodeUnavailable indicates a dependency is temporarily unavailable.
	CodeUnavailable Code = "UNAVAIL_001"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeStorageTimeout indicates a database operation timed out.
	CodeStorageTimeout Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g. "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
