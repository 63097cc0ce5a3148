// Package errors provides the structured error types shared by every stage of
// the SproutLearn request pipeline. It defines machine-readable error codes,
// constructors, and inspection helpers so that the HTTP and gRPC surfaces can
// map failures to responses without string-matching error messages.
//
// # Error Categories
//
//   - Validation errors: malformed request input
//   - Authentication errors: missing, malformed, expired, or unverifiable
//     bearer tokens, and an unreachable key set
//   - Authorization errors: profile not owned by the caller, and the two
//     consent-gate outcomes (consent required, consent withdrawn)
//   - NotFound errors: resource does not exist
//   - Conflict errors: uniqueness violations, illegal state transitions
//   - Internal / Unavailable / Timeout errors: server-side failures
//
// # Error Codes
//
// Each error carries a stable code of the form CATEGORY_NNN (e.g. "AUTHZ_002")
// that clients use to route the user to the correct remediation flow. The
// authentication codes deliberately all map to HTTP 401 so that a caller
// cannot distinguish a bad signature from a malformed token.
//
// # Usage
//
// Create an error:
//
//	err := errors.New(errors.CodeTokenExpired, "bearer token has expired")
//
// Wrap a cause:
//
//	err := errors.Wrap(err, errors.CodeStorage, "account lookup failed")
//
// Inspect:
//
//	if errors.IsAuthorization(err) {
//	    // respond 403
//	}
package errors
