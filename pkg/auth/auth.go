// Package auth implements the authentication stage of the SproutLearn trust
// boundary: bearer-token verification against a rotating, cached JSON Web Key
// Set published by the identity provider.
//
// # Verification Flow
//
// [Verifier.Verify] decodes the token, selects the verification key matching
// the token's kid from the [KeySetCache], checks the signature, and validates
// the exp and nbf claims. Every failure mode surfaces as a typed
// *[sserr.Error] with a distinct AUTH_xxx code so the HTTP surface can map
// all of them to 401 without string matching:
//
//   - CodeTokenMalformed: wrong segment count, bad base64, missing kid
//   - CodeUnknownKey: kid not present in the key set
//   - CodeTokenExpired: exp at or before now
//   - CodeTokenNotYetValid: nbf after now
//   - CodeKeySetUnavailable: JWKS endpoint unreachable or non-2xx
//
// # Key-Set Caching
//
// The key set is fetched at most once per freshness window (10 minutes by
// default) and replaced wholesale on refresh via an atomic pointer swap, so
// concurrent verifications never observe a partially updated key list. The
// cache is an explicitly owned, injectable component: tests and forced
// key-rotation handling use [KeySetCache.Clear] and [KeySetCache.Refresh].
//
// Verification fails closed: a fetch failure is an authentication failure,
// never a silent pass.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// HTTPClient abstracts the HTTP client used to fetch the JWKS document.
// The standard [http.Client] satisfies this interface; tests substitute
// counting clients to assert fetch behavior.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Claims holds the verified, request-scoped assertions extracted from a
// bearer token. Claims are produced by [Verifier.Verify], consumed once by
// the account resolver, and never persisted.
type Claims struct {
	// SubjectID is the identity provider's stable subject identifier.
	SubjectID string

	// Email is the subject's email address, if the token carries one.
	Email string

	// ExpiresAt is the token's expiry instant.
	ExpiresAt time.Time

	// NotBefore is the token's not-before instant; zero if absent.
	NotBefore time.Time
}

// TokenVerifier verifies a bearer token string and returns the claims it
// asserts. Implementations must be safe for concurrent use.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// HeaderAuthorization is the HTTP header carrying the bearer token.
const HeaderAuthorization = "Authorization"

// bearerPrefix is the expected Authorization scheme prefix.
const bearerPrefix = "Bearer "

// ExtractBearerToken returns the token portion of an Authorization header
// value, or the empty string if the header does not use the Bearer scheme.
// The scheme comparison is case-insensitive per RFC 7235.
func ExtractBearerToken(header string) string {
	if len(header) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
