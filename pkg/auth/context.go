package auth

import (
	"context"
)

// contextKey is an unexported type for context keys in this package,
// preventing collisions with keys from other packages.
type contextKey int

// claimsKey stores the verified *Claims in the request context.
const claimsKey contextKey = iota

// ContextWithClaims returns a new context carrying the verified claims.
// The authentication middleware calls this after a successful Verify; the
// account resolver stage reads the claims back with [ClaimsFromContext].
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves the verified claims from the context.
// Returns the claims and true if present, or nil and false otherwise.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
