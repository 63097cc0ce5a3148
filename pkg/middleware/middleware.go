// Package middleware assembles the per-request trust boundary as an HTTP
// middleware chain:
//
//	Authenticate → ResolveAccount → ScopeProfile → EnforceConsent
//
// Each stage enriches the request context: Authenticate attaches verified
// token claims, ResolveAccount attaches the local account (provisioning it
// on first sight), ScopeProfile attaches the authorized profile id, and
// EnforceConsent blocks data-collecting calls for unconsented minors.
// Failures short-circuit the chain with a uniform JSON error body.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// HeaderActiveProfile carries the client's claimed active-profile id.
const HeaderActiveProfile = "X-Active-Profile"

// errorBody is the uniform JSON error envelope.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteError writes err as the uniform JSON error body with the HTTP
// status derived from its error code. Server-side failures are masked:
// the body carries the code but a generic message, and the real error is
// logged instead of leaked.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e := sserr.FromError(err)
	status := e.HTTPStatus()

	body := errorBody{
		Code:    string(e.Code),
		Message: e.Message,
		Details: e.Details,
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", string(e.Code)),
			slog.String("error", e.Error()),
		)
		body.Message = "internal error"
		body.Details = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Middleware is the standard HTTP middleware shape.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares left to right: the first middleware sees the
// request first.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
