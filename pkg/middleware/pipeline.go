package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SproutLearn/sprout-core/pkg/auth"
	"github.com/SproutLearn/sprout-core/pkg/consent"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
	"github.com/SproutLearn/sprout-core/pkg/identity"
	"github.com/SproutLearn/sprout-core/pkg/profile"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/SproutLearn/sprout-core/pkg/middleware"

// Pipeline builds the trust-boundary middleware chain from its stage
// collaborators.
type Pipeline struct {
	verifier auth.TokenVerifier
	resolver *identity.Resolver
	guard    *profile.Guard
	gate     *consent.Gate
	tracer   trace.Tracer
}

// NewPipeline creates a Pipeline over the stage collaborators.
func NewPipeline(verifier auth.TokenVerifier, resolver *identity.Resolver, guard *profile.Guard, gate *consent.Gate) *Pipeline {
	return &Pipeline{
		verifier: verifier,
		resolver: resolver,
		guard:    guard,
		gate:     gate,
		tracer:   otel.Tracer(tracerName),
	}
}

// Handler wraps next in the full chain:
// Authenticate → ResolveAccount → ScopeProfile → EnforceConsent.
func (p *Pipeline) Handler(next http.Handler) http.Handler {
	return Chain(
		p.Authenticate,
		p.ResolveAccount,
		p.ScopeProfile,
		p.EnforceConsent,
	)(next)
}

// Authenticate verifies the bearer token and attaches the claims to the
// request context. A missing or unverifiable token ends the request with
// 401 and the typed failure code.
func (p *Pipeline) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := p.tracer.Start(r.Context(), "middleware.Authenticate")

		token := auth.ExtractBearerToken(r.Header.Get(auth.HeaderAuthorization))
		if token == "" {
			span.End()
			WriteError(w, r, sserr.Unauthenticated(
				"auth: missing or malformed authorization header"))
			return
		}

		claims, err := p.verifier.Verify(ctx, token)
		span.End()
		if err != nil {
			WriteError(w, r, err)
			return
		}

		ctx = auth.ContextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResolveAccount maps the verified subject to the local account,
// provisioning it on first sight, and attaches it to the request context.
func (p *Pipeline) ResolveAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := p.tracer.Start(r.Context(), "middleware.ResolveAccount")

		claims, ok := auth.ClaimsFromContext(ctx)
		if !ok {
			span.End()
			WriteError(w, r, sserr.Unauthenticated(
				"auth: request reached account resolution without claims"))
			return
		}

		account, err := p.resolver.Resolve(ctx, claims.SubjectID, claims.Email, "")
		span.End()
		if err != nil {
			WriteError(w, r, err)
			return
		}

		ctx = identity.ContextWithAccount(ctx, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ScopeProfile authorizes the claimed active profile (from the
// X-Active-Profile header) against the resolved account and attaches the
// authorized profile id to the request context. Without the header the
// request proceeds account-scoped.
func (p *Pipeline) ScopeProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := p.tracer.Start(r.Context(), "middleware.ScopeProfile")

		account, ok := identity.AccountFromContext(ctx)
		if !ok {
			span.End()
			WriteError(w, r, sserr.Unauthenticated(
				"auth: request reached profile scoping without an account"))
			return
		}

		scopeID, prof, err := p.guard.Authorize(ctx, account.ID, r.Header.Get(HeaderActiveProfile))
		span.End()
		if err != nil {
			WriteError(w, r, err)
			return
		}

		ctx = profile.ContextWithProfileID(ctx, scopeID)
		if prof != nil {
			ctx = profile.ContextWithProfile(ctx, prof)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EnforceConsent blocks data-collecting calls for profiles that require
// guardian consent and do not have it. Allowed requests proceed unchanged.
func (p *Pipeline) EnforceConsent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := p.tracer.Start(r.Context(), "middleware.EnforceConsent")

		prof, _ := profile.ProfileFromContext(ctx)
		decision, err := p.gate.Check(ctx, prof, r.URL.Path)
		if err != nil {
			span.End()
			WriteError(w, r, err)
			return
		}

		span.SetAttributes(
			attribute.Bool("consent.allowed", decision.Allowed),
			attribute.String("consent.reason", string(decision.Reason)),
		)
		span.End()

		if !decision.Allowed {
			switch decision.Reason {
			case consent.ReasonConsentWithdrawn:
				WriteError(w, r, sserr.ConsentWithdrawn(decision.Type.String()))
			default:
				WriteError(w, r, sserr.ConsentRequired(decision.Type.String()))
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
