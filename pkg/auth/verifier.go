package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/SproutLearn/sprout-core/pkg/auth"

// maxTokenSize is the maximum accepted size for a bearer token (8 KB).
// Larger tokens are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// Verifier validates RS256-signed bearer tokens against the keys held by a
// [KeySetCache]. It implements [TokenVerifier] and is safe for concurrent
// use by multiple goroutines.
//
// Signature verification is delegated to golang-jwt; exp and nbf are
// validated explicitly afterwards so that the two failure modes carry
// distinct error codes and so that boundary equality (exp == now) is
// rejected as expired.
type Verifier struct {
	keys   *KeySetCache
	tracer trace.Tracer

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// Compile-time assertion that Verifier implements TokenVerifier.
var _ TokenVerifier = (*Verifier)(nil)

// NewVerifier creates a Verifier backed by the given key-set cache.
func NewVerifier(keys *KeySetCache) *Verifier {
	return &Verifier{
		keys:   keys,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

// Verify validates the bearer token and returns its claims.
//
// Steps:
//  1. Reject empty or oversized tokens (CodeTokenMalformed)
//  2. Reject tokens without exactly three segments (CodeTokenMalformed)
//  3. Reject the "none" algorithm and anything other than RS256
//  4. Resolve the header kid against the key-set cache
//  5. Verify the signature over header.payload
//  6. Reject exp at or before now (CodeTokenExpired) and nbf after now
//     (CodeTokenNotYetValid)
//
// Unsigned or garbled input fails closed; no failure path ever returns
// claims alongside an error.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Verify")
	defer span.End()

	if tokenStr == "" {
		return nil, failSpan(span, sserr.New(sserr.CodeTokenMalformed,
			"auth: token must not be empty"))
	}
	if len(tokenStr) > maxTokenSize {
		return nil, failSpan(span, sserr.New(sserr.CodeTokenMalformed,
			"auth: token exceeds maximum size"))
	}
	if strings.Count(tokenStr, ".") != 2 {
		return nil, failSpan(span, sserr.New(sserr.CodeTokenMalformed,
			"auth: token must have exactly three segments"))
	}

	// Signature verification. WithValidMethods pins RS256, which also
	// rejects alg "none" and blocks algorithm-confusion downgrades.
	// Claim validation is disabled here and performed explicitly below.
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, sserr.New(sserr.CodeTokenMalformed,
				"auth: token header missing kid")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, failSpan(span, classifyParseError(err))
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, failSpan(span, sserr.New(sserr.CodeTokenMalformed,
			"auth: unable to extract token claims"))
	}

	claims, verr := v.validateClaims(mc)
	if verr != nil {
		return nil, failSpan(span, verr)
	}

	span.SetAttributes(attribute.String("auth.subject_id", claims.SubjectID))
	return claims, nil
}

// validateClaims checks temporal validity and extracts the subject id and
// optional email. A token whose exp equals the current instant is already
// expired.
func (v *Verifier) validateClaims(mc jwt.MapClaims) (*Claims, *sserr.Error) {
	now := v.now()

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, sserr.New(sserr.CodeTokenMalformed,
			"auth: token is missing a valid exp claim")
	}
	if !exp.Time.After(now) {
		return nil, sserr.New(sserr.CodeTokenExpired,
			"auth: token has expired")
	}

	claims := &Claims{ExpiresAt: exp.Time}

	nbf, err := mc.GetNotBefore()
	if err != nil {
		return nil, sserr.New(sserr.CodeTokenMalformed,
			"auth: token nbf claim is invalid")
	}
	if nbf != nil {
		if nbf.Time.After(now) {
			return nil, sserr.New(sserr.CodeTokenNotYetValid,
				"auth: token is not yet valid")
		}
		claims.NotBefore = nbf.Time
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, sserr.New(sserr.CodeTokenMalformed,
			"auth: token is missing a sub claim")
	}
	claims.SubjectID = sub

	if email, ok := mc["email"].(string); ok {
		claims.Email = email
	}

	return claims, nil
}

// classifyParseError maps golang-jwt parse failures (and key lookup
// failures surfaced through the keyfunc) to typed errors. Errors that are
// already *sserr.Error pass through unchanged so that CodeUnknownKey and
// CodeKeySetUnavailable keep their identities.
func classifyParseError(err error) *sserr.Error {
	var ssErr *sserr.Error
	if errors.As(err, &ssErr) {
		return ssErr
	}
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return sserr.Wrap(err, sserr.CodeTokenMalformed, "auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return sserr.Wrap(err, sserr.CodeUnauthenticated, "auth: token signature is invalid")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return sserr.Wrap(err, sserr.CodeUnauthenticated, "auth: token is unverifiable")
	default:
		return sserr.Wrap(err, sserr.CodeUnauthenticated, "auth: token verification failed")
	}
}

// failSpan records the error on the span and returns it, keeping the
// error-path call sites to one line.
func failSpan(span trace.Span, err *sserr.Error) *sserr.Error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
