package consent

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
	"github.com/SproutLearn/sprout-core/pkg/profile"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/SproutLearn/sprout-core/pkg/consent"

// DefaultExemptPathPrefixes is the fixed allow-list of path prefixes that
// pass the gate regardless of consent status. Blocking any of these would
// make consent resolution impossible: the guardian flow, profile listing,
// and billing must stay reachable, and health checks and test seeding
// carry no learner data.
var DefaultExemptPathPrefixes = []string{
	"/health",
	"/api/consent",
	"/api/profiles",
	"/api/billing",
	"/api/test",
}

// Reason explains a gate decision.
type Reason string

const (
	// ReasonExemptPath: the request path is on the allow-list.
	ReasonExemptPath Reason = "exempt_path"

	// ReasonAccountScoped: the request carries no profile scope, so there
	// is no minor persona to protect.
	ReasonAccountScoped Reason = "account_scoped"

	// ReasonNotRequired: the jurisdiction rule table does not require
	// consent for this profile.
	ReasonNotRequired Reason = "not_required"

	// ReasonUnevaluated: birth date or jurisdiction is missing, so the
	// rule table cannot be applied. The gate fails open.
	ReasonUnevaluated Reason = "unevaluated"

	// ReasonConsented: the guardian has approved.
	ReasonConsented Reason = "consented"

	// ReasonConsentPending: consent is required and the guardian has not
	// yet responded (status pending or requested).
	ReasonConsentPending Reason = "consent_pending"

	// ReasonConsentWithdrawn: the guardian has withdrawn consent.
	ReasonConsentWithdrawn Reason = "consent_withdrawn"
)

// Decision is the gate's outcome for one request.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Reason explains the outcome.
	Reason Reason

	// Type is the consent regime involved, when one applies.
	Type Type
}

// Gate decides whether an in-flight request must be blocked for missing
// guardian consent. Gate is read-only and safe for concurrent use.
type Gate struct {
	store          Store
	exemptPrefixes []string
	tracer         trace.Tracer

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewGate creates a Gate over the given consent store. A nil or empty
// prefix list falls back to [DefaultExemptPathPrefixes].
func NewGate(store Store, exemptPrefixes []string) *Gate {
	if len(exemptPrefixes) == 0 {
		exemptPrefixes = DefaultExemptPathPrefixes
	}
	return &Gate{
		store:          store,
		exemptPrefixes: exemptPrefixes,
		tracer:         otel.Tracer(tracerName),
		now:            time.Now,
	}
}

// Check evaluates the gate for a request on the given path, scoped to the
// given profile (nil for account-scoped requests).
//
// Exempt paths always pass. Missing birth date or jurisdiction means the
// rule table cannot be applied, and the gate allows the request.
//
// TODO: the fail-open branch for missing birth date or jurisdiction is
// pending product/legal review (tracked in the consent policy doc).
//
// When consent is required, the latest record for (profile, type) decides:
// pending or requested blocks with ReasonConsentPending, withdrawn blocks
// with ReasonConsentWithdrawn, consented allows. A profile with no record
// is treated as pending. Storage failures return an error: the gate never
// guesses on a read failure.
func (g *Gate) Check(ctx context.Context, p *profile.Profile, path string) (*Decision, error) {
	ctx, span := g.tracer.Start(ctx, "consent.Check")
	defer span.End()

	if g.isExempt(path) {
		return g.decide(span, &Decision{Allowed: true, Reason: ReasonExemptPath}), nil
	}

	if p == nil {
		return g.decide(span, &Decision{Allowed: true, Reason: ReasonAccountScoped}), nil
	}

	if p.BirthDate == nil || p.Jurisdiction == "" {
		return g.decide(span, &Decision{Allowed: true, Reason: ReasonUnevaluated}), nil
	}

	req := CheckRequired(*p.BirthDate, p.Jurisdiction, g.now())
	if !req.Required {
		return g.decide(span, &Decision{Allowed: true, Reason: ReasonNotRequired}), nil
	}

	status := StatusPending
	record, err := g.store.Latest(ctx, p.ID, req.Type)
	switch {
	case err == nil:
		status = record.Status
	case sserr.IsNotFound(err):
		// No record yet: consent has not even been requested.
	default:
		return nil, err
	}

	switch status {
	case StatusConsented:
		return g.decide(span, &Decision{Allowed: true, Reason: ReasonConsented, Type: req.Type}), nil
	case StatusWithdrawn:
		return g.decide(span, &Decision{Allowed: false, Reason: ReasonConsentWithdrawn, Type: req.Type}), nil
	default:
		return g.decide(span, &Decision{Allowed: false, Reason: ReasonConsentPending, Type: req.Type}), nil
	}
}

// isExempt reports whether the path matches the allow-list.
func (g *Gate) isExempt(path string) bool {
	for _, prefix := range g.exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// decide records the decision on the span and returns it.
func (g *Gate) decide(span trace.Span, d *Decision) *Decision {
	span.SetAttributes(
		attribute.Bool("consent.allowed", d.Allowed),
		attribute.String("consent.reason", string(d.Reason)),
	)
	return d
}
