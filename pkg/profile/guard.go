package profile

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/SproutLearn/sprout-core/pkg/profile"

// Guard confirms profile ownership before downstream code may act in a
// profile's name. Guard is read-only and safe for concurrent use.
type Guard struct {
	store  Store
	tracer trace.Tracer
}

// NewGuard creates a Guard over the given profile store.
func NewGuard(store Store) *Guard {
	return &Guard{
		store:  store,
		tracer: otel.Tracer(tracerName),
	}
}

// Authorize resolves the claimed active-profile id for the given account.
//
// With no claimed profile the request proceeds at the account level: the
// returned id is the account's own id and the returned profile is nil.
// With a claimed profile, the lookup filters on both the profile id and
// the owning account id. Any mismatch (malformed id, fabricated id, or a
// profile owned by a different account) yields CodeForbidden. It is never
// CodeNotFound: the caller must not learn whether the profile exists.
//
// Storage failures pass through unchanged so they surface as 5xx rather
// than a misleading denial.
func (g *Guard) Authorize(ctx context.Context, accountID uuid.UUID, claimedProfileID string) (uuid.UUID, *Profile, error) {
	ctx, span := g.tracer.Start(ctx, "profile.Authorize")
	defer span.End()

	if claimedProfileID == "" {
		span.SetAttributes(attribute.Bool("profile.account_scoped", true))
		return accountID, nil, nil
	}

	profileID, err := uuid.Parse(claimedProfileID)
	if err != nil {
		return uuid.Nil, nil, sserr.Forbidden(
			"profile: claimed profile is not accessible to this account")
	}

	p, err := g.store.FindByIDAndAccount(ctx, profileID, accountID)
	if err != nil {
		if sserr.IsNotFound(err) {
			return uuid.Nil, nil, sserr.Forbidden(
				"profile: claimed profile is not accessible to this account")
		}
		return uuid.Nil, nil, err
	}

	span.SetAttributes(attribute.String("profile.id", p.ID.String()))
	return p.ID, p, nil
}
