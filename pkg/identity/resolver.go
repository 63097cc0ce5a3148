package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
	"github.com/SproutLearn/sprout-core/pkg/trial"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/SproutLearn/sprout-core/pkg/identity"

// Resolver maps a verified subject id to a local [Account], creating one on
// the first authenticated request. Resolver is safe for concurrent use.
type Resolver struct {
	store   Store
	granter TrialGranter
	logger  *slog.Logger
	tracer  trace.Tracer

	// trialDays is the trial length granted at account creation.
	trialDays int

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// ResolverOption configures a Resolver beyond its required collaborators.
type ResolverOption func(*Resolver)

// WithTrialDays overrides the trial length granted at account creation.
// Non-positive values are ignored and the default length stays in effect.
func WithTrialDays(days int) ResolverOption {
	return func(r *Resolver) {
		if days > 0 {
			r.trialDays = days
		}
	}
}

// NewResolver creates a Resolver over the given store and trial granter.
// A nil granter disables trial grants (used by internal tooling); a nil
// logger falls back to slog.Default.
func NewResolver(store Store, granter TrialGranter, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		store:     store,
		granter:   granter,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		trialDays: trial.FullAccessDays,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the Account for the given external subject id, creating
// it if absent.
//
// An existing account is returned immediately with no side effects: no
// re-provisioning and no duplicate trial grant. For a new subject the
// insert is guarded by the store's uniqueness constraint; when the insert
// loses a race the winner's row is re-read and returned rather than
// erroring. The trial entitlement is granted synchronously on a genuine
// first creation only, and grant failure is logged but never fails account
// creation; the grant is left for out-of-band retry.
func (r *Resolver) Resolve(ctx context.Context, subjectID, email, timezone string) (*Account, error) {
	ctx, span := r.tracer.Start(ctx, "identity.Resolve")
	defer span.End()

	if subjectID == "" {
		return nil, sserr.New(sserr.CodeValidationRequired,
			"identity: subject id must not be empty")
	}

	account, err := r.store.FindBySubjectID(ctx, subjectID)
	if err == nil {
		span.SetAttributes(attribute.Bool("identity.created", false))
		return account, nil
	}
	if !sserr.IsNotFound(err) {
		return nil, err
	}

	now := r.now().UTC()
	account = &Account{
		ID:                uuid.New(),
		ExternalSubjectID: subjectID,
		Email:             email,
		Timezone:          timezone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := r.store.Insert(ctx, account); err != nil {
		if sserr.IsConflict(err) {
			// A concurrent request won the insert race; its row is the
			// account. The loser performs no trial grant.
			span.SetAttributes(attribute.Bool("identity.insert_race_lost", true))
			return r.store.FindBySubjectID(ctx, subjectID)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Bool("identity.created", true))
	r.grantTrial(ctx, account)
	return account, nil
}

// grantTrial computes the trial end instant (end of day in the account's
// timezone, trialDays out) and invokes the billing collaborator. Failures
// are logged and swallowed: the account exists either way.
func (r *Resolver) grantTrial(ctx context.Context, account *Account) {
	if r.granter == nil {
		return
	}

	loc := trial.ResolveLocation(account.Timezone)
	endsAt := trial.ComputeTrialEndDate(r.now(), loc, r.trialDays)

	if err := r.granter.GrantTrial(ctx, account.ID, endsAt); err != nil {
		r.logger.WarnContext(ctx, "identity: trial grant failed, leaving for out-of-band retry",
			"account_id", account.ID,
			"trial_ends_at", endsAt,
			"error", err,
		)
	}
}
