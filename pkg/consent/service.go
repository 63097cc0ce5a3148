package consent

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
	"github.com/SproutLearn/sprout-core/pkg/profile"
)

// DefaultRestoreGraceWindow bounds how long after a withdrawal the guardian
// may restore consent without starting a fresh request.
const DefaultRestoreGraceWindow = 30 * 24 * time.Hour

// Service drives the consent lifecycle: requesting guardian consent,
// recording the guardian's response, and the revoke/restore cycle.
type Service struct {
	store       Store
	profiles    profile.Store
	notifier    Notifier
	remover     DataRemover
	logger      *slog.Logger
	tracer      trace.Tracer
	graceWindow time.Duration

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewService creates a consent Service. A nil notifier skips guardian
// notification, a nil remover skips data removal, and a nil logger falls
// back to slog.Default. A non-positive grace window falls back to
// [DefaultRestoreGraceWindow].
func NewService(store Store, profiles profile.Store, notifier Notifier, remover DataRemover, logger *slog.Logger, graceWindow time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if graceWindow <= 0 {
		graceWindow = DefaultRestoreGraceWindow
	}
	return &Service{
		store:       store,
		profiles:    profiles,
		notifier:    notifier,
		remover:     remover,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
		graceWindow: graceWindow,
		now:         time.Now,
	}
}

// Request moves a profile's consent from pending to requested: a new record
// is created carrying the guardian contact and a freshly minted single-use
// response token, and the guardian is notified.
//
// A profile whose latest record is already requested or consented cannot be
// re-requested; the call fails with CodeInvalidTransition. A withdrawn
// profile may be re-requested, which starts a fresh record.
func (s *Service) Request(ctx context.Context, profileID uuid.UUID, consentType Type, guardianContact string) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "consent.Request")
	defer span.End()

	if guardianContact == "" {
		return nil, sserr.New(sserr.CodeValidationRequired,
			"consent: guardian contact is required")
	}

	current := StatusPending
	latest, err := s.store.Latest(ctx, profileID, consentType)
	switch {
	case err == nil:
		current = latest.Status
	case sserr.IsNotFound(err):
		// First request for this profile.
	default:
		return nil, err
	}

	if current != StatusPending && current != StatusWithdrawn {
		return nil, sserr.Newf(sserr.CodeInvalidTransition,
			"consent: cannot request consent from status %q", current)
	}

	record := &Record{
		ID:              uuid.New(),
		ProfileID:       profileID,
		Type:            consentType,
		Status:          StatusRequested,
		GuardianContact: guardianContact,
		ResponseToken:   uuid.NewString(),
		RequestedAt:     s.now().UTC(),
	}
	if err := s.store.Insert(ctx, record); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("consent.type", consentType.String()),
		attribute.String("consent.record_id", record.ID.String()),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyGuardian(ctx, guardianContact, record.ResponseToken); err != nil {
			// The record stands; delivery can be retried out of band.
			s.logger.WarnContext(ctx, "guardian notification failed",
				slog.String("record_id", record.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return record, nil
}

// Respond records the guardian's answer to an outstanding request, looked
// up by the single-use response token. Approval moves the record to
// consented; denial moves it to withdrawn and triggers removal of the
// profile's collected data. Either way the token is consumed: a second
// response with the same token fails with CodeNotFound.
func (s *Service) Respond(ctx context.Context, responseToken string, approved bool) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "consent.Respond")
	defer span.End()

	if responseToken == "" {
		return nil, sserr.New(sserr.CodeValidationRequired,
			"consent: response token is required")
	}

	record, err := s.store.FindByToken(ctx, responseToken)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusRequested {
		return nil, sserr.Newf(sserr.CodeInvalidTransition,
			"consent: record %s is not awaiting a response", record.ID)
	}

	target := StatusConsented
	if !approved {
		target = StatusWithdrawn
	}
	if !ValidTransition(record.Status, target) {
		return nil, sserr.Newf(sserr.CodeInvalidTransition,
			"consent: transition %q to %q is not allowed", record.Status, target)
	}

	respondedAt := s.now().UTC()
	record.Status = target
	record.ResponseToken = ""
	record.RespondedAt = &respondedAt
	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("consent.status", target.String()))

	if !approved {
		s.removeProfileData(ctx, record.ProfileID)
	}
	return record, nil
}

// Revoke withdraws previously granted consent. The caller must own the
// profile: the lookup is scoped to the account, and a profile outside the
// account fails with CodeForbidden. Withdrawal triggers removal of the
// profile's collected data.
func (s *Service) Revoke(ctx context.Context, accountID, profileID uuid.UUID, consentType Type) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "consent.Revoke")
	defer span.End()

	if err := s.authorizeProfile(ctx, accountID, profileID); err != nil {
		return nil, err
	}

	record, err := s.store.Latest(ctx, profileID, consentType)
	if err != nil {
		return nil, err
	}
	if !ValidTransition(record.Status, StatusWithdrawn) {
		return nil, sserr.Newf(sserr.CodeInvalidTransition,
			"consent: cannot withdraw from status %q", record.Status)
	}

	respondedAt := s.now().UTC()
	record.Status = StatusWithdrawn
	record.RespondedAt = &respondedAt
	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("consent.record_id", record.ID.String()))

	s.removeProfileData(ctx, record.ProfileID)
	return record, nil
}

// Restore re-grants consent after a withdrawal. It is only allowed within
// the grace window after the withdrawal instant; past the window the
// guardian must go through a fresh consent request.
func (s *Service) Restore(ctx context.Context, accountID, profileID uuid.UUID, consentType Type) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "consent.Restore")
	defer span.End()

	if err := s.authorizeProfile(ctx, accountID, profileID); err != nil {
		return nil, err
	}

	record, err := s.store.Latest(ctx, profileID, consentType)
	if err != nil {
		return nil, err
	}
	if !ValidTransition(record.Status, StatusConsented) {
		return nil, sserr.Newf(sserr.CodeInvalidTransition,
			"consent: cannot restore from status %q", record.Status)
	}
	if record.RespondedAt == nil || s.now().Sub(*record.RespondedAt) > s.graceWindow {
		return nil, sserr.New(sserr.CodeInvalidTransition,
			"consent: restore window has passed, a new consent request is required")
	}

	respondedAt := s.now().UTC()
	record.Status = StatusConsented
	record.RespondedAt = &respondedAt
	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("consent.record_id", record.ID.String()))
	return record, nil
}

// authorizeProfile verifies the profile belongs to the account. Any
// mismatch is reported as CodeForbidden, never CodeNotFound.
func (s *Service) authorizeProfile(ctx context.Context, accountID, profileID uuid.UUID) error {
	if s.profiles == nil {
		return nil
	}
	_, err := s.profiles.FindByIDAndAccount(ctx, profileID, accountID)
	if err != nil {
		if sserr.IsNotFound(err) {
			return sserr.Forbidden(
				"consent: profile is not accessible to this account")
		}
		return err
	}
	return nil
}

// removeProfileData cascades a denial or withdrawal into data removal.
// Failures are logged and retried out of band; the status change stands.
func (s *Service) removeProfileData(ctx context.Context, profileID uuid.UUID) {
	if s.remover == nil {
		return
	}
	if err := s.remover.RemoveProfileData(ctx, profileID); err != nil {
		s.logger.ErrorContext(ctx, "profile data removal failed, leaving for out-of-band retry",
			slog.String("profile_id", profileID.String()),
			slog.String("error", err.Error()),
		)
	}
}
