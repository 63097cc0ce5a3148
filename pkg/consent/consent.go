// Package consent implements the minor-protection consent gate of the
// SproutLearn trust boundary: jurisdiction-specific age rules (EU/GDPR and
// US/COPPA thresholds), the guardian consent status state machine, and the
// per-request enforcement policy that blocks data-collecting calls until a
// guardian has responded.
//
// # Status State Machine
//
// A profile's consent status for a given type moves through:
//
//	pending → parental_consent_requested → {consented | withdrawn}
//
// and may afterwards cycle between consented and withdrawn only through
// the explicit revoke and restore actions, with restore limited to a grace
// window after withdrawal. All transitions are validated against the
// transition matrix; illegal transitions are rejected with
// [sserr.CodeInvalidTransition].
//
// # Enforcement
//
// The [Gate] decides per request whether a profile-scoped call may proceed.
// A fixed allow-list of path prefixes (health checks, the consent flow
// itself, profile listing, billing, test seeding) always passes regardless
// of status, because blocking those would make consent resolution
// impossible. When the profile's birth date or jurisdiction is missing the
// gate cannot evaluate and allows the request.
package consent

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the regulatory regime requiring guardian consent.
type Type string

const (
	// TypeGDPR is the EU regime; consent is required under age 16.
	TypeGDPR Type = "GDPR"

	// TypeCOPPA is the US regime; consent is required under age 13.
	TypeCOPPA Type = "COPPA"
)

// String returns the string representation of the consent type.
func (t Type) String() string {
	return string(t)
}

// Status is the guardian consent status for one (profile, type) pair.
type Status string

const (
	// StatusPending is the initial status: consent is needed but no
	// guardian has been contacted yet. A profile with no consent record
	// at all is treated as pending.
	StatusPending Status = "pending"

	// StatusRequested means a guardian contact has been submitted and the
	// guardian has been sent a single-use response token.
	StatusRequested Status = "parental_consent_requested"

	// StatusConsented means the guardian approved. Data-collecting calls
	// may proceed.
	StatusConsented Status = "consented"

	// StatusWithdrawn means the guardian denied or later revoked consent.
	// Data-collecting calls are blocked and the profile's collected data
	// is removed by the data-removal collaborator.
	StatusWithdrawn Status = "withdrawn"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether the status is one of the recognized values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRequested, StatusConsented, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// validTransitions defines the allowed consent status transitions.
//
// Transition matrix:
//
//	pending    → parental_consent_requested
//	requested  → consented, withdrawn
//	consented  → withdrawn                 (revoke)
//	withdrawn  → consented                 (restore, within grace window)
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRequested},
	StatusRequested: {StatusConsented, StatusWithdrawn},
	StatusConsented: {StatusWithdrawn},
	StatusWithdrawn: {StatusConsented},
}

// ValidTransition reports whether moving from status from to status to is
// allowed by the state machine. Same-status transitions are always
// rejected. The grace-window restriction on withdrawn → consented is
// enforced by [Service.Restore], not here.
func ValidTransition(from, to Status) bool {
	if from == to {
		return false
	}
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Record is one consent state for a (profile, type) pair. History may be
// retained as multiple records; only the latest matters for gating.
type Record struct {
	// ID is the record's primary key.
	ID uuid.UUID

	// ProfileID is the profile the consent covers.
	ProfileID uuid.UUID

	// Type is the regulatory regime.
	Type Type

	// Status is the current consent status.
	Status Status

	// GuardianContact is the guardian's contact address submitted with
	// the consent request; empty before a request is made.
	GuardianContact string

	// ResponseToken is the single-use token the guardian responds with.
	// Cleared once the guardian has responded.
	ResponseToken string

	// RequestedAt is when this record was created.
	RequestedAt time.Time

	// RespondedAt is when the guardian responded (or the consent was
	// revoked/restored); nil while a response is outstanding.
	RespondedAt *time.Time
}

// Store is the repository contract for consent records.
type Store interface {
	// Latest returns the most recent record for the (profile, type)
	// pair, or a CodeNotFound error when the profile has none.
	Latest(ctx context.Context, profileID uuid.UUID, consentType Type) (*Record, error)

	// Insert persists a new consent record.
	Insert(ctx context.Context, record *Record) error

	// FindByToken returns the record carrying the given single-use
	// response token, or a CodeNotFound error.
	FindByToken(ctx context.Context, token string) (*Record, error)

	// Update persists changes to an existing record.
	Update(ctx context.Context, record *Record) error
}

// DataRemover is the external collaborator that cascades a consent denial
// or withdrawal into removal of the profile's collected data. This package
// only reports the resulting status; removal mechanics live elsewhere.
type DataRemover interface {
	RemoveProfileData(ctx context.Context, profileID uuid.UUID) error
}

// Notifier is the external collaborator that delivers the consent request
// to the guardian. Delivery failure does not roll back the status change.
type Notifier interface {
	NotifyGuardian(ctx context.Context, contact, responseToken string) error
}
