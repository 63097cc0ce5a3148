// Package profile implements the tenant-scope guard of the SproutLearn
// trust boundary. A Profile is a persona under an Account (a parent or a
// child); its data must never be reachable by a different Account.
//
// The [Guard] verifies that a claimed active-profile id belongs to the
// authenticated account before downstream code may act in that profile's
// name. Any mismatch (fabricated or foreign or malformed ids alike) yields
// the same Forbidden error, never NotFound: the response must not confirm
// whether the profile exists.
//
// The guard only verifies membership. It never creates or mutates profiles;
// profile CRUD is an external collaborator's concern.
package profile

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the persona type of a profile. Session-timer thresholds
// and the consent gate both branch on whether the persona is a minor.
type Kind string

const (
	// KindGuardian is an adult persona managing the account.
	KindGuardian Kind = "guardian"

	// KindLearner is a learner persona, typically a child.
	KindLearner Kind = "learner"
)

// Valid reports whether the kind is one of the recognized values.
func (k Kind) Valid() bool {
	switch k {
	case KindGuardian, KindLearner:
		return true
	default:
		return false
	}
}

// Profile is a tenant-scoped persona owned exclusively by one Account.
type Profile struct {
	// ID is the profile's primary key.
	ID uuid.UUID

	// AccountID is the owning account. Ownership is exclusive.
	AccountID uuid.UUID

	// DisplayName is the persona's display name.
	DisplayName string

	// Kind is the persona type.
	Kind Kind

	// BirthDate is the persona's date of birth, if recorded. The consent
	// gate cannot evaluate age without it.
	BirthDate *time.Time

	// Jurisdiction is the persona's regulatory jurisdiction code
	// (e.g. "EU", "US"); empty when unknown.
	Jurisdiction string

	// CreatedAt is the storage timestamp in UTC.
	CreatedAt time.Time
}

// IsMinorPersona reports whether the profile is a learner persona, which
// gets the tighter session-timer thresholds.
func (p *Profile) IsMinorPersona() bool {
	return p.Kind == KindLearner
}

// Store is the narrow repository contract the guard depends on.
type Store interface {
	// FindByIDAndAccount returns the profile with the given id owned by
	// the given account, or a CodeNotFound error when no such row exists.
	// The lookup filters on both columns; ownership is checked by the
	// query itself, not by comparing after the fact.
	FindByIDAndAccount(ctx context.Context, profileID, accountID uuid.UUID) (*Profile, error)
}

// contextKey is an unexported type for context keys in this package.
type contextKey int

const (
	// profileIDKey stores the authorized active-profile id.
	profileIDKey contextKey = iota

	// profileKey stores the loaded *Profile for profile-scoped requests.
	profileKey
)

// ContextWithProfileID returns a new context carrying the authorized
// active-profile id for downstream stages, including the consent gate.
func ContextWithProfileID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, profileIDKey, id)
}

// ProfileIDFromContext retrieves the authorized active-profile id.
func ProfileIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(profileIDKey).(uuid.UUID)
	return id, ok
}

// ContextWithProfile returns a new context carrying the loaded profile.
// Only set for requests that claimed (and were granted) a profile scope.
func ContextWithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileKey, p)
}

// ProfileFromContext retrieves the loaded profile, if the request is
// profile-scoped.
func ProfileFromContext(ctx context.Context) (*Profile, bool) {
	p, ok := ctx.Value(profileKey).(*Profile)
	return p, ok
}
