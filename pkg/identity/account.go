// Package identity implements the account-resolution stage of the
// SproutLearn trust boundary: mapping a verified token subject to a durable
// local Account, provisioning the Account lazily on the first authenticated
// request, and granting the new account's trial entitlement.
//
// # Exactly-Once Provisioning
//
// Two first-time requests from the same subject may both pass the "not
// found" check before either inserts. Correctness is delegated to the
// storage layer's uniqueness constraint on external_subject_id plus a
// conflict-recovery re-read, not to application-level locking: the loser of
// the insert race observes [sserr.CodeAlreadyExists], re-queries, and
// returns the winner's row. The second caller never grants a second trial.
package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Account is the durable local identity record for a verified subject.
// Exactly one Account exists per ExternalSubjectID; this invariant is
// enforced at creation time even under concurrent first-requests.
//
// Accounts are created by the [Resolver] and updated by profile and consent
// collaborators. This package never deletes accounts; deletion is an
// external collaborator's concern.
type Account struct {
	// ID is the account's primary key.
	ID uuid.UUID

	// ExternalSubjectID is the identity provider's subject id (unique).
	ExternalSubjectID string

	// Email is the subject's email address at first sight.
	Email string

	// Timezone is the account's IANA timezone name, if known. An empty or
	// invalid value falls back to UTC for trial end-date arithmetic.
	Timezone string

	// CreatedAt and UpdatedAt are storage timestamps in UTC.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the narrow repository contract the resolver depends on.
// Implementations must map a unique violation on ExternalSubjectID to
// [sserr.CodeAlreadyExists] and an empty lookup to [sserr.CodeNotFound].
type Store interface {
	// FindBySubjectID returns the account for the given external subject
	// id, or a CodeNotFound error if none exists.
	FindBySubjectID(ctx context.Context, subjectID string) (*Account, error)

	// Insert persists a new account. A concurrent insert for the same
	// ExternalSubjectID surfaces as a CodeAlreadyExists error.
	Insert(ctx context.Context, account *Account) error
}

// TrialGranter grants the time-boxed trial entitlement for a newly created
// account. It is implemented by the billing collaborator; the resolver
// treats grant failure as non-fatal.
type TrialGranter interface {
	GrantTrial(ctx context.Context, accountID uuid.UUID, endsAt time.Time) error
}

// contextKey is an unexported type for context keys in this package.
type contextKey int

// accountKey stores the resolved *Account in the request context.
const accountKey contextKey = iota

// ContextWithAccount returns a new context carrying the resolved account
// for downstream pipeline stages and route handlers.
func ContextWithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext retrieves the resolved account from the context.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	account, ok := ctx.Value(accountKey).(*Account)
	return account, ok
}
