package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SproutLearn/sprout-core/pkg/clients/postgres"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// accountColumns is the column list shared by the account queries.
const accountColumns = "id, external_subject_id, email, timezone, created_at, updated_at"

// PostgresStore is the pgx-backed [Store] implementation. The accounts
// table carries a unique constraint on external_subject_id; that constraint
// is the only serialization point for concurrent first-requests.
type PostgresStore struct {
	db *postgres.Client
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore over the given client.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindBySubjectID returns the account for the given external subject id,
// or a CodeNotFound error if no row matches.
func (s *PostgresStore) FindBySubjectID(ctx context.Context, subjectID string) (*Account, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE external_subject_id = $1",
		subjectID,
	)

	var (
		account  Account
		timezone *string
	)
	err := row.Scan(
		&account.ID,
		&account.ExternalSubjectID,
		&account.Email,
		&timezone,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sserr.Newf(sserr.CodeNotFound,
				"identity: no account for subject %q", subjectID)
		}
		return nil, sserr.Wrap(err, sserr.CodeStorage,
			"identity: account lookup failed")
	}
	if timezone != nil {
		account.Timezone = *timezone
	}
	return &account, nil
}

// Insert persists a new account row. A unique violation on
// external_subject_id maps to CodeAlreadyExists, which the resolver treats
// as the concurrent-winner signal.
func (s *PostgresStore) Insert(ctx context.Context, account *Account) error {
	var timezone *string
	if account.Timezone != "" {
		timezone = &account.Timezone
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO accounts (id, external_subject_id, email, timezone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID,
		account.ExternalSubjectID,
		account.Email,
		timezone,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sserr.Wrap(err, sserr.CodeAlreadyExists,
				"identity: account already exists for subject")
		}
		return sserr.Wrap(err, sserr.CodeStorage,
			"identity: account insert failed")
	}
	return nil
}

// Touch updates the account's updated_at timestamp, for callers that
// mutate account-owned data outside this package.
func (s *PostgresStore) Touch(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx,
		"UPDATE accounts SET updated_at = $2 WHERE id = $1",
		accountID, at.UTC(),
	)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeStorage,
			"identity: account touch failed")
	}
	return nil
}
