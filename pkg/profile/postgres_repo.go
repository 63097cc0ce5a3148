package profile

import (
	"context"

	"github.com/google/uuid"

	"github.com/SproutLearn/sprout-core/pkg/clients/postgres"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// PostgresStore is the pgx-backed [Store] implementation.
type PostgresStore struct {
	db *postgres.Client
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore over the given client.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByIDAndAccount returns the profile matching both the profile id and
// the owning account id. Filtering on both columns in the query itself is
// what enforces tenant scope at the storage layer.
func (s *PostgresStore) FindByIDAndAccount(ctx context.Context, profileID, accountID uuid.UUID) (*Profile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, account_id, display_name, kind, birth_date, jurisdiction, created_at
		 FROM profiles WHERE id = $1 AND account_id = $2`,
		profileID, accountID,
	)

	var (
		p            Profile
		jurisdiction *string
	)
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.DisplayName,
		&p.Kind,
		&p.BirthDate,
		&jurisdiction,
		&p.CreatedAt,
	)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sserr.Newf(sserr.CodeNotFound,
				"profile: no profile %s owned by account %s", profileID, accountID)
		}
		return nil, sserr.Wrap(err, sserr.CodeStorage,
			"profile: profile lookup failed")
	}
	if jurisdiction != nil {
		p.Jurisdiction = *jurisdiction
	}
	return &p, nil
}
