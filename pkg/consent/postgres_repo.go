package consent

import (
	"context"

	"github.com/google/uuid"

	"github.com/SproutLearn/sprout-core/pkg/clients/postgres"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// consentColumns is the column list shared by the read queries.
const consentColumns = `id, profile_id, consent_type, status, guardian_contact, response_token, requested_at, responded_at`

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

// Latest returns the newest record for the (profile, type) pair.
func (s *PostgresStore) Latest(ctx context.Context, profileID uuid.UUID, consentType Type) (*Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+consentColumns+`
		 FROM consent_records
		 WHERE profile_id = $1 AND consent_type = $2
		 ORDER BY requested_at DESC
		 LIMIT 1`,
		profileID, consentType,
	)
	record, err := scanRecord(row)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sserr.Newf(sserr.CodeNotFound,
				"consent: no %s record for profile %s", consentType, profileID)
		}
		return nil, sserr.Wrap(err, sserr.CodeStorage,
			"consent: latest record lookup failed")
	}
	return record, nil
}

// Insert persists a new consent record.
func (s *PostgresStore) Insert(ctx context.Context, record *Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO consent_records
		 (id, profile_id, consent_type, status, guardian_contact, response_token, requested_at, responded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID,
		record.ProfileID,
		record.Type,
		record.Status,
		record.GuardianContact,
		nullableString(record.ResponseToken),
		record.RequestedAt,
		record.RespondedAt,
	)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeStorage,
			"consent: record insert failed")
	}
	return nil
}

// FindByToken returns the record carrying the single-use response token.
// A consumed token matches nothing because Update nulls the column.
func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+consentColumns+`
		 FROM consent_records
		 WHERE response_token = $1`,
		token,
	)
	record, err := scanRecord(row)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, sserr.New(sserr.CodeNotFound,
				"consent: no record matches the response token")
		}
		return nil, sserr.Wrap(err, sserr.CodeStorage,
			"consent: token lookup failed")
	}
	return record, nil
}

// Update persists status, token, and response-time changes to a record.
func (s *PostgresStore) Update(ctx context.Context, record *Record) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE consent_records
		 SET status = $2, response_token = $3, responded_at = $4
		 WHERE id = $1`,
		record.ID,
		record.Status,
		nullableString(record.ResponseToken),
		record.RespondedAt,
	)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeStorage,
			"consent: record update failed")
	}
	if tag.RowsAffected() == 0 {
		return sserr.Newf(sserr.CodeNotFound,
			"consent: record %s does not exist", record.ID)
	}
	return nil
}

// scanRecord reads one consent row. response_token and responded_at are
// nullable in the schema.
func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var (
		record Record
		token  *string
	)
	err := row.Scan(
		&record.ID,
		&record.ProfileID,
		&record.Type,
		&record.Status,
		&record.GuardianContact,
		&token,
		&record.RequestedAt,
		&record.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	if token != nil {
		record.ResponseToken = *token
	}
	return &record, nil
}

// nullableString maps the empty string to SQL NULL, keeping the partial
// unique index on response_token free of empty-string collisions.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
