package trial

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SproutLearn/sprout-core/pkg/clients/postgres"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// Grant is one account's trial entitlement.
type Grant struct {
	// AccountID owns the grant.
	AccountID uuid.UUID

	// StartedAt is when the trial began.
	StartedAt time.Time

	// EndsAt is the trial end instant, end of day in the account's
	// timezone.
	EndsAt time.Time
}

// DaysSinceStart returns calendar days elapsed since the trial began in
// the given location, the input to [PhaseForDay] and [Warning]. A nil
// location falls back to UTC. Counting calendar days rather than 24-hour
// intervals keeps the day boundary aligned with [ComputeTrialEndDate]
// across DST transitions.
func (g *Grant) DaysSinceStart(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	start := g.StartedAt.In(loc)
	cur := now.In(loc)
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	curDay := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, loc)
	if !curDay.After(startDay) {
		return 0
	}
	// Rounding absorbs the hour a DST transition adds or removes.
	return int(curDay.Sub(startDay).Hours()/24 + 0.5)
}

// PostgresGrantStore persists trial grants. It satisfies the account
// resolver's granter contract.
type PostgresGrantStore struct {
	db *postgres.Client
}

// NewPostgresGrantStore creates a PostgresGrantStore over the given client.
func NewPostgresGrantStore(db *postgres.Client) *PostgresGrantStore {
	return &PostgresGrantStore{db: db}
}

// GrantTrial records the trial entitlement for an account. The insert is
// idempotent: an account that already holds a grant keeps it unchanged, so
// an out-of-band retry after a logged failure cannot double-grant.
func (s *PostgresGrantStore) GrantTrial(ctx context.Context, accountID uuid.UUID, endsAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO trial_grants (account_id, started_at, ends_at)
		 VALUES ($1, now(), $2)
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID, endsAt,
	)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeStorage,
			"trial: grant insert failed")
	}
	return nil
}

// FindByAccount returns the account's trial grant, or a CodeNotFound error
// when the account never received one.
func (s *PostgresGrantStore) FindByAccount(ctx context.Context, accountID uuid.UUID) (*Grant, error) {
	row := s.db.QueryRow(ctx,
		`SELECT account_id, started_at, ends_at
		 FROM trial_grants WHERE account_id = $1`,
		accountID,
	)

	var g Grant
	if err := row.Scan(&g.AccountID, &g.StartedAt, &g.EndsAt); err != nil {
		if postgres.IsNoRows(err) {
			return nil, sserr.Newf(sserr.CodeNotFound,
				"trial: no grant for account %s", accountID)
		}
		return nil, sserr.Wrap(err, sserr.CodeStorage,
			"trial: grant lookup failed")
	}
	return &g, nil
}
