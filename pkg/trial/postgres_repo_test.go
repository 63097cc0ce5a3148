package trial

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SproutLearn/sprout-core/pkg/clients/postgres"
	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

func newMockGrantStore(t *testing.T) (*PostgresGrantStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock pool")
	t.Cleanup(mock.Close)
	return NewPostgresGrantStore(postgres.NewFromPool(mock, "sproutlearn_test")), mock
}

func TestPostgresGrantStore_GrantTrial(t *testing.T) {
	store, mock := newMockGrantStore(t)

	accountID := uuid.New()
	endsAt := time.Date(2026, time.September, 13, 21, 59, 59, 999_000_000, time.UTC)
	mock.ExpectExec("INSERT INTO trial_grants").
		WithArgs(accountID, endsAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.GrantTrial(context.Background(), accountID, endsAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantStore_GrantTrial_ExistingGrantIsKept(t *testing.T) {
	store, mock := newMockGrantStore(t)

	accountID := uuid.New()
	endsAt := time.Date(2026, time.September, 13, 21, 59, 59, 999_000_000, time.UTC)
	// ON CONFLICT DO NOTHING: zero rows affected is still success.
	mock.ExpectExec("INSERT INTO trial_grants").
		WithArgs(accountID, endsAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, store.GrantTrial(context.Background(), accountID, endsAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantStore_FindByAccount(t *testing.T) {
	store, mock := newMockGrantStore(t)

	accountID := uuid.New()
	startedAt := time.Date(2026, time.August, 30, 10, 0, 0, 0, time.UTC)
	endsAt := time.Date(2026, time.September, 13, 21, 59, 59, 999_000_000, time.UTC)
	mock.ExpectQuery("SELECT account_id, started_at, ends_at").
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "started_at", "ends_at"}).
			AddRow(accountID, startedAt, endsAt))

	grant, err := store.FindByAccount(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, accountID, grant.AccountID)
	assert.Equal(t, startedAt, grant.StartedAt)
	assert.Equal(t, endsAt, grant.EndsAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGrantStore_FindByAccount_NotFound(t *testing.T) {
	store, mock := newMockGrantStore(t)

	accountID := uuid.New()
	mock.ExpectQuery("SELECT account_id, started_at, ends_at").
		WithArgs(accountID).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.FindByAccount(context.Background(), accountID)
	require.Error(t, err)
	assert.True(t, sserr.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
