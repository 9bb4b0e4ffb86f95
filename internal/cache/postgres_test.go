package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_Set(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO edgar_cache").
		WithArgs(pgxmock.AnyArg(), "k", "AAPL", nil, string(TierEntityMetadata),
			[]byte("v"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.Set(context.Background(), "k", []byte("v"), TierEntityMetadata, WithTicker("AAPL"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetHitBumpsAccess(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT data FROM edgar_cache WHERE key").
		WithArgs("k").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte("v")))
	mock.ExpectExec("UPDATE edgar_cache SET access_count").
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	data, ok, err := st.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMiss(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT data FROM edgar_cache WHERE key").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	_, ok, err := st.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("DELETE FROM edgar_cache WHERE key").
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	deleted, err := st.Delete(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Sweep(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("DELETE FROM edgar_cache WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := st.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetByTickerDelegatesToGet(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT key FROM edgar_cache").
		WithArgs("AAPL").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).AddRow("profile:aapl"))
	mock.ExpectQuery("SELECT data FROM edgar_cache WHERE key").
		WithArgs("profile:aapl").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte("profile")))
	mock.ExpectExec("UPDATE edgar_cache SET access_count").
		WithArgs("profile:aapl").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	data, ok, err := st.GetByTicker(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "profile", string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_StatsMergesPersistedAndPending(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	// One pending miss in memory before the stats read.
	mock.ExpectQuery("SELECT data FROM edgar_cache WHERE key").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))
	mock.ExpectQuery("SELECT hits, misses, sets, deletes, evictions FROM cache_stats").
		WillReturnRows(pgxmock.NewRows([]string{"hits", "misses", "sets", "deletes", "evictions"}).
			AddRow(int64(10), int64(4), int64(12), int64(1), int64(3)))
	mock.ExpectQuery("SELECT tier, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"tier", "count"}).
			AddRow(string(TierFinancials), int64(5)).
			AddRow(string(TierFilingsList), int64(2)))

	_, _, err := st.Get(context.Background(), "missing")
	require.NoError(t, err)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Hits)
	assert.Equal(t, int64(5), stats.Misses)
	assert.Equal(t, int64(12), stats.Sets)
	assert.Equal(t, int64(7), stats.Entries)
	assert.Equal(t, int64(5), stats.EntriesByTier[TierFinancials])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FlushStats(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO edgar_cache").
		WithArgs(pgxmock.AnyArg(), "k", nil, nil, string(TierFinancials),
			[]byte("v"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE cache_stats SET").
		WithArgs(int64(0), int64(0), int64(1), int64(0), int64(0)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.Set(context.Background(), "k", []byte("v"), TierFinancials, WithTTL(time.Hour)))
	require.NoError(t, st.FlushStats(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Clear(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec("DELETE FROM edgar_cache").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("UPDATE cache_stats SET hits = 0").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
