package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a pgx connection pool, for deployments
// where multiple workers share one cache.
type PostgresStore struct {
	pool     Pool
	ttls     tierTTLs
	counters counters
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `mapstructure:"max_conns"`
	MinConns int32 `mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool and runs the
// schema migration.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts ...StoreOption) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: postgres ping")
	}

	s := &PostgresStore{pool: pool, ttls: applyStoreOptions(opts).ttls}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool without migrating, for tests.
func NewPostgresWithPool(pool Pool, opts ...StoreOption) *PostgresStore {
	return &PostgresStore{pool: pool, ttls: applyStoreOptions(opts).ttls}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS edgar_cache (
	id            TEXT PRIMARY KEY,
	key           TEXT NOT NULL UNIQUE,
	ticker        TEXT,
	company_name  TEXT,
	tier          TEXT NOT NULL,
	data          BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL,
	access_count  BIGINT NOT NULL DEFAULT 0,
	last_accessed TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS cache_stats (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	hits      BIGINT NOT NULL DEFAULT 0,
	misses    BIGINT NOT NULL DEFAULT 0,
	sets      BIGINT NOT NULL DEFAULT 0,
	deletes   BIGINT NOT NULL DEFAULT 0,
	evictions BIGINT NOT NULL DEFAULT 0
);

INSERT INTO cache_stats (id) VALUES (1) ON CONFLICT (id) DO NOTHING;

CREATE INDEX IF NOT EXISTS idx_edgar_cache_ticker ON edgar_cache(ticker);
CREATE INDEX IF NOT EXISTS idx_edgar_cache_tier ON edgar_cache(tier);
CREATE INDEX IF NOT EXISTS idx_edgar_cache_expires_at ON edgar_cache(expires_at);
`

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "cache: postgres migrate")
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, tier Tier, opts ...SetOption) error {
	o := applySetOptions(s.ttls, tier, opts)
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO edgar_cache (id, key, ticker, company_name, tier, data, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (key) DO UPDATE SET
		   ticker = excluded.ticker,
		   company_name = excluded.company_name,
		   tier = excluded.tier,
		   data = excluded.data,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		uuid.New().String(), key, nullable(o.ticker), nullable(o.companyName),
		string(tier), value, now, now.Add(o.ttl),
	)
	if err != nil {
		return eris.Wrapf(err, "cache: postgres set %s", key)
	}
	s.counters.set()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM edgar_cache WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		s.counters.miss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: postgres get %s", key)
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE edgar_cache SET access_count = access_count + 1, last_accessed = now() WHERE key = $1`,
		key,
	); err != nil {
		return nil, false, eris.Wrapf(err, "cache: postgres touch %s", key)
	}
	s.counters.hit()
	return data, true, nil
}

func (s *PostgresStore) GetStale(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM edgar_cache WHERE key = $1`, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: postgres get stale %s", key)
	}
	return data, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM edgar_cache WHERE key = $1`, key)
	if err != nil {
		return false, eris.Wrapf(err, "cache: postgres delete %s", key)
	}
	if tag.RowsAffected() > 0 {
		s.counters.delete()
		return true, nil
	}
	return false, nil
}

func (s *PostgresStore) Sweep(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM edgar_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "cache: postgres sweep")
	}
	n := int(tag.RowsAffected())
	s.counters.evict(n)
	return n, nil
}

func (s *PostgresStore) GetByTicker(ctx context.Context, ticker string) ([]byte, bool, error) {
	var key string
	err := s.pool.QueryRow(ctx,
		`SELECT key FROM edgar_cache
		 WHERE ticker = $1 AND expires_at > now()
		 ORDER BY created_at DESC LIMIT 1`,
		ticker,
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		s.counters.miss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: postgres get by ticker %s", ticker)
	}
	return s.Get(ctx, key)
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	merged := s.counters.snapshot(false)

	var persisted Stats
	err := s.pool.QueryRow(ctx,
		`SELECT hits, misses, sets, deletes, evictions FROM cache_stats WHERE id = 1`,
	).Scan(&persisted.Hits, &persisted.Misses, &persisted.Sets,
		&persisted.Deletes, &persisted.Evictions)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Stats{}, eris.Wrap(err, "cache: postgres read stats")
	}
	merged.Hits += persisted.Hits
	merged.Misses += persisted.Misses
	merged.Sets += persisted.Sets
	merged.Deletes += persisted.Deletes
	merged.Evictions += persisted.Evictions

	merged.EntriesByTier = map[Tier]int64{}
	rows, err := s.pool.Query(ctx, `SELECT tier, COUNT(*) FROM edgar_cache GROUP BY tier`)
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: postgres count entries")
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var n int64
		if err := rows.Scan(&tier, &n); err != nil {
			return Stats{}, eris.Wrap(err, "cache: postgres scan tier count")
		}
		merged.EntriesByTier[Tier(tier)] = n
		merged.Entries += n
	}
	return merged, eris.Wrap(rows.Err(), "cache: postgres iterate tier counts")
}

func (s *PostgresStore) FlushStats(ctx context.Context) error {
	pending := s.counters.snapshot(true)
	_, err := s.pool.Exec(ctx,
		`UPDATE cache_stats SET
		   hits = hits + $1, misses = misses + $2, sets = sets + $3,
		   deletes = deletes + $4, evictions = evictions + $5
		 WHERE id = 1`,
		pending.Hits, pending.Misses, pending.Sets, pending.Deletes, pending.Evictions,
	)
	return eris.Wrap(err, "cache: postgres flush stats")
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM edgar_cache`); err != nil {
		return eris.Wrap(err, "cache: postgres clear")
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE cache_stats SET hits = 0, misses = 0, sets = 0, deletes = 0, evictions = 0 WHERE id = 1`,
	)
	if err != nil {
		return eris.Wrap(err, "cache: postgres reset stats")
	}
	s.counters.snapshot(true)
	return nil
}

func (s *PostgresStore) Close() error {
	err := s.FlushStats(context.Background())
	s.pool.Close()
	return err
}
