package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// default backend for single-machine use.
type SQLiteStore struct {
	db       *sql.DB
	ttls     tierTTLs
	counters counters
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...StoreOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db, ttls: applyStoreOptions(opts).ttls}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS edgar_cache (
	id            TEXT PRIMARY KEY,
	key           TEXT NOT NULL UNIQUE,
	ticker        TEXT,
	company_name  TEXT,
	tier          TEXT NOT NULL,
	data          BLOB NOT NULL,
	created_at    DATETIME NOT NULL,
	expires_at    DATETIME NOT NULL,
	access_count  INTEGER NOT NULL DEFAULT 0,
	last_accessed DATETIME
);

CREATE TABLE IF NOT EXISTS cache_stats (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	hits      INTEGER NOT NULL DEFAULT 0,
	misses    INTEGER NOT NULL DEFAULT 0,
	sets      INTEGER NOT NULL DEFAULT 0,
	deletes   INTEGER NOT NULL DEFAULT 0,
	evictions INTEGER NOT NULL DEFAULT 0
);

INSERT OR IGNORE INTO cache_stats (id) VALUES (1);

CREATE INDEX IF NOT EXISTS idx_edgar_cache_ticker ON edgar_cache(ticker);
CREATE INDEX IF NOT EXISTS idx_edgar_cache_tier ON edgar_cache(tier);
CREATE INDEX IF NOT EXISTS idx_edgar_cache_expires_at ON edgar_cache(expires_at);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "cache: sqlite migrate")
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, tier Tier, opts ...SetOption) error {
	o := applySetOptions(s.ttls, tier, opts)
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO edgar_cache (id, key, ticker, company_name, tier, data, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
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
		return eris.Wrapf(err, "cache: sqlite set %s", key)
	}
	s.counters.set()
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM edgar_cache WHERE key = ? AND expires_at > ?`,
		key, now,
	)

	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		s.counters.miss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: sqlite get %s", key)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE edgar_cache SET access_count = access_count + 1, last_accessed = ? WHERE key = ?`,
		now, key,
	); err != nil {
		return nil, false, eris.Wrapf(err, "cache: sqlite touch %s", key)
	}
	s.counters.hit()
	return data, true, nil
}

func (s *SQLiteStore) GetStale(ctx context.Context, key string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM edgar_cache WHERE key = ?`, key,
	)

	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: sqlite get stale %s", key)
	}
	return data, true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edgar_cache WHERE key = ?`, key)
	if err != nil {
		return false, eris.Wrapf(err, "cache: sqlite delete %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "cache: sqlite rows affected")
	}
	if n > 0 {
		s.counters.delete()
	}
	return n > 0, nil
}

func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM edgar_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite sweep")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite rows affected")
	}
	s.counters.evict(int(n))
	return int(n), nil
}

func (s *SQLiteStore) GetByTicker(ctx context.Context, ticker string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key FROM edgar_cache
		 WHERE ticker = ? AND expires_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		ticker, time.Now().UTC(),
	)

	var key string
	err := row.Scan(&key)
	if err == sql.ErrNoRows {
		s.counters.miss()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: sqlite get by ticker %s", ticker)
	}
	return s.Get(ctx, key)
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	merged := s.counters.snapshot(false)

	row := s.db.QueryRowContext(ctx,
		`SELECT hits, misses, sets, deletes, evictions FROM cache_stats WHERE id = 1`,
	)
	var persisted Stats
	if err := row.Scan(&persisted.Hits, &persisted.Misses, &persisted.Sets,
		&persisted.Deletes, &persisted.Evictions); err != nil && err != sql.ErrNoRows {
		return Stats{}, eris.Wrap(err, "cache: sqlite read stats")
	}
	merged.Hits += persisted.Hits
	merged.Misses += persisted.Misses
	merged.Sets += persisted.Sets
	merged.Deletes += persisted.Deletes
	merged.Evictions += persisted.Evictions

	merged.EntriesByTier = map[Tier]int64{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tier, COUNT(*) FROM edgar_cache GROUP BY tier`,
	)
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: sqlite count entries")
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var n int64
		if err := rows.Scan(&tier, &n); err != nil {
			return Stats{}, eris.Wrap(err, "cache: sqlite scan tier count")
		}
		merged.EntriesByTier[Tier(tier)] = n
		merged.Entries += n
	}
	return merged, eris.Wrap(rows.Err(), "cache: sqlite iterate tier counts")
}

func (s *SQLiteStore) FlushStats(ctx context.Context) error {
	pending := s.counters.snapshot(true)
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_stats SET
		   hits = hits + ?, misses = misses + ?, sets = sets + ?,
		   deletes = deletes + ?, evictions = evictions + ?
		 WHERE id = 1`,
		pending.Hits, pending.Misses, pending.Sets, pending.Deletes, pending.Evictions,
	)
	return eris.Wrap(err, "cache: sqlite flush stats")
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM edgar_cache`); err != nil {
		return eris.Wrap(err, "cache: sqlite clear")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_stats SET hits = 0, misses = 0, sets = 0, deletes = 0, evictions = 0 WHERE id = 1`,
	)
	if err != nil {
		return eris.Wrap(err, "cache: sqlite reset stats")
	}
	s.counters.snapshot(true)
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.FlushStats(context.Background()); err != nil {
		return err
	}
	return s.db.Close()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
