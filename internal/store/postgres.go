package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zonasi/internal/db"
	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/resilience"
)

// PostgresStore implements FacilityStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
	// ConnectAttempts bounds the startup ping retries; <= 0 uses the
	// resilience default.
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_rank_log": `INSERT INTO rank_logs (id, query_lat, query_lon, model, radius_km, top_k, in_range, skipped, result_ids, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"list_rank_logs":  `SELECT id, query_lat, query_lon, model, radius_km, top_k, in_range, skipped, result_ids, created_at FROM rank_logs ORDER BY created_at DESC LIMIT $1`,
}

// facilityColumns is the COPY column order used by facilityRows.
var facilityColumns = []string{
	"id", "seq", "npsn", "name", "level", "accreditation", "quality_score",
	"lat", "lon", "position", "regency", "district", "status", "updated_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres: ping")
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
		if poolCfg.ConnectAttempts > 0 {
			retry.MaxAttempts = poolCfg.ConnectAttempts
		}
		if poolCfg.ConnectBackoff > 0 {
			retry.InitialBackoff = poolCfg.ConnectBackoff
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	// The server may still be starting when the CLI runs next to it.
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// lat/lon keep NaN for defective rows; position holds EWKB (SRID 4326) for
// valid ones and is NULL otherwise.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	id            TEXT PRIMARY KEY,
	seq           BIGINT NOT NULL,
	npsn          TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	level         TEXT NOT NULL DEFAULT '',
	accreditation TEXT NOT NULL DEFAULT '',
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 'NaN',
	lat           DOUBLE PRECISION NOT NULL DEFAULT 'NaN',
	lon           DOUBLE PRECISION NOT NULL DEFAULT 'NaN',
	position      BYTEA,
	regency       TEXT NOT NULL DEFAULT '',
	district      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rank_logs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query_lat  DOUBLE PRECISION NOT NULL,
	query_lon  DOUBLE PRECISION NOT NULL,
	model      TEXT NOT NULL,
	radius_km  DOUBLE PRECISION NOT NULL,
	top_k      INTEGER NOT NULL,
	in_range   INTEGER NOT NULL,
	skipped    INTEGER NOT NULL,
	result_ids TEXT[] NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_facilities_seq ON facilities(seq);
CREATE INDEX IF NOT EXISTS idx_facilities_regency ON facilities(regency);
CREATE INDEX IF NOT EXISTS idx_rank_logs_created_at ON rank_logs(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ReplaceFacilities swaps the whole facility table in one transaction using COPY.
func (s *PostgresStore) ReplaceFacilities(ctx context.Context, facilities []facility.Facility) (int64, error) {
	if err := checkUniqueIDs(facilities); err != nil {
		return 0, err
	}
	rows, err := facilityRows(facilities, 0)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM facilities`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear facilities")
	}
	n, err := db.CopyFrom(ctx, tx, "facilities", facilityColumns, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit facilities")
	}
	return n, nil
}

// UpsertFacilities merges facilities by id. New rows are appended after the
// existing table; updated rows keep their position.
func (s *PostgresStore) UpsertFacilities(ctx context.Context, facilities []facility.Facility) (int64, error) {
	if err := checkUniqueIDs(facilities); err != nil {
		return 0, err
	}

	var next int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM facilities`).Scan(&next); err != nil {
		return 0, eris.Wrap(err, "postgres: next seq")
	}
	rows, err := facilityRows(facilities, next)
	if err != nil {
		return 0, err
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "facilities",
		Columns:      facilityColumns,
		ConflictKeys: []string{"id"},
		UpdateCols:   withoutKeysSeq(facilityColumns),
	}, rows)
}

func withoutKeysSeq(cols []string) []string {
	var out []string
	for _, c := range cols {
		if c != "id" && c != "seq" {
			out = append(out, c)
		}
	}
	return out
}

func facilityRows(facilities []facility.Facility, seqBase int64) ([][]any, error) {
	now := time.Now().UTC()
	rows := make([][]any, len(facilities))
	for i, f := range facilities {
		pos, err := encodePosition(f.Position)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: facility %s", f.ID)
		}
		rows[i] = []any{
			f.ID, seqBase + int64(i), f.NPSN, f.Name, f.Level, f.Accreditation, f.QualityScore,
			f.Position.Lat, f.Position.Lon, pos, f.Regency, f.District, f.Status, now,
		}
	}
	return rows, nil
}

// ListFacilities returns facilities in table order.
func (s *PostgresStore) ListFacilities(ctx context.Context, filter facility.Filter) ([]facility.Facility, error) {
	where, args := filterWhere(filter, postgresFilter)
	rows, err := s.pool.Query(ctx,
		`SELECT id, npsn, name, level, accreditation, quality_score, lat, lon, position, regency, district, status
		 FROM facilities`+where+` ORDER BY seq, id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facilities")
	}
	defer rows.Close()

	out := []facility.Facility{}
	for rows.Next() {
		var (
			f   facility.Facility
			pos []byte
		)
		if err := rows.Scan(&f.ID, &f.NPSN, &f.Name, &f.Level, &f.Accreditation, &f.QualityScore,
			&f.Position.Lat, &f.Position.Lon, &pos, &f.Regency, &f.District, &f.Status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan facility")
		}
		if len(pos) > 0 {
			p, err := decodePosition(pos)
			if err != nil {
				return nil, eris.Wrapf(err, "postgres: facility %s", f.ID)
			}
			f.Position = p
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list facilities iterate")
}

func (s *PostgresStore) LogRank(ctx context.Context, entry *RankLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rank_logs (id, query_lat, query_lon, model, radius_km, top_k, in_range, skipped, result_ids, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.Query.Lat, entry.Query.Lon, entry.Model, entry.RadiusKM,
		entry.TopK, entry.InRange, entry.Skipped, entry.ResultIDs, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert rank log %s", entry.ID)
}

// ListRankLogs returns the most recent entries first.
func (s *PostgresStore) ListRankLogs(ctx context.Context, limit int) ([]RankLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, query_lat, query_lon, model, radius_km, top_k, in_range, skipped, result_ids, created_at FROM rank_logs ORDER BY created_at DESC LIMIT $1`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rank logs")
	}
	defer rows.Close()

	var logs []RankLog
	for rows.Next() {
		var l RankLog
		if err := rows.Scan(&l.ID, &l.Query.Lat, &l.Query.Lon, &l.Model, &l.RadiusKM,
			&l.TopK, &l.InRange, &l.Skipped, &l.ResultIDs, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rank log")
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: list rank logs iterate")
}
