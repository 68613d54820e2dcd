package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"

	"github.com/sells-group/zonasi/internal/facility"
	"github.com/sells-group/zonasi/internal/geo"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("fold_key", 1, foldKeyFunc)
}

// foldKeyFunc exposes facility.FoldKey to SQL as fold_key(text).
func foldKeyFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return facility.FoldKey(v), nil
	case []byte:
		return facility.FoldKey(string(v)), nil
	default:
		return nil, eris.Errorf("sqlite: fold_key: unsupported argument %T", v)
	}
}

// SQLiteStore implements FacilityStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS facilities (
	id            TEXT PRIMARY KEY,
	seq           INTEGER NOT NULL,
	npsn          TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	level         TEXT NOT NULL DEFAULT '',
	accreditation TEXT NOT NULL DEFAULT '',
	quality_score REAL,
	lat           REAL,
	lon           REAL,
	regency       TEXT NOT NULL DEFAULT '',
	district      TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rank_logs (
	id         TEXT PRIMARY KEY,
	query_lat  REAL NOT NULL,
	query_lon  REAL NOT NULL,
	model      TEXT NOT NULL,
	radius_km  REAL NOT NULL,
	top_k      INTEGER NOT NULL,
	in_range   INTEGER NOT NULL,
	skipped    INTEGER NOT NULL,
	result_ids TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_facilities_seq ON facilities(seq);
CREATE INDEX IF NOT EXISTS idx_facilities_regency ON facilities(regency);
CREATE INDEX IF NOT EXISTS idx_rank_logs_created_at ON rank_logs(created_at);
`

const sqliteFacilityColumns = `id, seq, npsn, name, level, accreditation, quality_score, lat, lon, regency, district, status`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceFacilities swaps the whole facility table in one transaction.
func (s *SQLiteStore) ReplaceFacilities(ctx context.Context, facilities []facility.Facility) (int64, error) {
	if err := checkUniqueIDs(facilities); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM facilities`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear facilities")
	}
	n, err := insertFacilities(ctx, tx, `INSERT INTO facilities (`+sqliteFacilityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, facilities, 0)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit facilities")
	}
	return n, nil
}

// UpsertFacilities inserts new facilities after the existing ones and
// updates rows whose id already exists, keeping their position in the table.
func (s *SQLiteStore) UpsertFacilities(ctx context.Context, facilities []facility.Facility) (int64, error) {
	if err := checkUniqueIDs(facilities); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM facilities`).Scan(&next); err != nil {
		return 0, eris.Wrap(err, "sqlite: next seq")
	}

	n, err := insertFacilities(ctx, tx, `INSERT INTO facilities (`+sqliteFacilityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			npsn = excluded.npsn, name = excluded.name, level = excluded.level,
			accreditation = excluded.accreditation, quality_score = excluded.quality_score,
			lat = excluded.lat, lon = excluded.lon, regency = excluded.regency,
			district = excluded.district, status = excluded.status,
			updated_at = datetime('now')`, facilities, next)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit facilities")
	}
	return n, nil
}

func insertFacilities(ctx context.Context, tx *sql.Tx, query string, facilities []facility.Facility, seqBase int64) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert facility")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i, f := range facilities {
		_, err := stmt.ExecContext(ctx,
			f.ID, seqBase+int64(i), f.NPSN, f.Name, f.Level, f.Accreditation,
			nullable(f.QualityScore), nullable(f.Position.Lat), nullable(f.Position.Lon),
			f.Regency, f.District, f.Status,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert facility %s", f.ID)
		}
		n++
	}
	return n, nil
}

// ListFacilities returns facilities in table order.
func (s *SQLiteStore) ListFacilities(ctx context.Context, filter facility.Filter) ([]facility.Facility, error) {
	where, args := filterWhere(filter, sqliteFilter)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, npsn, name, level, accreditation, quality_score, lat, lon, regency, district, status
		 FROM facilities`+where+` ORDER BY seq, id`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facilities")
	}
	defer rows.Close() //nolint:errcheck

	out := []facility.Facility{}
	for rows.Next() {
		var (
			f                 facility.Facility
			quality, lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&f.ID, &f.NPSN, &f.Name, &f.Level, &f.Accreditation,
			&quality, &lat, &lon, &f.Regency, &f.District, &f.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan facility")
		}
		f.QualityScore = orNaN(quality)
		f.Position = geo.Point{Lat: orNaN(lat), Lon: orNaN(lon)}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list facilities iterate")
}

func (s *SQLiteStore) LogRank(ctx context.Context, entry *RankLog) error {
	ids, err := json.Marshal(entry.ResultIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rank_logs (id, query_lat, query_lon, model, radius_km, top_k, in_range, skipped, result_ids, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Query.Lat, entry.Query.Lon, entry.Model, entry.RadiusKM,
		entry.TopK, entry.InRange, entry.Skipped, string(ids), entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert rank log %s", entry.ID)
}

// ListRankLogs returns the most recent entries first.
func (s *SQLiteStore) ListRankLogs(ctx context.Context, limit int) ([]RankLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query_lat, query_lon, model, radius_km, top_k, in_range, skipped, result_ids, created_at
		 FROM rank_logs ORDER BY created_at DESC LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rank logs")
	}
	defer rows.Close() //nolint:errcheck

	var logs []RankLog
	for rows.Next() {
		var (
			l   RankLog
			ids string
		)
		if err := rows.Scan(&l.ID, &l.Query.Lat, &l.Query.Lon, &l.Model, &l.RadiusKM,
			&l.TopK, &l.InRange, &l.Skipped, &ids, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rank log")
		}
		if err := json.Unmarshal([]byte(ids), &l.ResultIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result ids")
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: list rank logs iterate")
}

// nullable maps NaN and infinities to NULL; SQLite has no NaN.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
