package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"github.com/cognicore/kinship/pkg/kinship/internalerr"
	"github.com/cognicore/kinship/pkg/kinship/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "open %s", path), internalerr.ErrStoreUnavailable)
	}

	// One writer; pragmas then hold for every statement.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrapf(err, "open %s", path), internalerr.ErrStoreUnavailable)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	function TEXT,
	args TEXT,
	query TEXT,
	raw TEXT,
	normalized TEXT,
	answer TEXT,
	error TEXT,
	asked_at TEXT NOT NULL,
	latency_ns INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS facts (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	added_at TEXT NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return errors.Wrap(err, "init schema")
}

// RecordQuery inserts a query record
func (s *sqliteStore) RecordQuery(ctx context.Context, r store.QueryRecord) error {
	if r.ID == "" {
		return internalerr.Invalid("query record without id")
	}
	args, err := json.Marshal(r.Args)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(r.Raw)
	if err != nil {
		return err
	}
	normalized := string(r.Normalized)
	if normalized == "" {
		normalized = "null"
	}

	const stmt = `
INSERT INTO queries (id, question, function, args, query, raw, normalized, answer, error, asked_at, latency_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err = s.db.ExecContext(ctx, stmt,
		r.ID,
		r.Question,
		r.Function,
		string(args),
		r.Query,
		string(raw),
		normalized,
		r.Answer,
		r.Error,
		r.AskedAt.UTC().Format(time.RFC3339Nano),
		int64(r.Latency),
	)
	if err != nil {
		return errors.Wrapf(err, "record query %s", r.ID)
	}
	return nil
}

const queryColumns = `id, question, function, args, query, raw, normalized, answer, error, asked_at, latency_ns`

// GetQuery loads one query record
func (s *sqliteStore) GetQuery(ctx context.Context, id string) (store.QueryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = ?`, id)
	r, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.QueryRecord{}, errors.Wrapf(internalerr.ErrNotFound, "query %s", id)
	}
	return r, err
}

// RecentQueries returns the newest query records first
func (s *sqliteStore) RecentQueries(ctx context.Context, limit int) ([]store.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queryColumns+` FROM queries ORDER BY id DESC LIMIT ?`, store.Limit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "recent queries")
	}
	defer rows.Close()

	var out []store.QueryRecord
	for rows.Next() {
		r, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuery(sc scanner) (store.QueryRecord, error) {
	var (
		r                              store.QueryRecord
		function, query, answer, errS  sql.NullString
		args, raw, normalized, askedAt sql.NullString
		latency                        int64
	)
	if err := sc.Scan(&r.ID, &r.Question, &function, &args, &query, &raw, &normalized, &answer, &errS, &askedAt, &latency); err != nil {
		return r, err
	}
	r.Function = function.String
	r.Query = query.String
	r.Answer = answer.String
	r.Error = errS.String
	r.Latency = time.Duration(latency)

	if args.Valid && args.String != "" {
		if err := json.Unmarshal([]byte(args.String), &r.Args); err != nil {
			return r, errors.Wrapf(err, "decode args of %s", r.ID)
		}
	}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &r.Raw); err != nil {
			return r, errors.Wrapf(err, "decode raw result of %s", r.ID)
		}
	}
	if normalized.Valid && normalized.String != "" && normalized.String != "null" {
		r.Normalized = json.RawMessage(normalized.String)
	}
	if askedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, askedAt.String)
		if err != nil {
			return r, errors.Wrapf(err, "decode asked_at of %s", r.ID)
		}
		r.AskedAt = t
	}
	return r, nil
}

// RecordFact inserts a fact record
func (s *sqliteStore) RecordFact(ctx context.Context, r store.FactRecord) error {
	if r.ID == "" {
		return internalerr.Invalid("fact record without id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (id, text, added_at) VALUES (?, ?, ?)`,
		r.ID, r.Text, r.AddedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrapf(err, "record fact %s", r.ID)
	}
	return nil
}

// RecentFacts returns the newest fact records first
func (s *sqliteStore) RecentFacts(ctx context.Context, limit int) ([]store.FactRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, added_at FROM facts ORDER BY id DESC LIMIT ?`, store.Limit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "recent facts")
	}
	defer rows.Close()

	var out []store.FactRecord
	for rows.Next() {
		var (
			r       store.FactRecord
			addedAt string
		)
		if err := rows.Scan(&r.ID, &r.Text, &addedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, addedAt)
		if err != nil {
			return nil, errors.Wrapf(err, "decode added_at of %s", r.ID)
		}
		r.AddedAt = t
		out = append(out, r)
	}
	return out, rows.Err()
}
