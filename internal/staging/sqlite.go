package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "staging: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "staging: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS staging_units (
	id             TEXT PRIMARY KEY,
	seq            INTEGER,
	data_type      TEXT NOT NULL,
	payload        TEXT NOT NULL,
	endpoint       TEXT NOT NULL,
	source_details TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	error          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_staging_units_status ON staging_units(status);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return eris.Wrap(err, "staging: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAll(ctx context.Context, units []Unit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "staging: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO staging_units (id, seq, data_type, payload, endpoint, source_details, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "staging: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, u := range units {
		if _, err := stmt.ExecContext(ctx,
			u.ID, i, u.DataType, string(u.Payload), u.Endpoint, string(u.SourceDetails),
			string(u.Status), u.Error, u.CreatedAt, u.UpdatedAt,
		); err != nil {
			return eris.Wrapf(err, "staging: upsert unit %s", u.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "staging: commit")
}

func (s *SQLiteStore) List(ctx context.Context) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data_type, payload, endpoint, source_details, status, error, created_at, updated_at
		FROM staging_units ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "staging: list units")
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *u)
	}
	return units, eris.Wrap(rows.Err(), "staging: list iterate")
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data_type, payload, endpoint, source_details, status, error, created_at, updated_at
		FROM staging_units WHERE id = ?`, id)
	return scanUnit(row)
}

func (s *SQLiteStore) UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_units SET payload = ?, updated_at = ? WHERE id = ?`,
		string(payload), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "staging: update payload %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) MarkSubmitted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_units SET status = ?, error = '', updated_at = ? WHERE id = ?`,
		string(StatusSubmitted), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "staging: mark submitted %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) MarkError(ctx context.Context, id, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE staging_units SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(StatusError), msg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "staging: mark error %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "staging: rows affected")
	}
	if n == 0 {
		return eris.Errorf("staging: unit not found: %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUnit(row scannable) (*Unit, error) {
	var u Unit
	var payload, details, status string

	err := row.Scan(&u.ID, &u.DataType, &payload, &u.Endpoint, &details, &status, &u.Error, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("staging: unit not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "staging: scan unit")
	}

	u.Payload = json.RawMessage(payload)
	u.SourceDetails = json.RawMessage(details)
	u.Status = Status(status)
	return &u, nil
}
