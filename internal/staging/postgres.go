package staging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fund-intake-cli/internal/db"
)

// PostgresStore implements Store using pgxpool, for deployments where the
// staging buffer is shared between the extraction host and the review server.
type PostgresStore struct {
	pool db.Pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS staging_units (
	id             TEXT PRIMARY KEY,
	seq            INTEGER,
	data_type      TEXT NOT NULL,
	payload        JSONB NOT NULL,
	endpoint       TEXT NOT NULL,
	source_details JSONB NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	error          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_staging_units_status ON staging_units(status);
`

// NewPostgres creates a PostgresStore with a connection pool and runs the
// migration.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "staging: parse postgres config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "staging: connect postgres")
	}

	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "staging: migrate postgres")
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var unitColumns = []string{
	"id", "seq", "data_type", "payload", "endpoint",
	"source_details", "status", "error", "created_at", "updated_at",
}

func (s *PostgresStore) SaveAll(ctx context.Context, units []Unit) error {
	rows := make([][]any, len(units))
	for i, u := range units {
		rows[i] = []any{
			u.ID, i, u.DataType, string(u.Payload), u.Endpoint,
			string(u.SourceDetails), string(u.Status), u.Error, u.CreatedAt, u.UpdatedAt,
		}
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "staging_units",
		Columns:      unitColumns,
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"payload", "status", "error", "updated_at"},
	}, rows)
	return eris.Wrap(err, "staging: save units")
}

func (s *PostgresStore) List(ctx context.Context) ([]Unit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, data_type, payload, endpoint, source_details, status, error, created_at, updated_at
		FROM staging_units ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "staging: list units")
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		u, err := scanPgUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *u)
	}
	return units, eris.Wrap(rows.Err(), "staging: list iterate")
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Unit, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, data_type, payload, endpoint, source_details, status, error, created_at, updated_at
		FROM staging_units WHERE id = $1`, id)
	return scanPgUnit(row)
}

func (s *PostgresStore) UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_units SET payload = $1, updated_at = $2 WHERE id = $3`,
		string(payload), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "staging: update payload %s", id)
	}
	return checkPgRowsAffected(tag.RowsAffected(), id)
}

func (s *PostgresStore) MarkSubmitted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_units SET status = $1, error = '', updated_at = $2 WHERE id = $3`,
		string(StatusSubmitted), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "staging: mark submitted %s", id)
	}
	return checkPgRowsAffected(tag.RowsAffected(), id)
}

func (s *PostgresStore) MarkError(ctx context.Context, id, msg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE staging_units SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(StatusError), msg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "staging: mark error %s", id)
	}
	return checkPgRowsAffected(tag.RowsAffected(), id)
}

func checkPgRowsAffected(n int64, id string) error {
	if n == 0 {
		return eris.Errorf("staging: unit not found: %s", id)
	}
	return nil
}

func scanPgUnit(row scannable) (*Unit, error) {
	var u Unit
	var payload, details, status string

	err := row.Scan(&u.ID, &u.DataType, &payload, &u.Endpoint, &details, &status, &u.Error, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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
