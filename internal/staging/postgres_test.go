package staging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, data_type, payload, endpoint, source_details, status, error, created_at, updated_at`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, data_type, payload, endpoint, source_details, status, error, created_at, updated_at`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "data_type", "payload", "endpoint", "source_details", "status", "error", "created_at", "updated_at",
		}).
			AddRow("u1", DataTypeAsset, `{"assetName":"Example Fund LP"}`, TagUploadAsset, `{}`, "pending", "", now, now).
			AddRow("u2", DataTypeShareClass, `[{"shareClassName":"Class A"}]`, TagShareClass, `{}`, "pending", "", now, now))

	units, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "u1", units[0].ID)
	assert.Equal(t, StatusPending, units[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdatePayload(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE staging_units SET payload = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(`{"assetName":"Edited"}`, pgxmock.AnyArg(), "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdatePayload(context.Background(), "u1", json.RawMessage(`{"assetName":"Edited"}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSubmitted_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE staging_units SET status = \$1, error = '', updated_at = \$2 WHERE id = \$3`).
		WithArgs(string(StatusSubmitted), pgxmock.AnyArg(), "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkSubmitted(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE staging_units SET status = \$1, error = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs(string(StatusError), "class name mismatch", pgxmock.AnyArg(), "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkError(context.Background(), "u1", "class name mismatch")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
