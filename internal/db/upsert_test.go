package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitUpsert() UpsertConfig {
	return UpsertConfig{
		Table:        "intake.staging_units",
		Columns:      []string{"id", "seq", "payload", "status"},
		ConflictKeys: []string{"id"},
	}
}

func TestBulkUpsertEmptyBatchIsNoop(t *testing.T) {
	n, err := BulkUpsert(nil, nil, unitUpsert(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsertValidatesConfig(t *testing.T) {
	rows := [][]any{{"u-1", 0, "{}", "pending"}}

	cfg := unitUpsert()
	cfg.Columns = nil
	_, err := BulkUpsert(nil, nil, cfg, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	cfg = unitUpsert()
	cfg.ConflictKeys = nil
	_, err = BulkUpsert(nil, nil, cfg, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestMergeSQLDefaultsUpdateColumns(t *testing.T) {
	got := mergeSQL(unitUpsert(), "_upsert_intake_staging_units")
	assert.Equal(t,
		`INSERT INTO "intake"."staging_units" ("id", "seq", "payload", "status") `+
			`SELECT "id", "seq", "payload", "status" FROM "_upsert_intake_staging_units" `+
			`ON CONFLICT ("id") DO UPDATE SET "seq" = EXCLUDED."seq", "payload" = EXCLUDED."payload", "status" = EXCLUDED."status"`,
		got)
}

func TestMergeSQLExplicitUpdateColumns(t *testing.T) {
	cfg := unitUpsert()
	cfg.UpdateCols = []string{"payload"}
	got := mergeSQL(cfg, "_upsert_intake_staging_units")
	assert.Contains(t, got, `DO UPDATE SET "payload" = EXCLUDED."payload"`)
	assert.NotContains(t, got, `"seq" = EXCLUDED`)
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"staging_units"`, sanitizeTable("staging_units"))
	assert.Equal(t, `"intake"."staging_units"`, sanitizeTable("intake.staging_units"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "data_type", "payload"`, quoteAndJoin([]string{"id", "data_type", "payload"}))
}
