package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fund-intake-cli/internal/resilience"
	"github.com/sells-group/fund-intake-cli/internal/staging"
	"github.com/sells-group/fund-intake-cli/internal/submit"
	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

// stubAPI answers the submission calls the router can trigger.
type stubAPI struct {
	assetapi.Client
}

func (stubAPI) UploadAsset(_ context.Context, _ map[string]any) (int, error) {
	return 42, nil
}

func testRouter(t *testing.T) (chi.Router, staging.Store, string) {
	t.Helper()
	store, err := staging.NewSQLite(filepath.Join(t.TempDir(), "staging.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	buf := staging.NewBuffer()
	unit, err := buf.Stage(staging.DataTypeAsset,
		map[string]any{"assetId": 0, "assetName": "Example Fund LP"},
		staging.TagUploadAsset, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveAll(context.Background(), buf.Units()))

	return buildRouter(store, submit.New(stubAPI{}, store, resilience.RetryConfig{MaxAttempts: 1})), store, unit.ID
}

func TestServeHealth(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeListAndGetUnits(t *testing.T) {
	r, _, unitID := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/units", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var units []staging.Unit
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &units))
	require.Len(t, units, 1)
	assert.Equal(t, unitID, units[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/units/"+unitID, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var unit staging.Unit
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &unit))
	assert.Equal(t, staging.DataTypeAsset, unit.DataType)
	assert.Equal(t, staging.StatusPending, unit.Status)
}

func TestServeGetUnknownUnit(t *testing.T) {
	r, _, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/units/nope", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeUpdatePayload(t *testing.T) {
	r, st, unitID := testRouter(t)

	edited := `{"assetId": 0, "assetName": "Example Fund LP (amended)"}`
	req := httptest.NewRequest(http.MethodPut, "/units/"+unitID+"/payload", bytes.NewBufferString(edited))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	stored, err := st.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.JSONEq(t, edited, string(stored.Payload))
}

func TestServeUpdatePayloadRejectsInvalidJSON(t *testing.T) {
	r, st, unitID := testRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/units/"+unitID+"/payload", bytes.NewBufferString("{nope"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	stored, err := st.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Payload), "nope")
}

func TestServeSubmitUnit(t *testing.T) {
	r, st, unitID := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/units/"+unitID+"/submit", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, string(staging.StatusSubmitted), resp["status"])

	stored, err := st.Get(context.Background(), unitID)
	require.NoError(t, err)
	assert.Equal(t, staging.StatusSubmitted, stored.Status)

	// Consumed exactly once: a second submit is rejected.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/units/"+unitID+"/submit", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
