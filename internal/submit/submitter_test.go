package submit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fund-intake-cli/internal/resilience"
	"github.com/sells-group/fund-intake-cli/internal/staging"
	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

// fakeClient records submission calls and answers from canned data.
type fakeClient struct {
	assetapi.Client

	assetID      int
	uploadErr    error
	shareClasses []assetapi.ShareClassInfo

	uploadedAssets  []map[string]any
	insertedClasses []map[string]any
	insertedTerms   []map[string]any
	insertedProv    [][3]int
	genericPosts    []map[string]any

	shareClassErrFor string
}

func (c *fakeClient) UploadAsset(_ context.Context, payload map[string]any) (int, error) {
	if c.uploadErr != nil {
		return 0, c.uploadErr
	}
	c.uploadedAssets = append(c.uploadedAssets, payload)
	return c.assetID, nil
}

func (c *fakeClient) InsertShareClass(_ context.Context, payload map[string]any) error {
	if name, _ := payload["shareClassName"].(string); name == c.shareClassErrFor {
		return eris.New("insert rejected")
	}
	c.insertedClasses = append(c.insertedClasses, payload)
	return nil
}

func (c *fakeClient) GetShareClassList(_ context.Context, _ int) ([]assetapi.ShareClassInfo, error) {
	return c.shareClasses, nil
}

func (c *fakeClient) InsertLiquidityTerms(_ context.Context, payload map[string]any) error {
	c.insertedTerms = append(c.insertedTerms, payload)
	return nil
}

func (c *fakeClient) InsertServiceProvider(_ context.Context, companyID, companyTypeID, assetID int) error {
	c.insertedProv = append(c.insertedProv, [3]int{companyID, companyTypeID, assetID})
	return nil
}

func (c *fakeClient) Post(_ context.Context, _ string, payload any) error {
	if m, ok := payload.(map[string]any); ok {
		c.genericPosts = append(c.genericPosts, m)
	}
	return nil
}

// memStore is an in-memory staging.Store for submitter tests.
type memStore struct {
	units []staging.Unit
}

func (m *memStore) SaveAll(_ context.Context, units []staging.Unit) error {
	m.units = append([]staging.Unit(nil), units...)
	return nil
}

func (m *memStore) List(_ context.Context) ([]staging.Unit, error) {
	return append([]staging.Unit(nil), m.units...), nil
}

func (m *memStore) Get(_ context.Context, id string) (*staging.Unit, error) {
	for i := range m.units {
		if m.units[i].ID == id {
			u := m.units[i]
			return &u, nil
		}
	}
	return nil, eris.Errorf("no unit %s", id)
}

func (m *memStore) UpdatePayload(_ context.Context, id string, payload json.RawMessage) error {
	for i := range m.units {
		if m.units[i].ID == id {
			m.units[i].Payload = payload
			m.units[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return eris.Errorf("no unit %s", id)
}

func (m *memStore) MarkSubmitted(_ context.Context, id string) error {
	return m.setStatus(id, staging.StatusSubmitted, "")
}

func (m *memStore) MarkError(_ context.Context, id, msg string) error {
	return m.setStatus(id, staging.StatusError, msg)
}

func (m *memStore) setStatus(id string, status staging.Status, msg string) error {
	for i := range m.units {
		if m.units[i].ID == id {
			m.units[i].Status = status
			m.units[i].Error = msg
			return nil
		}
	}
	return eris.Errorf("no unit %s", id)
}

func (m *memStore) Close() error { return nil }

func newTestSubmitter(client assetapi.Client, store staging.Store) *Submitter {
	return New(client, store, resilience.RetryConfig{MaxAttempts: 1})
}

func stageUnits(t *testing.T, store *memStore, stage func(buf *staging.Buffer)) {
	t.Helper()
	buf := staging.NewBuffer()
	stage(buf)
	require.NoError(t, store.SaveAll(context.Background(), buf.Units()))
}

func mustStage(t *testing.T, buf *staging.Buffer, dataType string, payload any, endpoint string) {
	t.Helper()
	_, err := buf.Stage(dataType, payload, endpoint, nil)
	require.NoError(t, err)
}

func TestSubmitAllPatchesIdentifiers(t *testing.T) {
	client := &fakeClient{
		assetID: 42,
		shareClasses: []assetapi.ShareClassInfo{
			{ShareClassID: 77, ShareClassName: "Class A"},
		},
	}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 0, "assetName": "Example Fund LP"}, staging.TagUploadAsset)
		mustStage(t, buf, staging.DataTypeShareClass,
			[]map[string]any{{"shareClassName": "Class A", "assetId": 0}}, staging.TagShareClass)
		mustStage(t, buf, staging.DataTypeLiquidityTerms,
			[]map[string]any{{"class_name": "Class A", "payload": map[string]any{"shareClassid": 0, "lockType": 3}}},
			staging.TagLiquidityTerms)
		mustStage(t, buf, staging.DataTypeReturns,
			[]map[string]any{{"entityId": 0, "rorValue": 1.2}}, assetapi.EndpointAssetValuation)
		mustStage(t, buf, staging.DataTypeServiceProviders,
			[]map[string]any{{"company_type": "Administrator", "company_id": 501, "company_type_id": 9}},
			staging.TagServiceProviders)
	})

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, res := range results {
		assert.NoError(t, res.Err, res.DataType)
		assert.Equal(t, staging.StatusSubmitted, res.Status, res.DataType)
	}

	require.Len(t, client.insertedClasses, 1)
	assert.Equal(t, 42, client.insertedClasses[0]["assetId"])

	require.Len(t, client.insertedTerms, 1)
	assert.Equal(t, 77, client.insertedTerms[0]["shareClassid"])

	require.Len(t, client.genericPosts, 1)
	assert.Equal(t, 42, client.genericPosts[0]["entityId"])

	require.Len(t, client.insertedProv, 1)
	assert.Equal(t, [3]int{501, 9, 42}, client.insertedProv[0])

	// The captured asset id is persisted into the stored asset payload.
	units, _ := store.List(context.Background())
	var asset map[string]any
	require.NoError(t, json.Unmarshal(units[0].Payload, &asset))
	assert.Equal(t, float64(42), asset["assetId"])
	for _, u := range units {
		assert.Equal(t, staging.StatusSubmitted, u.Status)
	}
}

func TestSubmitLiquidityNameMismatchFailsUnitOnly(t *testing.T) {
	client := &fakeClient{
		assetID: 42,
		shareClasses: []assetapi.ShareClassInfo{
			{ShareClassID: 77, ShareClassName: "Class A"},
		},
	}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 0}, staging.TagUploadAsset)
		mustStage(t, buf, staging.DataTypeLiquidityTerms,
			[]map[string]any{{"class_name": "Class B", "payload": map[string]any{"shareClassid": 0}}},
			staging.TagLiquidityTerms)
		mustStage(t, buf, staging.DataTypeServiceProviders,
			[]map[string]any{{"company_id": 501, "company_type_id": 9}}, staging.TagServiceProviders)
	})

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "no matching share class")
	assert.NoError(t, results[2].Err, "later units still submit")

	units, _ := store.List(context.Background())
	assert.Equal(t, staging.StatusSubmitted, units[0].Status)
	assert.Equal(t, staging.StatusError, units[1].Status)
	assert.NotEmpty(t, units[1].Error)
	assert.Equal(t, staging.StatusSubmitted, units[2].Status)
}

func TestSubmitShareClassesPartialSuccess(t *testing.T) {
	client := &fakeClient{assetID: 42, shareClassErrFor: "Class B"}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 0}, staging.TagUploadAsset)
		mustStage(t, buf, staging.DataTypeShareClass, []map[string]any{
			{"shareClassName": "Class A", "assetId": 0},
			{"shareClassName": "Class B", "assetId": 0},
			{"shareClassName": "Class C", "assetId": 0},
		}, staging.TagShareClass)
	})

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// A and C made it; B's failure marks the unit but rolls nothing back.
	require.Len(t, client.insertedClasses, 2)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "1 of 3")

	units, _ := store.List(context.Background())
	assert.Equal(t, staging.StatusError, units[1].Status)
}

func TestSubmitDependentWithoutAssetIDFails(t *testing.T) {
	client := &fakeClient{}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeShareClass,
			[]map[string]any{{"shareClassName": "Class A", "assetId": 0}}, staging.TagShareClass)
	})

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "no asset id captured")
	assert.Empty(t, client.insertedClasses)
}

func TestSubmitLiquidityMissingPayloadFailsItemOnly(t *testing.T) {
	client := &fakeClient{
		assetID: 42,
		shareClasses: []assetapi.ShareClassInfo{
			{ShareClassID: 77, ShareClassName: "Class A"},
			{ShareClassID: 78, ShareClassName: "Class B"},
		},
	}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 0}, staging.TagUploadAsset)
		// An edited unit can lose the inner payload object entirely.
		mustStage(t, buf, staging.DataTypeLiquidityTerms, []map[string]any{
			{"class_name": "Class A"},
			{"class_name": "Class B", "payload": map[string]any{"shareClassid": 0}},
		}, staging.TagLiquidityTerms)
		mustStage(t, buf, staging.DataTypeServiceProviders,
			[]map[string]any{{"company_id": 501, "company_type_id": 9}}, staging.TagServiceProviders)
	})

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "missing payload object")

	// Class B still submitted, and the batch continued past the bad unit.
	require.Len(t, client.insertedTerms, 1)
	assert.Equal(t, 78, client.insertedTerms[0]["shareClassid"])
	assert.NoError(t, results[2].Err)
}

func TestSubmitShareClassesNullElementFailsItemOnly(t *testing.T) {
	client := &fakeClient{assetID: 42}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 0}, staging.TagUploadAsset)
		mustStage(t, buf, staging.DataTypeShareClass, []map[string]any{
			{"shareClassName": "Class A", "assetId": 0},
			nil,
		}, staging.TagShareClass)
	})

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "payload is not an object")
	require.Len(t, client.insertedClasses, 1)
	assert.Equal(t, "Class A", client.insertedClasses[0]["shareClassName"])
}

func TestSubmitGenericWithoutAssetIDFails(t *testing.T) {
	client := &fakeClient{}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeReturns,
			[]map[string]any{{"entityId": 0, "rorValue": 1.2}}, assetapi.EndpointAssetValuation)
	})

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "no asset id captured")
	assert.Empty(t, client.genericPosts)
}

func TestSubmitOneRecoversAssetIDFromStore(t *testing.T) {
	client := &fakeClient{}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 42}, staging.TagUploadAsset)
		mustStage(t, buf, staging.DataTypeShareClass,
			[]map[string]any{{"shareClassName": "Class A", "assetId": 0}}, staging.TagShareClass)
	})
	// The asset unit was submitted in a previous invocation.
	require.NoError(t, store.MarkSubmitted(context.Background(), store.units[0].ID))

	s := newTestSubmitter(client, store)
	res, err := s.SubmitOne(context.Background(), store.units[1].ID)
	require.NoError(t, err)
	require.NoError(t, res.Err)

	require.Len(t, client.insertedClasses, 1)
	assert.Equal(t, 42, client.insertedClasses[0]["assetId"])
}

func TestSubmitOneRejectsAlreadySubmitted(t *testing.T) {
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 42}, staging.TagUploadAsset)
	})
	require.NoError(t, store.MarkSubmitted(context.Background(), store.units[0].ID))

	s := newTestSubmitter(&fakeClient{}, store)
	_, err := s.SubmitOne(context.Background(), store.units[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already submitted")
}

func TestSubmitAllSkipsSubmittedUnits(t *testing.T) {
	client := &fakeClient{assetID: 42}
	store := &memStore{}
	stageUnits(t, store, func(buf *staging.Buffer) {
		mustStage(t, buf, staging.DataTypeAsset,
			map[string]any{"assetId": 42}, staging.TagUploadAsset)
		mustStage(t, buf, staging.DataTypeShareClass,
			[]map[string]any{{"shareClassName": "Class A", "assetId": 0}}, staging.TagShareClass)
	})
	require.NoError(t, store.MarkSubmitted(context.Background(), store.units[0].ID))

	s := newTestSubmitter(client, store)
	results, err := s.SubmitAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1, "submitted asset unit not resubmitted")
	assert.Empty(t, client.uploadedAssets)
	assert.Equal(t, staging.DataTypeShareClass, results[0].DataType)
}
