// Package submit drives staged units into the asset-management API. It owns
// the deferred identifier patching: units are staged before the asset exists,
// so the asset id captured from the first submission is substituted into
// dependent payloads immediately before each call, never earlier.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/internal/resilience"
	"github.com/sells-group/fund-intake-cli/internal/staging"
	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

// Result is the outcome of submitting one unit.
type Result struct {
	UnitID   string
	DataType string
	Status   staging.Status
	Err      error
}

// Submitter consumes pending staged units. Submission order matters: the
// asset unit must go first because every other unit references its id.
type Submitter struct {
	client assetapi.Client
	store  staging.Store
	retry  resilience.RetryConfig
	log    *zap.Logger
}

// New creates a Submitter with the given retry policy for transient API
// failures.
func New(client assetapi.Client, store staging.Store, retry resilience.RetryConfig) *Submitter {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("assetapi", "submit")
	}
	return &Submitter{
		client: client,
		store:  store,
		retry:  retry,
		log:    zap.L().Named("submit"),
	}
}

// SubmitAll submits every pending unit in staging order. A unit failure is
// recorded and the remaining units still run; only store and listing errors
// abort.
func (s *Submitter) SubmitAll(ctx context.Context) ([]Result, error) {
	units, err := s.store.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "submit: list units")
	}

	assetID := capturedAssetID(units)
	var results []Result
	for i := range units {
		unit := &units[i]
		if unit.Status != staging.StatusPending {
			continue
		}
		res := s.submitUnit(ctx, unit, &assetID)
		results = append(results, res)
		if err := s.record(ctx, res); err != nil {
			return results, err
		}
	}
	return results, nil
}

// SubmitOne submits a single pending unit by id. Dependent units require the
// asset unit to have been submitted already.
func (s *Submitter) SubmitOne(ctx context.Context, id string) (Result, error) {
	units, err := s.store.List(ctx)
	if err != nil {
		return Result{}, eris.Wrap(err, "submit: list units")
	}

	var unit *staging.Unit
	for i := range units {
		if units[i].ID == id {
			unit = &units[i]
			break
		}
	}
	if unit == nil {
		return Result{}, eris.Errorf("submit: no unit %s", id)
	}
	if unit.Status == staging.StatusSubmitted {
		return Result{}, eris.Errorf("submit: unit %s already submitted", id)
	}
	if unit.Status == staging.StatusError {
		// Failed units stay resubmittable.
		unit.Status = staging.StatusPending
	}

	assetID := capturedAssetID(units)
	res := s.submitUnit(ctx, unit, &assetID)
	if err := s.record(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Submitter) record(ctx context.Context, res Result) error {
	if res.Err != nil {
		s.log.Warn("unit failed",
			zap.String("unit", res.UnitID),
			zap.String("data_type", res.DataType),
			zap.Error(res.Err))
		return eris.Wrap(s.store.MarkError(ctx, res.UnitID, res.Err.Error()), "submit: record error")
	}
	s.log.Info("unit submitted",
		zap.String("unit", res.UnitID),
		zap.String("data_type", res.DataType))
	return eris.Wrap(s.store.MarkSubmitted(ctx, res.UnitID), "submit: record success")
}

// submitUnit routes one unit by its endpoint tag. assetID is read for
// dependent units and written by the upload_asset case.
func (s *Submitter) submitUnit(ctx context.Context, unit *staging.Unit, assetID *int) Result {
	res := Result{UnitID: unit.ID, DataType: unit.DataType, Status: staging.StatusSubmitted}

	var err error
	switch unit.Endpoint {
	case staging.TagUploadAsset:
		err = s.submitAsset(ctx, unit, assetID)
	case staging.TagShareClass:
		err = s.submitShareClasses(ctx, unit, *assetID)
	case staging.TagLiquidityTerms:
		err = s.submitLiquidityTerms(ctx, unit, *assetID)
	case staging.TagServiceProviders:
		err = s.submitServiceProviders(ctx, unit, *assetID)
	default:
		err = s.submitGeneric(ctx, unit, *assetID)
	}
	if err != nil {
		res.Status = staging.StatusError
		res.Err = err
	}
	return res
}

// submitAsset uploads the asset payload, captures the id the API assigned,
// and writes it back into the stored payload so later invocations can
// recover it.
func (s *Submitter) submitAsset(ctx context.Context, unit *staging.Unit, assetID *int) error {
	var payload map[string]any
	if err := json.Unmarshal(unit.Payload, &payload); err != nil {
		return eris.Wrapf(err, "submit: decode asset payload %s", unit.ID)
	}

	id, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (int, error) {
		return s.client.UploadAsset(ctx, payload)
	})
	if err != nil {
		return err
	}
	*assetID = id
	s.log.Info("asset created", zap.Int("asset_id", id))

	payload["assetId"] = id
	patched, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "submit: marshal patched asset payload")
	}
	if err := s.store.UpdatePayload(ctx, unit.ID, patched); err != nil {
		return eris.Wrap(err, "submit: persist asset id")
	}
	return nil
}

// submitShareClasses submits each class independently with the asset id
// patched in. An inner failure does not roll back classes already created.
func (s *Submitter) submitShareClasses(ctx context.Context, unit *staging.Unit, assetID int) error {
	if assetID == 0 {
		return eris.New("submit: no asset id captured; submit the asset unit first")
	}
	var classes []map[string]any
	if err := json.Unmarshal(unit.Payload, &classes); err != nil {
		return eris.Wrapf(err, "submit: decode share class payload %s", unit.ID)
	}

	var failures []string
	for i, class := range classes {
		if class == nil {
			failures = append(failures, fmt.Sprintf("class %d: payload is not an object", i))
			continue
		}
		class["assetId"] = assetID
		err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
			return s.client.InsertShareClass(ctx, class)
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("class %d (%v): %v", i, class["shareClassName"], err))
		}
	}
	if len(failures) > 0 {
		return eris.Errorf("submit: %d of %d share classes failed: %s",
			len(failures), len(classes), strings.Join(failures, "; "))
	}
	return nil
}

// submitLiquidityTerms matches each staged liquidity payload to a created
// share class by exact name, fills shareClassid, and submits. A name with no
// matching share class fails that item; the rest still submit.
func (s *Submitter) submitLiquidityTerms(ctx context.Context, unit *staging.Unit, assetID int) error {
	if assetID == 0 {
		return eris.New("submit: no asset id captured; submit the asset unit first")
	}
	var items []struct {
		ClassName string         `json:"class_name"`
		Payload   map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(unit.Payload, &items); err != nil {
		return eris.Wrapf(err, "submit: decode liquidity payload %s", unit.ID)
	}

	created, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]assetapi.ShareClassInfo, error) {
		return s.client.GetShareClassList(ctx, assetID)
	})
	if err != nil {
		return eris.Wrap(err, "submit: fetch share class list")
	}
	byName := make(map[string]int, len(created))
	for _, sc := range created {
		byName[sc.ShareClassName] = sc.ShareClassID
	}

	var failures []string
	for _, item := range items {
		scID, ok := byName[item.ClassName]
		if !ok {
			failures = append(failures, fmt.Sprintf("class %q: no matching share class", item.ClassName))
			continue
		}
		if item.Payload == nil {
			// Edited payloads can arrive without the inner object; fail the
			// item, not the batch.
			failures = append(failures, fmt.Sprintf("class %q: missing payload object", item.ClassName))
			continue
		}
		item.Payload["shareClassid"] = scID
		err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
			return s.client.InsertLiquidityTerms(ctx, item.Payload)
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("class %q: %v", item.ClassName, err))
		}
	}
	if len(failures) > 0 {
		return eris.Errorf("submit: %d of %d liquidity terms failed: %s",
			len(failures), len(items), strings.Join(failures, "; "))
	}
	return nil
}

func (s *Submitter) submitServiceProviders(ctx context.Context, unit *staging.Unit, assetID int) error {
	if assetID == 0 {
		return eris.New("submit: no asset id captured; submit the asset unit first")
	}
	var providers []struct {
		CompanyType   string `json:"company_type"`
		CompanyID     int    `json:"company_id"`
		CompanyTypeID int    `json:"company_type_id"`
	}
	if err := json.Unmarshal(unit.Payload, &providers); err != nil {
		return eris.Wrapf(err, "submit: decode provider payload %s", unit.ID)
	}

	var failures []string
	for _, p := range providers {
		err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
			return s.client.InsertServiceProvider(ctx, p.CompanyID, p.CompanyTypeID, assetID)
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s company %d: %v", p.CompanyType, p.CompanyID, err))
		}
	}
	if len(failures) > 0 {
		return eris.Errorf("submit: %d of %d providers failed: %s",
			len(failures), len(providers), strings.Join(failures, "; "))
	}
	return nil
}

// submitGeneric posts to the unit's literal endpoint. Array payloads submit
// per item; any item carrying an entityId or assetId key gets the captured
// asset id patched in first, and is rejected when no id has been captured.
func (s *Submitter) submitGeneric(ctx context.Context, unit *staging.Unit, assetID int) error {
	var items []map[string]any
	if err := json.Unmarshal(unit.Payload, &items); err != nil {
		// Not an array: post the payload as-is.
		return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
			return s.client.Post(ctx, unit.Endpoint, unit.Payload)
		})
	}

	if assetID == 0 && referencesAssetID(items) {
		return eris.New("submit: no asset id captured; submit the asset unit first")
	}

	var failures []string
	for i, item := range items {
		patchAssetID(item, assetID)
		err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
			return s.client.Post(ctx, unit.Endpoint, item)
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("item %d: %v", i, err))
		}
	}
	if len(failures) > 0 {
		return eris.Errorf("submit: %d of %d items failed for %s: %s",
			len(failures), len(items), unit.Endpoint, strings.Join(failures, "; "))
	}
	return nil
}

// referencesAssetID reports whether any item carries an identifier field that
// submission is expected to patch.
func referencesAssetID(items []map[string]any) bool {
	for _, item := range items {
		if _, ok := item["entityId"]; ok {
			return true
		}
		if _, ok := item["assetId"]; ok {
			return true
		}
	}
	return false
}

func patchAssetID(item map[string]any, assetID int) {
	if assetID == 0 {
		return
	}
	if _, ok := item["entityId"]; ok {
		item["entityId"] = assetID
	}
	if _, ok := item["assetId"]; ok {
		item["assetId"] = assetID
	}
}

// capturedAssetID recovers the asset id from an already-submitted asset
// unit, so dependent units can be submitted in a later invocation.
func capturedAssetID(units []staging.Unit) int {
	for _, u := range units {
		if u.Endpoint != staging.TagUploadAsset || u.Status != staging.StatusSubmitted {
			continue
		}
		var payload struct {
			AssetID int `json:"assetId"`
		}
		if err := json.Unmarshal(u.Payload, &payload); err == nil && payload.AssetID != 0 {
			return payload.AssetID
		}
	}
	return 0
}
