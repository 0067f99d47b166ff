package assetapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// UploadAsset creates or updates an asset and returns the asset id assigned
// by the API.
func (c *httpClient) UploadAsset(ctx context.Context, payload map[string]any) (int, error) {
	var raw json.RawMessage
	if err := c.postJSON(ctx, c.eps.UploadAsset, payload, &raw); err != nil {
		return 0, err
	}
	id, err := decodeAssetID(raw)
	if err != nil {
		return 0, eris.Wrap(err, "assetapi: upload asset response")
	}
	return id, nil
}

// decodeAssetID accepts either a bare integer or an object carrying the id.
func decodeAssetID(raw json.RawMessage) (int, error) {
	var id int
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var obj struct {
		AssetID int `json:"assetId"`
		ID      int `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, eris.Wrapf(err, "unexpected response shape: %s", string(raw))
	}
	if obj.AssetID != 0 {
		return obj.AssetID, nil
	}
	if obj.ID != 0 {
		return obj.ID, nil
	}
	return 0, eris.Errorf("no asset id in response: %s", string(raw))
}

func (c *httpClient) InsertShareClass(ctx context.Context, payload map[string]any) error {
	return c.postJSON(ctx, pathInsertShareClass, payload, nil)
}

func (c *httpClient) GetShareClassList(ctx context.Context, assetID int) ([]ShareClassInfo, error) {
	var out []ShareClassInfo
	if err := c.getJSON(ctx, fmt.Sprintf(pathShareClassList, assetID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) InsertLiquidityTerms(ctx context.Context, payload map[string]any) error {
	return c.postJSON(ctx, pathInsertLiquidityTerms, payload, nil)
}

func (c *httpClient) InsertAssetValuation(ctx context.Context, payload map[string]any) error {
	return c.postJSON(ctx, pathInsertValuation, payload, nil)
}

func (c *httpClient) InsertServiceProvider(ctx context.Context, companyID, companyTypeID, assetID int) error {
	endpoint := fmt.Sprintf(pathInsertServiceProv, companyID, companyTypeID, assetID)
	return c.postJSON(ctx, endpoint, nil, nil)
}

func (c *httpClient) Post(ctx context.Context, endpoint string, payload any) error {
	return c.postJSON(ctx, endpoint, payload, nil)
}
