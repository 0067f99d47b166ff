// Package assetapi provides an authenticated client for the downstream
// asset-management API: reference dropdown fetches, asset and share-class
// creation, liquidity terms, valuations, and service-provider linkage.
package assetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the asset-management API operations used by the pipeline.
type Client interface {
	// Authenticate exchanges the user email for a bearer token and stores it
	// for subsequent calls.
	Authenticate(ctx context.Context, email string) error

	// Reference dropdown fetches.
	GetAssetTypes(ctx context.Context) ([]AssetType, error)
	GetStrategies(ctx context.Context) ([]Strategy, error)
	GetLockTypes(ctx context.Context) ([]EnumEntry, error)
	GetNoticeFrequencies(ctx context.Context) ([]EnumEntry, error)
	GetLockupFrequencies(ctx context.Context) ([]EnumEntry, error)
	GetRedemptionFrequencies(ctx context.Context) ([]Frequency, error)
	GetInvestorGateFrequencies(ctx context.Context) ([]Frequency, error)
	GetCompanyTypes(ctx context.Context) ([]CompanyType, error)
	GetCompaniesByType(ctx context.Context, companyTypeID int) ([]Company, error)

	// Submission calls.
	UploadAsset(ctx context.Context, payload map[string]any) (int, error)
	InsertShareClass(ctx context.Context, payload map[string]any) error
	GetShareClassList(ctx context.Context, assetID int) ([]ShareClassInfo, error)
	InsertLiquidityTerms(ctx context.Context, payload map[string]any) error
	InsertAssetValuation(ctx context.Context, payload map[string]any) error
	InsertServiceProvider(ctx context.Context, companyID, companyTypeID, assetID int) error

	// Post issues an authenticated POST to a literal endpoint path, for
	// staged units that carry their own path instead of a routing tag.
	Post(ctx context.Context, endpoint string, payload any) error
}

// Endpoints holds the API paths. The dropdown paths are deployment
// configuration; the submission paths are fixed by the API.
type Endpoints struct {
	Authenticate            string
	AssetTypes              string
	Strategies              string
	LockTypes               string
	NoticeFrequencies       string
	LockupFrequencies       string
	RedemptionFrequencies   string
	InvestorGateFrequencies string
	UploadAsset             string
}

// DefaultEndpoints returns the standard endpoint layout.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Authenticate:            "/Authentication/AuthenticateUser",
		AssetTypes:              "/Dropdown/GetAssetTypes",
		Strategies:              "/Dropdown/GetStrategyValues",
		LockTypes:               "/Liquidity/GetLockTypes",
		NoticeFrequencies:       "/Liquidity/GetRequiredNoticeFrequency",
		LockupFrequencies:       "/Liquidity/GetLockupFrequency",
		RedemptionFrequencies:   "/Liquidity/GetRedemptionFrequency",
		InvestorGateFrequencies: "/Liquidity/GetInvestorGateFrequency",
		UploadAsset:             "/Assets/InsertUpdateAsset",
	}
}

// EndpointAssetValuation is the valuation submission path. Exported because
// staged returns units carry it as their literal endpoint.
const EndpointAssetValuation = "/AssetValuation/InsertUpdateAssetValuation"

// Fixed submission paths.
const (
	pathInsertShareClass     = "/AssetShareClass/InsertOrUpdateShareClass"
	pathShareClassList       = "/AssetShareClass/GetShareClassListByAssetId/%d,false"
	pathInsertLiquidityTerms = "/Liquidity/InsertOrUpdateLiquidityRedemptionTerms"
	pathInsertValuation      = EndpointAssetValuation
	pathInsertServiceProv    = "/Assets/InsertUpdateServiceProvider?assetCompanyXRefId=0&CompanyId=%d&CompanyTypeId=%d&AssetId=%d"
	pathCompanyTypes         = "/Assets/GetCompanyTypes"
	pathCompaniesByType      = "/Assets/GetCompanyByType/%d"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assetapi: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Temporary reports whether the status indicates a retryable server-side issue.
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithEndpoints overrides the endpoint layout.
func WithEndpoints(eps Endpoints) Option {
	return func(c *httpClient) {
		c.eps = eps
	}
}

// WithRateLimit sets a per-second rate limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	eps     Endpoints
	limiter *rate.Limiter
	token   string
}

// NewClient creates a new asset-management API client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		eps:     DefaultEndpoints(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type authRequest struct {
	ParamValue   string `json:"paramValue"`
	EmailAddress string `json:"emailAddress"`
	IsAddin      string `json:"isAddin"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (c *httpClient) Authenticate(ctx context.Context, email string) error {
	body, err := json.Marshal(authRequest{
		ParamValue:   "string",
		EmailAddress: email,
		IsAddin:      "true",
	})
	if err != nil {
		return eris.Wrap(err, "assetapi: marshal auth request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.eps.Authenticate, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "assetapi: build auth request")
	}
	req.Header.Set("Content-Type", "application/json-patch+json")
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "assetapi: authenticate")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp, c.eps.Authenticate)
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return eris.Wrap(err, "assetapi: decode auth response")
	}
	if auth.Token == "" {
		return eris.New("assetapi: authentication returned empty token")
	}
	c.token = auth.Token
	return nil
}

// getJSON issues an authenticated GET and decodes the JSON response into out.
func (c *httpClient) getJSON(ctx context.Context, endpoint string, out any) error {
	if c.token == "" {
		return eris.New("assetapi: not authenticated")
	}
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "assetapi: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return eris.Wrapf(err, "assetapi: build request %s", endpoint)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "assetapi: get %s", endpoint)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "assetapi: decode %s", endpoint)
	}
	return nil
}

// postJSON issues an authenticated POST. A nil payload sends an empty body.
// If out is non-nil the response JSON is decoded into it.
func (c *httpClient) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	if c.token == "" {
		return eris.New("assetapi: not authenticated")
	}
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "assetapi: rate limit")
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return eris.Wrapf(err, "assetapi: marshal payload for %s", endpoint)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return eris.Wrapf(err, "assetapi: build request %s", endpoint)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "assetapi: post %s", endpoint)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp, endpoint)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return eris.Wrapf(err, "assetapi: decode %s", endpoint)
		}
	}
	return nil
}

func readAPIError(resp *http.Response, endpoint string) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		Body:       string(b),
	}
}
