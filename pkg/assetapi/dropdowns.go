package assetapi

import (
	"context"
	"fmt"
)

func (c *httpClient) GetAssetTypes(ctx context.Context) ([]AssetType, error) {
	var out []AssetType
	if err := c.getJSON(ctx, c.eps.AssetTypes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetStrategies(ctx context.Context) ([]Strategy, error) {
	var out []Strategy
	if err := c.getJSON(ctx, c.eps.Strategies, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetLockTypes(ctx context.Context) ([]EnumEntry, error) {
	var out []EnumEntry
	if err := c.getJSON(ctx, c.eps.LockTypes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetNoticeFrequencies(ctx context.Context) ([]EnumEntry, error) {
	var out []EnumEntry
	if err := c.getJSON(ctx, c.eps.NoticeFrequencies, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetLockupFrequencies(ctx context.Context) ([]EnumEntry, error) {
	var out []EnumEntry
	if err := c.getJSON(ctx, c.eps.LockupFrequencies, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetRedemptionFrequencies(ctx context.Context) ([]Frequency, error) {
	var out []Frequency
	if err := c.getJSON(ctx, c.eps.RedemptionFrequencies, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetInvestorGateFrequencies(ctx context.Context) ([]Frequency, error) {
	var out []Frequency
	if err := c.getJSON(ctx, c.eps.InvestorGateFrequencies, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetCompanyTypes(ctx context.Context) ([]CompanyType, error) {
	var out []CompanyType
	if err := c.getJSON(ctx, pathCompanyTypes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *httpClient) GetCompaniesByType(ctx context.Context, companyTypeID int) ([]Company, error) {
	var out []Company
	if err := c.getJSON(ctx, fmt.Sprintf(pathCompaniesByType, companyTypeID), &out); err != nil {
		return nil, err
	}
	return out, nil
}
