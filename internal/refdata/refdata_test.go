package refdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		AssetTypes: []assetapi.AssetType{
			{AssetTypeID: 5, AssetTypeName: "Hedge Fund"},
			{AssetTypeID: 7, AssetTypeName: "Private Equity"},
		},
		Strategies: []assetapi.Strategy{
			{ClassificationID: 21, ClassificationValue: "Long/Short Equity"},
			{ClassificationID: 22, ClassificationValue: "Global Macro"},
		},
		LockTypes: []assetapi.EnumEntry{
			{EnumValue: 1, EnumName: "Hard Lock"},
			{EnumValue: 2, EnumName: "Soft Lock"},
		},
		NoticeFrequencies: []assetapi.EnumEntry{
			{EnumValue: 10, EnumName: "Days"},
		},
		LockupFrequencies: []assetapi.EnumEntry{
			{EnumValue: 11, EnumName: "Months"},
		},
		RedemptionFrequencies: []assetapi.Frequency{
			{FrequencyID: 3, FrequencyName: "Quarterly"},
		},
		InvestorGateFrequencies: []assetapi.Frequency{
			{FrequencyID: 4, FrequencyName: "Annually"},
		},
		CompanyTypes: []assetapi.CompanyType{
			{CompanyTypeID: 12, CompanyType: "Administrator"},
			{CompanyTypeID: 13, CompanyType: "Auditor"},
		},
	}
}

func TestResolveExactMatch(t *testing.T) {
	s := testSnapshot()

	id := s.ResolveStrategy("Long/Short Equity")
	require.NotNil(t, id)
	assert.Equal(t, 21, *id)

	id = s.ResolveAssetType("Hedge Fund")
	require.NotNil(t, id)
	assert.Equal(t, 5, *id)

	id = s.ResolveLockType("Hard Lock")
	require.NotNil(t, id)
	assert.Equal(t, 1, *id)

	id = s.ResolveRedemptionFrequency("Quarterly")
	require.NotNil(t, id)
	assert.Equal(t, 3, *id)

	id = s.ResolveInvestorGateFrequency("Annually")
	require.NotNil(t, id)
	assert.Equal(t, 4, *id)

	id = s.ResolveCompanyType("Auditor")
	require.NotNil(t, id)
	assert.Equal(t, 13, *id)
}

func TestResolveCaseSensitive(t *testing.T) {
	s := testSnapshot()

	assert.Nil(t, s.ResolveStrategy("long/short equity"))
	assert.Nil(t, s.ResolveAssetType("hedge fund"))
	assert.Nil(t, s.ResolveLockType("HARD LOCK"))
}

func TestResolveMissYieldsNil(t *testing.T) {
	s := testSnapshot()

	assert.Nil(t, s.ResolveStrategy("not found"))
	assert.Nil(t, s.ResolveNoticeFrequency("Fortnightly"))
	assert.Nil(t, s.ResolveLockupFrequency(""))
}

func TestNameLists(t *testing.T) {
	s := testSnapshot()

	assert.Equal(t, []string{"Hedge Fund", "Private Equity"}, s.AssetTypeNames())
	assert.Equal(t, []string{"Long/Short Equity", "Global Macro"}, s.StrategyNames())
	assert.Equal(t, []string{"Hard Lock", "Soft Lock"}, s.LockTypeNames())
	assert.Equal(t, []string{"Quarterly"}, s.RedemptionFreqNames())
	assert.Equal(t, []string{"Administrator", "Auditor"}, s.CompanyTypeNames())
}

// countingClient counts GetCompaniesByType calls to verify caching.
type countingClient struct {
	assetapi.Client
	calls int
}

func (c *countingClient) GetCompaniesByType(_ context.Context, companyTypeID int) ([]assetapi.Company, error) {
	c.calls++
	return []assetapi.Company{
		{CompanyID: 300 + companyTypeID, CompanyName: "Provider for type"},
	}, nil
}

func TestDirectoryCachesLookups(t *testing.T) {
	client := &countingClient{}
	d := NewDirectory(client, time.Minute)
	ctx := context.Background()

	first, err := d.CompaniesByType(ctx, 12)
	require.NoError(t, err)
	second, err := d.CompaniesByType(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.calls)

	_, err = d.CompaniesByType(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}

func TestMatchCompanySubstring(t *testing.T) {
	companies := []assetapi.Company{
		{CompanyID: 1, CompanyName: "BNY Mellon"},
		{CompanyID: 2, CompanyName: "Apex Fund Services Ltd"},
	}

	m := MatchCompany("BNY", companies)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.CompanyID)

	// Case-insensitive containment.
	m = MatchCompany("apex fund services", companies)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.CompanyID)

	assert.Nil(t, MatchCompany("State Street", companies))
}
