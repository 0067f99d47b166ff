// Package refdata holds the target system's reference enumerations: a
// read-only snapshot fetched once per pipeline run, plus the exact-match
// resolvers that translate extracted display names into ids.
package refdata

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fund-intake-cli/pkg/assetapi"
)

// Snapshot is the full set of reference enumerations for one run. It is
// fetched once and never refreshed mid-run; enumeration changes on the target
// system during a run are a documented staleness window.
type Snapshot struct {
	AssetTypes              []assetapi.AssetType
	Strategies              []assetapi.Strategy
	LockTypes               []assetapi.EnumEntry
	NoticeFrequencies       []assetapi.EnumEntry
	LockupFrequencies       []assetapi.EnumEntry
	RedemptionFrequencies   []assetapi.Frequency
	InvestorGateFrequencies []assetapi.Frequency
	CompanyTypes            []assetapi.CompanyType
}

// Fetch loads every enumeration from the API.
func Fetch(ctx context.Context, client assetapi.Client) (*Snapshot, error) {
	var s Snapshot
	var err error

	if s.AssetTypes, err = client.GetAssetTypes(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: asset types")
	}
	if s.Strategies, err = client.GetStrategies(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: strategies")
	}
	if s.LockTypes, err = client.GetLockTypes(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: lock types")
	}
	if s.NoticeFrequencies, err = client.GetNoticeFrequencies(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: notice frequencies")
	}
	if s.LockupFrequencies, err = client.GetLockupFrequencies(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: lockup frequencies")
	}
	if s.RedemptionFrequencies, err = client.GetRedemptionFrequencies(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: redemption frequencies")
	}
	if s.InvestorGateFrequencies, err = client.GetInvestorGateFrequencies(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: investor gate frequencies")
	}
	if s.CompanyTypes, err = client.GetCompanyTypes(ctx); err != nil {
		return nil, eris.Wrap(err, "refdata: company types")
	}
	return &s, nil
}

// Name lists, used to constrain extraction prompts to the known vocabulary.

func (s *Snapshot) AssetTypeNames() []string {
	out := make([]string, len(s.AssetTypes))
	for i, t := range s.AssetTypes {
		out[i] = t.AssetTypeName
	}
	return out
}

func (s *Snapshot) StrategyNames() []string {
	out := make([]string, len(s.Strategies))
	for i, t := range s.Strategies {
		out[i] = t.ClassificationValue
	}
	return out
}

func (s *Snapshot) LockTypeNames() []string      { return enumNames(s.LockTypes) }
func (s *Snapshot) NoticeFreqNames() []string    { return enumNames(s.NoticeFrequencies) }
func (s *Snapshot) LockupFreqNames() []string    { return enumNames(s.LockupFrequencies) }
func (s *Snapshot) RedemptionFreqNames() []string {
	return frequencyNames(s.RedemptionFrequencies)
}
func (s *Snapshot) InvestorGateFreqNames() []string {
	return frequencyNames(s.InvestorGateFrequencies)
}

func (s *Snapshot) CompanyTypeNames() []string {
	out := make([]string, len(s.CompanyTypes))
	for i, t := range s.CompanyTypes {
		out[i] = t.CompanyType
	}
	return out
}

func enumNames(entries []assetapi.EnumEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.EnumName
	}
	return out
}

func frequencyNames(entries []assetapi.Frequency) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.FrequencyName
	}
	return out
}
