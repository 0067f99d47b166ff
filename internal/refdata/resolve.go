package refdata

import "github.com/sells-group/fund-intake-cli/pkg/assetapi"

// Resolution is exact and case-sensitive: the first enumeration entry whose
// display field equals the extracted name wins, and a miss yields nil, never
// a fabricated id. Each enumeration shape has its own display/id field pair,
// so each gets its own resolver.

// ResolveAssetType maps an asset type name to its id.
func (s *Snapshot) ResolveAssetType(name string) *int {
	for _, t := range s.AssetTypes {
		if t.AssetTypeName == name {
			id := t.AssetTypeID
			return &id
		}
	}
	return nil
}

// ResolveStrategy maps a strategy classification value to its id.
func (s *Snapshot) ResolveStrategy(name string) *int {
	for _, t := range s.Strategies {
		if t.ClassificationValue == name {
			id := t.ClassificationID
			return &id
		}
	}
	return nil
}

// ResolveLockType maps a lock type name to its enum value.
func (s *Snapshot) ResolveLockType(name string) *int {
	return resolveEnum(s.LockTypes, name)
}

// ResolveNoticeFrequency maps a notice frequency name to its enum value.
func (s *Snapshot) ResolveNoticeFrequency(name string) *int {
	return resolveEnum(s.NoticeFrequencies, name)
}

// ResolveLockupFrequency maps a lockup frequency name to its enum value.
func (s *Snapshot) ResolveLockupFrequency(name string) *int {
	return resolveEnum(s.LockupFrequencies, name)
}

// ResolveRedemptionFrequency maps a redemption frequency name to its id.
func (s *Snapshot) ResolveRedemptionFrequency(name string) *int {
	return resolveFrequency(s.RedemptionFrequencies, name)
}

// ResolveInvestorGateFrequency maps an investor gate frequency name to its id.
func (s *Snapshot) ResolveInvestorGateFrequency(name string) *int {
	return resolveFrequency(s.InvestorGateFrequencies, name)
}

// ResolveCompanyType maps a company type display name to its id.
func (s *Snapshot) ResolveCompanyType(name string) *int {
	for _, t := range s.CompanyTypes {
		if t.CompanyType == name {
			id := t.CompanyTypeID
			return &id
		}
	}
	return nil
}

func resolveEnum(entries []assetapi.EnumEntry, name string) *int {
	for _, e := range entries {
		if e.EnumName == name {
			id := e.EnumValue
			return &id
		}
	}
	return nil
}

func resolveFrequency(entries []assetapi.Frequency, name string) *int {
	for _, e := range entries {
		if e.FrequencyName == name {
			id := e.FrequencyID
			return &id
		}
	}
	return nil
}
