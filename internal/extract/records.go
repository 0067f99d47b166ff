package extract

import (
	"regexp"

	"github.com/rotisserie/eris"
)

// Sentinel values for schema fields the extractor could not resolve. Records
// always carry every field; absence is expressed with these, never by
// omitting the key.
const (
	NotFound = "not found"
	NA       = "N/A"
)

// IdentityRecord holds the fund's identifying metadata.
type IdentityRecord struct {
	FullName        string `json:"full_name"`
	Abbreviation    string `json:"abbreviation"`
	DateOfInception string `json:"date_of_inception"`
}

// ApplyDefaults fills unresolved fields with their sentinels.
func (r *IdentityRecord) ApplyDefaults() {
	defaultStr(&r.FullName, NotFound)
	defaultStr(&r.Abbreviation, NotFound)
	defaultStr(&r.DateOfInception, NotFound)
}

// ClassificationRecord holds the matched security type and strategy, each
// constrained to a caller-supplied allowed list (or N/A).
type ClassificationRecord struct {
	SecurityType  string `json:"security_type"`
	StrategyValue string `json:"strategy_value"`
}

func (r *ClassificationRecord) ApplyDefaults() {
	defaultStr(&r.SecurityType, NA)
	defaultStr(&r.StrategyValue, NA)
}

// ShareClass is one extracted share class with raw fee strings. Fees keep
// their document formatting ("9.5%", "$5,000,000") until normalization.
type ShareClass struct {
	Name              string `json:"name"`
	ManagementFee     string `json:"management_fee"`
	PerformanceFee    string `json:"performance_fee"`
	HurdleValue       string `json:"hurdle_value"`
	MinimumInvestment string `json:"minimum_investment"`
}

// ShareClassSet is the share-class task output. Order is authoritative: the
// first class becomes the default share class downstream.
type ShareClassSet struct {
	Classes []ShareClass `json:"classes"`
}

func (s *ShareClassSet) ApplyDefaults() {
	for i := range s.Classes {
		c := &s.Classes[i]
		defaultStr(&c.Name, NotFound)
		defaultStr(&c.ManagementFee, NotFound)
		defaultStr(&c.PerformanceFee, NotFound)
		defaultStr(&c.HurdleValue, NotFound)
		defaultStr(&c.MinimumInvestment, NotFound)
	}
}

// LiquidityClass carries the liquidity terms for one share class, with
// per-field provenance recording where each value was found.
type LiquidityClass struct {
	Name                string `json:"name"`
	NameSourceFile      string `json:"name_source_file"`
	NameSourcePageLabel int    `json:"name_source_page_label"`

	RequiredNotice                int    `json:"required_notice"`
	RequiredNoticeSourceFile      string `json:"required_notice_source_file"`
	RequiredNoticeSourcePageLabel int    `json:"required_notice_source_page_label"`

	NoticeFrequency                string `json:"notice_frequency"`
	NoticeFrequencySourceFile      string `json:"notice_frequency_source_file"`
	NoticeFrequencySourcePageLabel int    `json:"notice_frequency_source_page_label"`

	RedemptionFrequency                string `json:"redemption_frequency"`
	RedemptionFrequencySourceFile      string `json:"redemption_frequency_source_file"`
	RedemptionFrequencySourcePageLabel int    `json:"redemption_frequency_source_page_label"`

	LockupTypes                string `json:"lockup_types"`
	LockupTypesSourceFile      string `json:"lockup_types_source_file"`
	LockupTypesSourcePageLabel int    `json:"lockup_types_source_page_label"`

	LockupFrequency                string `json:"lockup_frequency"`
	LockupFrequencySourceFile      string `json:"lockup_frequency_source_file"`
	LockupFrequencySourcePageLabel int    `json:"lockup_frequency_source_page_label"`

	InvestorGatePercent                string `json:"investor_gate_percent"`
	InvestorGatePercentSourceFile      string `json:"investor_gate_percent_source_file"`
	InvestorGatePercentSourcePageLabel int    `json:"investor_gate_percent_source_page_label"`

	InvestorGateFrequency                string `json:"investor_gate_frequency"`
	InvestorGateFrequencySourceFile      string `json:"investor_gate_frequency_source_file"`
	InvestorGateFrequencySourcePageLabel int    `json:"investor_gate_frequency_source_page_label"`
}

// LiquiditySet is the liquidity-terms task output.
type LiquiditySet struct {
	Classes []LiquidityClass `json:"classes"`
}

func (s *LiquiditySet) ApplyDefaults() {
	for i := range s.Classes {
		c := &s.Classes[i]
		defaultStr(&c.Name, NotFound)
		defaultStr(&c.NoticeFrequency, NotFound)
		defaultStr(&c.RedemptionFrequency, NotFound)
		defaultStr(&c.LockupTypes, NotFound)
		defaultStr(&c.LockupFrequency, NotFound)
		defaultStr(&c.InvestorGatePercent, NotFound)
		defaultStr(&c.InvestorGateFrequency, NotFound)
	}
}

// valuationDatePattern is the only accepted date shape for returns records.
var valuationDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T00:00:00Z$`)

// ReturnRecord is one point of the returns time series.
type ReturnRecord struct {
	ValuationDate string  `json:"valuationDate"`
	RorValue      float64 `json:"rorValue"`
}

// Validate enforces the date pattern and the rate-of-return bounds. Values
// out of range are rejected, not clamped.
func (r ReturnRecord) Validate() error {
	if !valuationDatePattern.MatchString(r.ValuationDate) {
		return eris.Errorf("extract: valuationDate %q does not match YYYY-MM-DDT00:00:00Z", r.ValuationDate)
	}
	if r.RorValue < -100 || r.RorValue > 100 {
		return eris.Errorf("extract: rorValue %v outside [-100, 100]", r.RorValue)
	}
	return nil
}

// ReturnsSet is the returns task output.
type ReturnsSet struct {
	Records []ReturnRecord `json:"records"`
}

// Validate rejects the whole set if any record is malformed: the time series
// is only useful when every point is well-formed.
func (s ReturnsSet) Validate() error {
	for i, rec := range s.Records {
		if err := rec.Validate(); err != nil {
			return eris.Wrapf(err, "record %d", i)
		}
	}
	return nil
}

// ProviderConfirmations maps a company-type display name to the list of
// confirmed provider company names found in the documents.
type ProviderConfirmations map[string][]string

func defaultStr(s *string, sentinel string) {
	if *s == "" {
		*s = sentinel
	}
}
