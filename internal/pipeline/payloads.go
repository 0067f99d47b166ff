package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sells-group/fund-intake-cli/internal/extract"
	"github.com/sells-group/fund-intake-cli/internal/refdata"
)

// The target API's create/update payloads are large fixed-shape objects in
// which only a handful of fields carry extracted data; everything else is
// submitted as the literal placeholders the API expects ("string", 0). The
// builders below keep that split explicit.

// MergeIdentity combines the identity and classification records into one
// field map and attaches the resolved ids. Classification fields win on key
// collision. An unresolved classification carries a nil id, never a
// fabricated one.
func MergeIdentity(identity extract.IdentityRecord, class extract.ClassificationRecord, snap *refdata.Snapshot, namePrefix string) map[string]any {
	fullName := identity.FullName
	if namePrefix != "" {
		fullName = namePrefix + " - " + fullName
	}

	merged := map[string]any{
		"full_name":         fullName,
		"abbreviation":      identity.Abbreviation,
		"date_of_inception": identity.DateOfInception,
	}
	for k, v := range map[string]any{
		"security_type":     class.SecurityType,
		"strategy_value":    class.StrategyValue,
		"security_type_id":  snap.ResolveAssetType(class.SecurityType),
		"strategy_value_id": snap.ResolveStrategy(class.StrategyValue),
	} {
		merged[k] = v
	}
	return merged
}

// AssetPayload builds the asset-creation payload from the merged identity
// fields. Real fields: assetName, abbrName, effectiveDate, securityType(Id),
// strategy(Id). The id fields are submitted as strings, "0" when unresolved.
func AssetPayload(merged map[string]any, now time.Time) map[string]any {
	ts := now.UTC().Format(time.RFC3339)
	return map[string]any{
		"assetId":             0,
		"securityTypeId":      idString(merged["security_type_id"]),
		"securityType":        str(merged["security_type"]),
		"assetClassId":        0,
		"assetClass":          "string",
		"assetName":           str(merged["full_name"]),
		"strategyId":          idString(merged["strategy_value_id"]),
		"strategy":            str(merged["strategy_value"]),
		"substrategyId":       0,
		"substrategy":         "string",
		"strategyDescription": "string",
		"abbrName":            str(merged["abbreviation"]),
		"effectiveDate":       str(merged["date_of_inception"]),
		"overrideStrategy":    "string",
		"investmentStatusId":  0,
		"investmentStatus":    "string",
		"bloombergId":         "string",
		"valuationDate":       ts,
		"regionId":            0,
		"region":              "string",
		"subregionId":         0,
		"subregion":           "string",
		"assetStatusId":       0,
		"assetStatus":         "string",
		"primaryAnalystId":    0,
		"primaryAnalyst":      "string",
		"secondaryAnalystId":  0,
		"secondaryAnalyst":    "string",
		"sectorId":            0,
		"sector":              "string",
		"subSectorId":         0,
		"subSector":           "string",
		"accountTypeId":       0,
		"primaryBM":           "string",
		"secondaryBM":         "string",
		"modifiedBy":          0,
		"managerContactId":    0,
		"managerContact":      "string",
		"returnsList": []map[string]any{{
			"dateType":     "string",
			"returnAmount": 0,
			"returnDate":   ts,
			"returnFreq":   1,
			"isFinal":      "true",
			"roR":          0,
			"roRNullable":  0,
			"entityName":   "string",
			"reportDate":   ts,
			"date":         ts,
			"entityId":     0,
		}},
		"assetsList": []map[string]any{{
			"assetType":     "string",
			"assetValue":    0,
			"assetId":       0,
			"assetName":     str(merged["full_name"]),
			"accountTypeId": 0,
			"isMarketable":  "true",
		}},
		"portfolioHoldings": []map[string]any{{
			"familyName":      "string",
			"basketId":        0,
			"basketName":      "string",
			"investmentValue": 0,
		}},
		"transactionList": []map[string]any{{
			"transTypeId": 0,
			"transName":   "string",
			"transDate":   ts,
			"transValue":  0,
		}},
		"rptDate":          ts,
		"ytdTWR":           0,
		"oneYrTWR":         0,
		"threeYrTWR":       0,
		"fiveYrTWR":        0,
		"itdtwr":           0,
		"itdStdDev":        0,
		"iddRating":        "string",
		"iddRatingValue":   0,
		"iddDate":          ts,
		"IsActive":         1,
		"oddRating":        "string",
		"oddRatingValue":   0,
		"oddDate":          ts,
		"isClientSpecific": "true",
	}
}

// NormalizedShareClass is a share class with its fee strings parsed.
type NormalizedShareClass struct {
	Name              string
	ManagementFee     float64
	PerformanceFee    float64
	HurdleValue       float64
	MinimumInvestment int
}

// NormalizeShareClasses parses each class's raw fee strings. Malformed values
// are flagged per field and left at zero.
func NormalizeShareClasses(set extract.ShareClassSet) ([]NormalizedShareClass, []FieldError) {
	n := &normalizer{}
	out := make([]NormalizedShareClass, len(set.Classes))
	for i, c := range set.Classes {
		prefix := fmt.Sprintf("classes[%d].", i)
		out[i] = NormalizedShareClass{
			Name:              c.Name,
			ManagementFee:     n.percent(prefix+"management_fee", c.ManagementFee),
			PerformanceFee:    n.percent(prefix+"performance_fee", c.PerformanceFee),
			HurdleValue:       n.percent(prefix+"hurdle_value", c.HurdleValue),
			MinimumInvestment: n.currency(prefix+"minimum_investment", c.MinimumInvestment),
		}
	}
	return out, n.flags
}

// ShareClassPayloads builds one full submission payload per class. The first
// class in extraction order is the default; inception and effective dates are
// the staging time. assetId stays zero until submission patches it. Fees go
// out as strings per the API contract.
func ShareClassPayloads(classes []NormalizedShareClass, now time.Time) []map[string]any {
	ts := now.UTC().Format(time.RFC3339)
	out := make([]map[string]any, len(classes))
	for i, c := range classes {
		out[i] = map[string]any{
			"shareClassId":               0,
			"shareClassName":             c.Name,
			"assetId":                    0,
			"portfolioId":                nil,
			"isDefault":                  i == 0,
			"inceptionDate":              ts,
			"effectiveDate":              ts,
			"minInvestment":              c.MinimumInvestment,
			"subscriptionFrequencyId":    nil,
			"subscriptionCurrencyIdList": "",
			"taxReportingId":             nil,
			"votingShares":               false,
			"newIssues":                  false,
			"trackingFrequencyId":        nil,
			"trackingById":               nil,
			"accredited":                 false,
			"qualifiedPurchaser":         false,
			"qualifiedClient":            false,
			"initialNAV":                 nil,
			"businessDays":               false,
			"modifiedBy":                 0,
			"liquidityTermsAbrev":        nil,
			"feeDetails": map[string]any{
				"shareClassId":              0,
				"mgmtFeeTierId":             0,
				"mgmtFeeTierDesc":           nil,
				"mgmtFee":                   strconv.FormatFloat(c.ManagementFee, 'f', -1, 64),
				"mgmtFeeFrequencyId":        nil,
				"isMgmtFeeFreqPassThrough":  false,
				"perfFeeTierId":             0,
				"perfFeeTierDesc":           nil,
				"perfFee":                   strconv.FormatFloat(c.PerformanceFee, 'f', -1, 64),
				"perfFeePaymentFrequencyId": nil,
				"perfFeeAccrualFrequencyId": nil,
				"hurdleRateId":              nil,
				"hurdleValue":               strconv.FormatFloat(c.HurdleValue, 'f', -1, 64),
				"hurdleRateBenchMarkId":     0,
				"lossRecovery":              false,
				"lossRecoveryResetId":       nil,
				"modifiedBy":                0,
			},
		}
	}
	return out
}

// LiquidityPayload pairs a liquidity-terms payload with the share-class name
// it belongs to. The name is kept beside the payload because shareClassid
// cannot be resolved until the share class exists; submission matches by
// name.
type LiquidityPayload struct {
	ClassName string         `json:"class_name"`
	Payload   map[string]any `json:"payload"`
}

// LiquidityPayloads resolves each class's five enumeration fields and builds
// the submission payload. A resolution miss produces a nil id in the payload,
// surfaced to the reviewer rather than fabricated.
func LiquidityPayloads(set extract.LiquiditySet, snap *refdata.Snapshot) ([]LiquidityPayload, []FieldError) {
	n := &normalizer{}
	out := make([]LiquidityPayload, len(set.Classes))
	for i, c := range set.Classes {
		gatePercent := n.percent(fmt.Sprintf("classes[%d].investor_gate_percent", i), c.InvestorGatePercent)

		out[i] = LiquidityPayload{
			ClassName: c.Name,
			Payload: map[string]any{
				"redemptionTermsId":               0,
				"shareClassid":                    0,
				"lockType":                        idOrNil(snap.ResolveLockType(c.LockupTypes)),
				"penaltyPercent":                  0,
				"redemptionFeePercent":            0,
				"rollingLockup":                   false,
				"anniversary":                     false,
				"redemptionFrequencyId":           idOrNil(snap.ResolveRedemptionFrequency(c.RedemptionFrequency)),
				"lockupFrequencyId":               idOrNil(snap.ResolveLockupFrequency(c.LockupFrequency)),
				"lockupStart":                     0,
				"lockupEnd":                       0,
				"requiredNoticeFrequencyId":       idOrNil(snap.ResolveNoticeFrequency(c.NoticeFrequency)),
				"requiredNotice":                  c.RequiredNotice,
				"firstRedemptionMonth":            3,
				"investorGateFrequencyId":         idOrNil(snap.ResolveInvestorGateFrequency(c.InvestorGateFrequency)),
				"investorGatePercent":             gatePercent,
				"investorGateCapResetFrequencyId": 0,
				"investorGateMaxCapPercent":       0,
				"investorGateUseNav":              false,
				"assetGateFrequencyId":            0,
				"assetGatePercent":                0,
				"notes":                           "string",
				"modifiedBy":                      0,
			},
		}
	}
	return out, n.flags
}

// ReturnsPayloads maps each time-series record onto the valuation base
// template. entityId stays zero until submission patches it; entityTypeId
// and frequencyId are constants of the valuation endpoint.
func ReturnsPayloads(set extract.ReturnsSet, now time.Time) []map[string]any {
	ts := now.UTC().Format(time.RFC3339)
	out := make([]map[string]any, len(set.Records))
	for i, rec := range set.Records {
		out[i] = map[string]any{
			"rorValuationId": 0,
			"navValuationId": 0,
			"entityTypeId":   1,
			"entityId":       0,
			"entityName":     "string",
			"frequencyId":    3,
			"valuationDate":  rec.ValuationDate,
			"rorValue":       rec.RorValue,
			"navValue":       0,
			"estimateActual": "string",
			"modifiedBy":     0,
			"modifiedByName": "string",
			"modifiedDate":   ts,
			"entityMasterId": 0,
		}
	}
	return out
}

// ProviderPayload is one confirmed service provider resolved against the
// company directory. The URL carries a placeholder AssetId filled at
// submission.
type ProviderPayload struct {
	CompanyType   string `json:"company_type"`
	CompanyID     int    `json:"company_id"`
	CompanyTypeID int    `json:"company_type_id"`
	URL           string `json:"url"`
}

// ProviderURL builds the service-provider endpoint for the given ids.
func ProviderURL(companyID, companyTypeID, assetID int) string {
	return fmt.Sprintf("/Assets/InsertUpdateServiceProvider?assetCompanyXRefId=0&CompanyId=%d&CompanyTypeId=%d&AssetId=%d",
		companyID, companyTypeID, assetID)
}

func idString(v any) string {
	if id, ok := v.(*int); ok && id != nil {
		return strconv.Itoa(*id)
	}
	return "0"
}

func idOrNil(id *int) any {
	if id == nil {
		return nil
	}
	return *id
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
