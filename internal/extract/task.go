package extract

import (
	"fmt"
	"strings"
)

// Pass is one retrieval-plus-reasoning step of a task. Later passes of the
// same task receive the earlier passes' merged output as extra context and
// may overwrite fields.
type Pass struct {
	Instructions string
	Queries      []string
	Schema       string
	UseMMR       bool
}

// Task describes one unit of structured extraction: an ordered sequence of
// passes producing a single schema-shaped record.
type Task struct {
	Name   string
	Passes []Pass
}

// IdentityTask extracts the fund's name and abbreviation, then its inception
// date as a second pass with the names as context.
func IdentityTask() Task {
	return Task{
		Name: "fund_identity",
		Passes: []Pass{
			{
				Instructions: "Identify the fund's official full legal name and its short-form abbreviation from the document excerpts. Use the exact spelling from the documents.",
				Queries: []string{
					"official full name of the fund",
					"fund name abbreviation short form",
				},
				Schema: `{"full_name": "Official full name of the fund", "abbreviation": "Short form abbreviation of the fund name", "date_of_inception": "leave as 'not found'"}`,
			},
			{
				Instructions: "Given the fund identified earlier, find its inception date. Respond with the date in YYYY-MM-DD format, or 'not found' if the documents do not state it. Keep the other fields unchanged.",
				Queries: []string{
					"fund inception date commencement of operations",
					"date the fund was launched",
				},
				Schema: `{"full_name": "unchanged", "abbreviation": "unchanged", "date_of_inception": "Fund inception date in YYYY-MM-DD format or 'not found'"}`,
			},
		},
	}
}

// ClassificationTask extracts the security type and strategy, each
// constrained to a caller-supplied allowed list: two independent
// classification passes and a cross-check pass over both answers.
func ClassificationTask(securityTypes, strategies []string) Task {
	return Task{
		Name: "classification",
		Passes: []Pass{
			{
				Instructions: fmt.Sprintf(
					"Classify the fund's security type. Choose exactly one value from this list, or 'N/A' if none applies: %s. Copy the value verbatim, including case.",
					strings.Join(securityTypes, "; ")),
				Queries: []string{
					"type of investment vehicle security structure",
					"fund structure hedge fund private equity",
				},
				Schema: `{"security_type": "Matched security type from predefined list or N/A", "strategy_value": "leave as 'N/A'"}`,
				UseMMR: true,
			},
			{
				Instructions: fmt.Sprintf(
					"Classify the fund's investment strategy. Choose exactly one value from this list, or 'N/A' if none applies: %s. Copy the value verbatim, including case.",
					strings.Join(strategies, "; ")),
				Queries: []string{
					"investment strategy approach of the fund",
					"strategy long short equity credit macro",
				},
				Schema: `{"security_type": "unchanged", "strategy_value": "Matched strategy value from predefined list or N/A"}`,
				UseMMR: true,
			},
			{
				Instructions: "Review the security type and strategy chosen earlier against the excerpts. If either is inconsistent with the documents, correct it using only values from the lists given before; otherwise confirm the existing values.",
				Queries: []string{
					"fund strategy and structure summary",
				},
				Schema: `{"security_type": "confirmed or corrected", "strategy_value": "confirmed or corrected"}`,
			},
		},
	}
}

// ShareClassTask extracts every share class with its raw fee strings.
func ShareClassTask() Task {
	return Task{
		Name: "share_classes",
		Passes: []Pass{
			{
				Instructions: "List every share class the fund offers with its fee terms. Keep fee values exactly as written in the documents, including '%' signs and currency symbols. Use 'not found' for any term the documents do not state.",
				Queries: []string{
					"share classes offered by the fund",
					"management fee performance fee per share class",
					"minimum investment amount per class",
					"hurdle rate high water mark",
				},
				Schema: `{"classes": [{"name": "Official class name", "management_fee": "Management fee percentage", "performance_fee": "Performance fee percentage without conditions", "hurdle_value": "Hurdle value percentage if specified", "minimum_investment": "Minimum investment amount"}]}`,
			},
		},
	}
}

// LiquidityTask extracts per-class liquidity terms with per-field provenance.
// Frequency and lock-type fields are constrained to the supplied allowed
// lists.
func LiquidityTask(lockTypes, noticeFreqs, lockupFreqs, redemptionFreqs, gateFreqs []string) Task {
	return Task{
		Name: "liquidity_terms",
		Passes: []Pass{
			{
				Instructions: strings.Join([]string{
					"Extract the liquidity and redemption terms for every share class.",
					"For each *_source_file and *_source_page_label field, record the source tag of the excerpt the value came from.",
					fmt.Sprintf("lockup_types must be one of: %s.", strings.Join(lockTypes, "; ")),
					fmt.Sprintf("notice_frequency must be one of: %s.", strings.Join(noticeFreqs, "; ")),
					fmt.Sprintf("lockup_frequency must be one of: %s.", strings.Join(lockupFreqs, "; ")),
					fmt.Sprintf("redemption_frequency must be one of: %s.", strings.Join(redemptionFreqs, "; ")),
					fmt.Sprintf("investor_gate_frequency must be one of: %s.", strings.Join(gateFreqs, "; ")),
					"Copy allowed values verbatim, including case. Use 'not found' where the documents are silent.",
				}, " "),
				Queries: []string{
					"redemption terms notice period per share class",
					"lockup period hard lock soft lock",
					"investor gate percentage redemption restrictions",
				},
				Schema: `{"classes": [{"name": "...", "name_source_file": "...", "name_source_page_label": 0, "required_notice": 0, "required_notice_source_file": "...", "required_notice_source_page_label": 0, "notice_frequency": "...", "notice_frequency_source_file": "...", "notice_frequency_source_page_label": 0, "redemption_frequency": "...", "redemption_frequency_source_file": "...", "redemption_frequency_source_page_label": 0, "lockup_types": "...", "lockup_types_source_file": "...", "lockup_types_source_page_label": 0, "lockup_frequency": "...", "lockup_frequency_source_file": "...", "lockup_frequency_source_page_label": 0, "investor_gate_percent": "...", "investor_gate_percent_source_file": "...", "investor_gate_percent_source_page_label": 0, "investor_gate_frequency": "...", "investor_gate_frequency_source_file": "...", "investor_gate_frequency_source_page_label": 0}]}`,
			},
		},
	}
}

// ReturnsTask extracts the historical returns time series.
func ReturnsTask() Task {
	return Task{
		Name: "returns",
		Passes: []Pass{
			{
				Instructions: "Extract the fund's historical monthly returns. Each record needs a valuationDate formatted exactly as YYYY-MM-DDT00:00:00Z and a rorValue between -100 and 100. Skip values the documents do not state; never invent data points.",
				Queries: []string{
					"monthly returns performance history",
					"net return percentage by month",
					"historical performance table",
				},
				Schema: `{"records": [{"valuationDate": "YYYY-MM-DDT00:00:00Z", "rorValue": 0.0}]}`,
			},
		},
	}
}

// ProvidersTask extracts confirmed service providers per company type.
func ProvidersTask(companyTypes []string) Task {
	var sb strings.Builder
	sb.WriteString("{")
	for i, ct := range companyTypes {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: [\"confirmed company names\"]", ct)
	}
	sb.WriteString("}")

	return Task{
		Name: "service_providers",
		Passes: []Pass{
			{
				Instructions: fmt.Sprintf(
					"For each of these service-provider categories, list the companies the documents explicitly name in that role: %s. Use the company names exactly as written. A category with no named provider gets an empty list.",
					strings.Join(companyTypes, "; ")),
				Queries: []string{
					"administrator auditor custodian prime broker",
					"legal counsel service providers of the fund",
				},
				Schema: sb.String(),
			},
		},
	}
}
