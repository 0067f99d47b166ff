package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// FieldError flags a field whose raw extracted text could not be normalized.
// Flagged fields keep their zero value in the payload and the flag travels in
// the staged unit's source details for the reviewer; normalization never
// aborts a batch.
type FieldError struct {
	Field string `json:"field"`
	Raw   string `json:"raw"`
	Cause string `json:"cause"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("pipeline: field %s: cannot normalize %q: %s", e.Field, e.Raw, e.Cause)
}

// Percent parses an extracted percentage string. Only the text before the
// first '%' counts, so trailing conditions ("15% (subject to conditions)")
// are dropped; "9.5%" yields 9.5.
func Percent(raw string) (float64, error) {
	s := raw
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a percentage: %q", raw)
	}
	return v, nil
}

// Currency parses an extracted currency amount: the leading symbol and
// thousands separators are stripped, the remainder must be an integer.
// "$5,000,000" yields 5000000, "£3,000" yields 3000.
func Currency(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '-'
	})
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a currency amount: %q", raw)
	}
	return v, nil
}

// normalizer accumulates field flags across one batch.
type normalizer struct {
	flags []FieldError
}

func (n *normalizer) percent(field, raw string) float64 {
	v, err := Percent(raw)
	if err != nil {
		n.flags = append(n.flags, FieldError{Field: field, Raw: raw, Cause: err.Error()})
		return 0
	}
	return v
}

func (n *normalizer) currency(field, raw string) int {
	v, err := Currency(raw)
	if err != nil {
		n.flags = append(n.flags, FieldError{Field: field, Raw: raw, Cause: err.Error()})
		return 0
	}
	return v
}
