package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DataType is the declared type of a field or attribute.
type DataType string

const (
	Text     DataType = "text"
	Number   DataType = "number"
	Date     DataType = "date"
	Currency DataType = "currency"
)

// ParseDataType validates s. An empty string defaults to Text.
func ParseDataType(s string) (DataType, error) {
	switch dt := DataType(strings.ToLower(strings.TrimSpace(s))); dt {
	case "":
		return Text, nil
	case Text, Number, Date, Currency:
		return dt, nil
	default:
		return "", fmt.Errorf("unsupported data type %q", s)
	}
}

// Numeric reports whether values of this type are parsed as numbers.
func (d DataType) Numeric() bool { return d == Number || d == Currency }

// Case transforms applied to text values.
const (
	CaseUpper = "uppercase"
	CaseLower = "lowercase"
)

// Rule holds the per-field formatting options stored as JSON on a field
// definition.
type Rule struct {
	DateFormat     string `json:"dateFormat,omitempty"`
	Decimals       *int   `json:"decimals,omitempty"`
	CurrencySymbol string `json:"currencySymbol,omitempty"`
	Case           string `json:"case,omitempty"`
	Prefix         string `json:"prefix,omitempty"`
	Suffix         string `json:"suffix,omitempty"`
}

// DecodeRule parses a stored rule. Blank input and JSON null yield a nil rule
// and no error. Callers treat a decode error as "no rule".
func DecodeRule(raw string) (*Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var r Rule
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode format rule: %w", err)
	}
	return &r, nil
}

// Int is a small helper for building rules with a decimals value.
func Int(n int) *int { return &n }
