// Package format turns raw field values into the strings written into
// templates, following the data type and the optional rule of each field.
package format

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Format renders raw for display. A nil rule returns the raw value as a
// string with no further processing. Invalid dates and numbers pass through
// unchanged. Prefix and suffix are applied last, also around empty values.
func Format(raw any, dt DataType, rule *Rule) string {
	if rule == nil {
		return Stringify(raw)
	}
	var body string
	if raw != nil {
		switch dt {
		case Date:
			body = formatDate(raw, rule)
		case Number, Currency:
			body = formatNumber(raw, rule)
		default:
			body = applyCase(Stringify(raw), rule.Case)
		}
	}
	return rule.Prefix + body + rule.Suffix
}

// Stringify converts a raw value to its plain string form. nil is "".
func Stringify(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case decimal.Decimal:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatDate(raw any, rule *Rule) string {
	t, ok := raw.(time.Time)
	if !ok {
		s := Stringify(raw)
		if t, ok = ParseDate(s); !ok {
			return s
		}
	}
	return t.Format(GoLayout(rule.DateFormat))
}

func formatNumber(raw any, rule *Rule) string {
	var d decimal.Decimal
	switch v := raw.(type) {
	case decimal.Decimal:
		d = v
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	default:
		s := Stringify(raw)
		parsed, ok := ParseNumber(s)
		if !ok {
			return s
		}
		d = parsed
	}
	return rule.CurrencySymbol + d.StringFixed(int32(places(d, rule.Decimals)))
}

// MaxDecimals caps the decimal places a rule may ask for.
const MaxDecimals = 20

// places returns the requested decimal count, defaulting to the precision
// the value was written with. The result is within [0, MaxDecimals].
func places(d decimal.Decimal, requested *int) int {
	if requested != nil {
		return min(max(*requested, 0), MaxDecimals)
	}
	if exp := d.Exponent(); exp < 0 {
		return min(int(-exp), MaxDecimals)
	}
	return 0
}

func applyCase(s, mode string) string {
	switch mode {
	case CaseUpper:
		return cases.Upper(language.Und).String(s)
	case CaseLower:
		return cases.Lower(language.Und).String(s)
	}
	return s
}
