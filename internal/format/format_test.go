package format

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_NoRulePassesThrough(t *testing.T) {
	assert.Equal(t, "2024-03-05", Format("2024-03-05", Date, nil))
	assert.Equal(t, "1234.5", Format(1234.5, Number, nil))
	assert.Equal(t, "", Format(nil, Text, nil))
}

func TestFormat_NilValueStillWrapped(t *testing.T) {
	rule := &Rule{Prefix: "[", Suffix: "]"}
	assert.Equal(t, "[]", Format(nil, Number, rule))
}

func TestFormat_Dates(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		rule *Rule
		want string
	}{
		{"default layout", "2024-03-05", &Rule{}, "05-03-2024"},
		{"iso out", "05-03-2024", &Rule{DateFormat: LayoutYMD}, "2024-03-05"},
		{"month first", "2024-03-05", &Rule{DateFormat: LayoutMDY}, "03-05-2024"},
		{"rfc3339 in", "2024-03-05T10:00:00Z", &Rule{DateFormat: LayoutDMY}, "05-03-2024"},
		{"time value", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), &Rule{DateFormat: LayoutYMD}, "2023-12-31"},
		{"invalid passes", "not a date", &Rule{DateFormat: LayoutYMD}, "not a date"},
		{"impossible date passes", "2024-02-30", &Rule{}, "2024-02-30"},
		{"wrapped", "2024-03-05", &Rule{Prefix: "Date: ", Suffix: "."}, "Date: 05-03-2024."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.raw, Date, tt.rule))
		})
	}
}

func TestFormat_DateRoundTrip(t *testing.T) {
	samples := map[string][]string{
		LayoutDMY: {"01-01-2000", "29-02-2024", "31-12-1999"},
		LayoutMDY: {"01-31-2021", "02-29-2024", "12-01-1990"},
		LayoutYMD: {"2024-02-29", "1970-01-01", "2030-07-15"},
	}
	for layout, dates := range samples {
		for _, s := range dates {
			parsed, err := ParseDateLayout(s, layout)
			require.NoError(t, err, s)
			assert.Equal(t, s, Format(parsed, Date, &Rule{DateFormat: layout}), "%s with %s", s, layout)
		}
	}
}

func TestFormat_Numbers(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		dt   DataType
		rule *Rule
		want string
	}{
		{"currency two decimals", 1234.5, Number, &Rule{CurrencySymbol: "₹", Decimals: Int(2)}, "₹1234.50"},
		{"string input", "1234.5", Currency, &Rule{CurrencySymbol: "$", Decimals: Int(2)}, "$1234.50"},
		{"rounds", "2.345", Number, &Rule{Decimals: Int(2)}, "2.35"},
		{"zero decimals", "10.6", Number, &Rule{Decimals: Int(0)}, "11"},
		{"source precision", "12.500", Number, &Rule{}, "12.500"},
		{"integer precision", "42", Number, &Rule{}, "42"},
		{"invalid passes", "abc", Number, &Rule{Decimals: Int(2), CurrencySymbol: "$"}, "abc"},
		{"suffix after symbol", "5", Number, &Rule{CurrencySymbol: "€", Suffix: " only"}, "€5 only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.raw, tt.dt, tt.rule))
		})
	}
}

func TestFormat_DecimalsAreCapped(t *testing.T) {
	rule, err := DecodeRule(`{"decimals":4294967298}`)
	require.NoError(t, err)
	got := Format("1.5", Number, rule)
	assert.Equal(t, "1.5"+strings.Repeat("0", MaxDecimals-1), got)

	assert.Equal(t, "2", Format("1.5", Number, &Rule{Decimals: Int(-3)}))
}

func TestFormat_TextCase(t *testing.T) {
	assert.Equal(t, "ACME LTD", Format("Acme Ltd", Text, &Rule{Case: CaseUpper}))
	assert.Equal(t, "acme ltd", Format("Acme Ltd", Text, &Rule{Case: CaseLower}))
	assert.Equal(t, "Name: ACME", Format("acme", Text, &Rule{Case: CaseUpper, Prefix: "Name: "}))
	assert.Equal(t, "Acme", Format("Acme", Text, &Rule{Case: "title"}))
}

func TestDecodeRule(t *testing.T) {
	r, err := DecodeRule(`{"currencySymbol":"₹","decimals":2}`)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "₹", r.CurrencySymbol)
	assert.Equal(t, 2, *r.Decimals)

	r, err = DecodeRule("  ")
	assert.NoError(t, err)
	assert.Nil(t, r)

	r, err = DecodeRule("{decimals: 2")
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("")
	require.NoError(t, err)
	assert.Equal(t, Text, dt)

	dt, err = ParseDataType("Currency")
	require.NoError(t, err)
	assert.Equal(t, Currency, dt)

	_, err = ParseDataType("blob")
	assert.Error(t, err)
}
