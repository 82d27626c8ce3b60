package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Named output layouts accepted in Rule.DateFormat.
const (
	LayoutDMY = "DD-MM-YYYY"
	LayoutMDY = "MM-DD-YYYY"
	LayoutYMD = "YYYY-MM-DD"

	DefaultDateLayout = LayoutDMY
)

var namedLayouts = map[string]string{
	LayoutDMY: "02-01-2006",
	LayoutMDY: "01-02-2006",
	LayoutYMD: "2006-01-02",
}

// ISO forms are tried first, then the named layouts in day-first order.
var inputLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02-01-2006",
	"01-02-2006",
}

// GoLayout maps a named layout to its time layout. Unknown names fall back
// to the default layout.
func GoLayout(name string) string {
	if l, ok := namedLayouts[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return l
	}
	return namedLayouts[DefaultDateLayout]
}

// ParseDate parses s as a calendar date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateLayout parses s using one of the named layouts.
func ParseDateLayout(s, name string) (time.Time, error) {
	layout, ok := namedLayouts[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown date layout %q", name)
	}
	return time.Parse(layout, strings.TrimSpace(s))
}

// ParseNumber parses s as a decimal number.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
