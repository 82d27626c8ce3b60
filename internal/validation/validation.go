// Package validation holds small field validators shared by the services.
package validation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/diewo77/docbatch/internal/format"
)

// Violations maps a field name to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Fields returns the violated field names in sorted order.
func (v Violations) Fields() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Key checks a machine key: lowercase letters, digits and underscores.
func Key(field, value string, v Violations) {
	if !IsKey(value) {
		v[field] = "invalid_key"
	}
}

// IsKey reports whether value is a valid machine key.
func IsKey(value string) bool { return keyPattern.MatchString(value) }

// Matches reports whether value parses as dt. Text accepts anything.
func Matches(dt format.DataType, value string) bool {
	switch dt {
	case format.Number, format.Currency:
		_, ok := format.ParseNumber(value)
		return ok
	case format.Date:
		_, ok := format.ParseDate(value)
		return ok
	}
	return true
}
