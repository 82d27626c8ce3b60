package validation

import (
	"testing"

	"github.com/diewo77/docbatch/internal/format"
)

func TestKey(t *testing.T) {
	valid := []string{"pan", "gst_no", "a1", "registration_number"}
	invalid := []string{"", "PAN", "gst-no", "tax id", "clé"}
	for _, k := range valid {
		if !IsKey(k) {
			t.Errorf("IsKey(%q) = false, want true", k)
		}
	}
	for _, k := range invalid {
		v := Violations{}
		Key("key", k, v)
		if v["key"] != "invalid_key" {
			t.Errorf("Key(%q) did not flag", k)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		dt    format.DataType
		value string
		want  bool
	}{
		{format.Number, "12.5", true},
		{format.Number, "-3", true},
		{format.Number, "twelve", false},
		{format.Currency, "1e3", true},
		{format.Date, "2024-01-31", true},
		{format.Date, "31-01-2024", true},
		{format.Date, "2024-13-01", false},
		{format.Text, "anything", true},
	}
	for _, tt := range tests {
		if got := Matches(tt.dt, tt.value); got != tt.want {
			t.Errorf("Matches(%s, %q) = %v, want %v", tt.dt, tt.value, got, tt.want)
		}
	}
}

func TestViolations(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	Key("key", "Tax-Id", v)
	if v.Empty() {
		t.Fatal("expected violations")
	}
	fields := v.Fields()
	if len(fields) != 2 || fields[0] != "key" || fields[1] != "name" {
		t.Errorf("Fields() = %v", fields)
	}
	if v["key"] != "invalid_key" {
		t.Errorf("key = %q", v["key"])
	}
}
