package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"120.00", "120", false},
		{"$1,234.50", "1234.5", false},
		{"-54.10", "-54.1", false},
		{" 0.123456789 ", "0.123456789", false},
		{"abc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err == nil && got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", "$0.00"},
		{"120", "$120.00"},
		{"1234.5", "$1,234.50"},
		{"-1234567.891", "-$1,234,567.89"},
		{"-0.004", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			if got := FormatAmount(d, "$"); got != tt.want {
				t.Errorf("FormatAmount(%s) = %q, want %q", tt.amount, got, tt.want)
			}
		})
	}
}
