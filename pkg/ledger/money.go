package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts persist as decimal TEXT at scale up to 9; display rounds to cents.

// ParseAmount parses a decimal amount, tolerating a leading currency symbol
// and digit-group commas.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: fmt.Sprintf("not a decimal: %q", raw)}
	}
	return d, nil
}

// FormatAmount renders an amount as e.g. "-$1,234.50" using the given
// currency symbol.
func FormatAmount(v decimal.Decimal, symbol string) string {
	q := v.Round(2)
	s := q.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	sign := ""
	if q.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("%s%s%s.%s", sign, symbol, b.String(), frac)
}
