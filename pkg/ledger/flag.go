package ledger

import (
	"fmt"
	"strings"
)

// Legacy schema rows encode booleans as the 3-character strings 'YES'/'NO'.
// New columns are true booleans. The store boundary accepts either form and
// the core only ever sees bool.

// ParseFlag normalizes a persisted flag value to a bool. Accepted: 'YES',
// 'NO' (any case), '1', '0', 'true', 'false', and the empty string (false).
func ParseFlag(raw string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "YES", "1", "TRUE":
		return true, nil
	case "NO", "0", "FALSE", "":
		return false, nil
	}
	return false, &ValidationError{Field: "flag", Reason: fmt.Sprintf("unrecognized boolean representation %q", raw)}
}

// FormatFlag renders a bool in the legacy 'YES'/'NO' representation for
// columns that still use it.
func FormatFlag(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}
