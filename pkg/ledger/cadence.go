package ledger

import (
	"fmt"
	"time"
)

// Frequency names a recurrence cadence.
type Frequency string

const (
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// Cadence is the tagged union of recurrence rules. Exactly one variant's
// fields are populated; the storage layer keeps the other variant's columns
// NULL. Construct through Monthly or Yearly so Validate holds by
// construction, and re-check with Validate at the storage boundary.
type Cadence struct {
	Frequency Frequency
	DueDay    int        // monthly: 1..31, clamped to month length at generation
	DueMonth  time.Month // yearly: 1..12
	DueDOM    int        // yearly: 1..31, clamped per year
}

// Monthly builds a monthly cadence due on day of month.
func Monthly(day int) Cadence {
	return Cadence{Frequency: FreqMonthly, DueDay: day}
}

// Yearly builds a yearly cadence due on (month, day).
func Yearly(month time.Month, day int) Cadence {
	return Cadence{Frequency: FreqYearly, DueMonth: month, DueDOM: day}
}

// Validate enforces the mutual-exclusivity invariant: a monthly cadence
// carries due_day only, a yearly cadence carries due_month+due_dom only.
func (c Cadence) Validate() error {
	switch c.Frequency {
	case FreqMonthly:
		if c.DueDay < 1 || c.DueDay > 31 {
			return &ValidationError{Field: "due_day", Reason: fmt.Sprintf("must be 1..31, got %d", c.DueDay)}
		}
		if c.DueMonth != 0 || c.DueDOM != 0 {
			return &ValidationError{Field: "cadence", Reason: "monthly cadence must not carry due_month/due_dom"}
		}
	case FreqYearly:
		if c.DueMonth < time.January || c.DueMonth > time.December {
			return &ValidationError{Field: "due_month", Reason: fmt.Sprintf("must be 1..12, got %d", int(c.DueMonth))}
		}
		if c.DueDOM < 1 || c.DueDOM > 31 {
			return &ValidationError{Field: "due_dom", Reason: fmt.Sprintf("must be 1..31, got %d", c.DueDOM)}
		}
		if c.DueDay != 0 {
			return &ValidationError{Field: "cadence", Reason: "yearly cadence must not carry due_day"}
		}
	default:
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", c.Frequency)}
	}
	return nil
}
