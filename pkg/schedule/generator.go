// Package schedule turns a bill's abstract recurrence rule into concrete,
// idempotent payment occurrences over a requested horizon, and projects the
// biweekly pay window used for upcoming-bill views.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/ledger"
)

// Date normalizes a timestamp to a calendar date (UTC midnight). All due
// date arithmetic in this package operates on normalized dates.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize truncates t to its calendar date in UTC.
func Normalize(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// lastDayOfMonth returns the number of days in (year, month).
func lastDayOfMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampDay resolves "day 31 in a 30-day month" and "Feb 30" by clamping to
// the month's length instead of erroring.
func clampDay(year int, month time.Month, day int) time.Time {
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return Date(year, month, day)
}

// DueDates expands a cadence into every due date inside [start, end], both
// ends inclusive. The expansion is deterministic: equal inputs always yield
// the same dates in ascending order.
func DueDates(c ledger.Cadence, start, end time.Time) ([]time.Time, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	start, end = Normalize(start), Normalize(end)
	if end.Before(start) {
		return nil, &ledger.ValidationError{Field: "horizon", Reason: "end precedes start"}
	}

	var due []time.Time
	switch c.Frequency {
	case ledger.FreqMonthly:
		y, m := start.Year(), start.Month()
		for {
			cur := Date(y, m, 1)
			if cur.After(end) {
				break
			}
			d := clampDay(y, m, c.DueDay)
			if !d.Before(start) && !d.After(end) {
				due = append(due, d)
			}
			y, m = nextMonth(y, m)
		}
	case ledger.FreqYearly:
		for y := start.Year(); y <= end.Year(); y++ {
			d := clampDay(y, c.DueMonth, c.DueDOM)
			if !d.Before(start) && !d.After(end) {
				due = append(due, d)
			}
		}
	}
	return due, nil
}

// NextDue returns the first due date on or after from.
func NextDue(c ledger.Cadence, from time.Time) (time.Time, error) {
	if err := c.Validate(); err != nil {
		return time.Time{}, err
	}
	from = Normalize(from)

	switch c.Frequency {
	case ledger.FreqMonthly:
		this := clampDay(from.Year(), from.Month(), c.DueDay)
		if !this.Before(from) {
			return this, nil
		}
		y, m := nextMonth(from.Year(), from.Month())
		return clampDay(y, m, c.DueDay), nil
	default: // yearly
		this := clampDay(from.Year(), c.DueMonth, c.DueDOM)
		if !this.Before(from) {
			return this, nil
		}
		return clampDay(from.Year()+1, c.DueMonth, c.DueDOM), nil
	}
}

func nextMonth(y int, m time.Month) (int, time.Month) {
	if m == time.December {
		return y + 1, time.January
	}
	return y, m + 1
}

// OccurrenceStore is the storage surface the generator needs. InsertIfAbsent
// is a compare-and-insert against the (bill_id, due_date) natural key: it
// reports false, nil when the row already existed and must never modify an
// existing row. DeleteFutureUnpaid removes occurrences strictly after the
// given date that are unpaid and not ignored.
type OccurrenceStore interface {
	InsertIfAbsent(ctx context.Context, billID int64, dueDate time.Time, amount decimal.Decimal) (bool, error)
	DeleteFutureUnpaid(ctx context.Context, billID int64, after time.Time) (int, error)
}

// Generator materializes payment occurrences for bills.
type Generator struct {
	store OccurrenceStore
}

// NewGenerator creates a Generator backed by the given store.
func NewGenerator(store OccurrenceStore) *Generator {
	return &Generator{store: store}
}

// Materialize inserts one occurrence per due date of the bill inside
// [start, end], skipping dates that already have a row. Existing rows,
// including paid and ignored ones, are left untouched; the amount snapshot
// is taken from the bill at this call and never overwritten later.
//
// Safe under at-least-once retry and concurrent calls for the same bill:
// the (bill_id, due_date) uniqueness constraint makes duplicates a no-op.
func (g *Generator) Materialize(ctx context.Context, bill ledger.Bill, start, end time.Time) (int, error) {
	// Construction validates cadence; re-check defensively before writing.
	if err := bill.Cadence.Validate(); err != nil {
		return 0, err
	}
	if !bill.Active {
		return 0, nil
	}

	dates, err := DueDates(bill.Cadence, start, end)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, d := range dates {
		ok, err := g.store.InsertIfAbsent(ctx, bill.ID, d, bill.AmountDue)
		if err != nil {
			return inserted, fmt.Errorf("failed to materialize occurrence for bill %d on %s: %w",
				bill.ID, d.Format("2006-01-02"), err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

// Regenerate refreshes a bill's future occurrences after its cadence fields
// changed: occurrences with due_date > now that are unpaid and not ignored
// are deleted, then the horizon is materialized under the new cadence. Paid
// history is immutable and is never touched.
func (g *Generator) Regenerate(ctx context.Context, bill ledger.Bill, now, start, end time.Time) (int, error) {
	if err := bill.Cadence.Validate(); err != nil {
		return 0, err
	}
	if _, err := g.store.DeleteFutureUnpaid(ctx, bill.ID, Normalize(now)); err != nil {
		return 0, fmt.Errorf("failed to clear future occurrences for bill %d: %w", bill.ID, err)
	}
	return g.Materialize(ctx, bill, start, end)
}
