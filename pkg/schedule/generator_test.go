package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/ledger"
)

func dates(days ...string) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, s := range days {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			panic(err)
		}
		out = append(out, t)
	}
	return out
}

func TestDueDatesMonthly(t *testing.T) {
	tests := []struct {
		name       string
		dueDay     int
		start, end string
		want       []string
	}{
		{
			// Day 31 clamps to Apr 30 and Feb 28 in a non-leap year.
			name: "day 31 clamps short months", dueDay: 31,
			start: "2026-01-01", end: "2026-04-30",
			want: []string{"2026-01-31", "2026-02-28", "2026-03-31", "2026-04-30"},
		},
		{
			name: "day 31 clamps to feb 29 in leap year", dueDay: 31,
			start: "2024-02-01", end: "2024-02-29",
			want: []string{"2024-02-29"},
		},
		{
			name: "mid-horizon start excludes earlier due date", dueDay: 10,
			start: "2026-01-15", end: "2026-03-15",
			want: []string{"2026-02-10", "2026-03-10"},
		},
		{
			name: "inclusive horizon ends", dueDay: 15,
			start: "2026-01-15", end: "2026-02-15",
			want: []string{"2026-01-15", "2026-02-15"},
		},
		{
			name: "year boundary", dueDay: 1,
			start: "2025-12-01", end: "2026-01-31",
			want: []string{"2025-12-01", "2026-01-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := dates(tt.start, tt.end)
			got, err := DueDates(ledger.Monthly(tt.dueDay), h[0], h[1])
			if err != nil {
				t.Fatalf("DueDates: %v", err)
			}
			want := dates(tt.want...)
			if len(got) != len(want) {
				t.Fatalf("DueDates returned %d dates, want %d: %v", len(got), len(want), got)
			}
			for i := range want {
				if !got[i].Equal(want[i]) {
					t.Errorf("date[%d] = %s, want %s", i, got[i].Format("2006-01-02"), want[i].Format("2006-01-02"))
				}
			}
		})
	}
}

func TestDueDatesYearly(t *testing.T) {
	// Feb 29 clamps to Feb 28 in non-leap years, stays Feb 29 in leap years.
	c := ledger.Yearly(time.February, 29)
	h := dates("2023-01-01", "2025-12-31")
	got, err := DueDates(c, h[0], h[1])
	if err != nil {
		t.Fatalf("DueDates: %v", err)
	}
	want := dates("2023-02-28", "2024-02-29", "2025-02-28")
	if len(got) != len(want) {
		t.Fatalf("DueDates returned %d dates, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("date[%d] = %s, want %s", i, got[i].Format("2006-01-02"), want[i].Format("2006-01-02"))
		}
	}
}

func TestDueDatesDeterministic(t *testing.T) {
	c := ledger.Monthly(31)
	h := dates("2026-01-01", "2026-12-31")
	a, err := DueDates(c, h[0], h[1])
	if err != nil {
		t.Fatal(err)
	}
	b, err := DueDates(c, h[0], h[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("runs differ: %d vs %d dates", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("run mismatch at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestDueDatesRejectsBadHorizon(t *testing.T) {
	h := dates("2026-02-01", "2026-01-01")
	if _, err := DueDates(ledger.Monthly(1), h[0], h[1]); err == nil {
		t.Error("DueDates should reject end before start")
	}
}

func TestNextDue(t *testing.T) {
	tests := []struct {
		name    string
		cadence ledger.Cadence
		from    string
		want    string
	}{
		{"monthly later this month", ledger.Monthly(20), "2026-08-10", "2026-08-20"},
		{"monthly on the day", ledger.Monthly(10), "2026-08-10", "2026-08-10"},
		{"monthly rolls to next month", ledger.Monthly(5), "2026-08-10", "2026-09-05"},
		{"monthly clamp in next month", ledger.Monthly(31), "2026-02-01", "2026-02-28"},
		{"yearly later this year", ledger.Yearly(time.December, 25), "2026-08-10", "2026-12-25"},
		{"yearly rolls to next year", ledger.Yearly(time.March, 3), "2026-08-10", "2027-03-03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := dates(tt.from)[0]
			got, err := NextDue(tt.cadence, from)
			if err != nil {
				t.Fatalf("NextDue: %v", err)
			}
			if want := dates(tt.want)[0]; !got.Equal(want) {
				t.Errorf("NextDue = %s, want %s", got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

// fakeOccurrenceStore records materialized occurrences in memory, enforcing
// the (bill_id, due_date) natural key the way the SQLite store does.
type fakeOccurrenceStore struct {
	rows map[int64]map[string]decimal.Decimal // bill id -> due date -> amount
}

func newFakeStore() *fakeOccurrenceStore {
	return &fakeOccurrenceStore{rows: make(map[int64]map[string]decimal.Decimal)}
}

func (f *fakeOccurrenceStore) InsertIfAbsent(_ context.Context, billID int64, due time.Time, amount decimal.Decimal) (bool, error) {
	byDate := f.rows[billID]
	if byDate == nil {
		byDate = make(map[string]decimal.Decimal)
		f.rows[billID] = byDate
	}
	k := due.Format("2006-01-02")
	if _, ok := byDate[k]; ok {
		return false, nil
	}
	byDate[k] = amount
	return true, nil
}

func (f *fakeOccurrenceStore) DeleteFutureUnpaid(_ context.Context, billID int64, after time.Time) (int, error) {
	n := 0
	cutoff := after.Format("2006-01-02")
	for k := range f.rows[billID] {
		if k > cutoff {
			delete(f.rows[billID], k)
			n++
		}
	}
	return n, nil
}

func (f *fakeOccurrenceStore) count() int {
	n := 0
	for _, byDate := range f.rows {
		n += len(byDate)
	}
	return n
}

func TestMaterializeIdempotent(t *testing.T) {
	store := newFakeStore()
	gen := NewGenerator(store)
	bill := ledger.Bill{
		ID:        1,
		Payee:     "Electric",
		Cadence:   ledger.Monthly(15),
		AmountDue: decimal.RequireFromString("120.00"),
		Active:    true,
	}
	h := dates("2026-01-01", "2026-06-30")

	n, err := gen.Materialize(context.Background(), bill, h[0], h[1])
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if n != 6 {
		t.Errorf("first run inserted %d, want 6", n)
	}

	// Second run over the same horizon inserts nothing.
	n, err = gen.Materialize(context.Background(), bill, h[0], h[1])
	if err != nil {
		t.Fatalf("Materialize (repeat): %v", err)
	}
	if n != 0 {
		t.Errorf("repeat run inserted %d, want 0", n)
	}
	if store.count() != 6 {
		t.Errorf("store holds %d rows, want 6", store.count())
	}
}

func TestMaterializeSnapshotsAmount(t *testing.T) {
	store := newFakeStore()
	gen := NewGenerator(store)
	bill := ledger.Bill{
		ID:        1,
		Cadence:   ledger.Monthly(1),
		AmountDue: decimal.RequireFromString("50"),
		Active:    true,
	}
	h := dates("2026-01-01", "2026-02-28")

	if _, err := gen.Materialize(context.Background(), bill, h[0], h[1]); err != nil {
		t.Fatal(err)
	}

	// Raising the bill's amount must not rewrite existing snapshots.
	bill.AmountDue = decimal.RequireFromString("75")
	if _, err := gen.Materialize(context.Background(), bill, h[0], h[1]); err != nil {
		t.Fatal(err)
	}
	for k, amount := range store.rows[1] {
		if !amount.Equal(decimal.RequireFromString("50")) {
			t.Errorf("occurrence %s amount = %s, want 50", k, amount)
		}
	}
}

func TestMaterializeSkipsInactiveBill(t *testing.T) {
	store := newFakeStore()
	gen := NewGenerator(store)
	bill := ledger.Bill{
		ID:        1,
		Cadence:   ledger.Monthly(1),
		AmountDue: decimal.RequireFromString("50"),
		Active:    false,
	}
	h := dates("2026-01-01", "2026-03-31")

	n, err := gen.Materialize(context.Background(), bill, h[0], h[1])
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 || store.count() != 0 {
		t.Errorf("inactive bill generated %d occurrences", store.count())
	}
}

func TestMaterializeRejectsInvalidCadence(t *testing.T) {
	gen := NewGenerator(newFakeStore())
	bill := ledger.Bill{
		ID:      1,
		Cadence: ledger.Cadence{Frequency: ledger.FreqMonthly, DueDay: 40},
		Active:  true,
	}
	h := dates("2026-01-01", "2026-03-31")

	if _, err := gen.Materialize(context.Background(), bill, h[0], h[1]); err == nil {
		t.Error("Materialize should reject an invalid cadence")
	}
}
