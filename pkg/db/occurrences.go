package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/ledger"
)

// OccurrenceStore manages payment occurrence records (bill_payments).
// (bill_id, due_date) is the natural key, enforced by a UNIQUE constraint;
// the store validates it again before writing.
type OccurrenceStore struct {
	conn *Connection
}

// NewOccurrenceStore creates a new OccurrenceStore instance.
func NewOccurrenceStore(conn *Connection) *OccurrenceStore {
	return &OccurrenceStore{conn: conn}
}

// InsertIfAbsent is the generator's compare-and-insert: it creates an
// occurrence unless one already exists for (billID, dueDate), in which case
// it reports false and leaves the existing row untouched. This is what
// makes materialization idempotent and safe under concurrent generation.
func (s *OccurrenceStore) InsertIfAbsent(ctx context.Context, billID int64, dueDate time.Time, amount decimal.Decimal) (bool, error) {
	res, err := s.conn.GetDB().ExecContext(ctx, `
		INSERT INTO bill_payments (bill_id, due_date, amount, paid_at, ignored)
		VALUES (?, ?, ?, NULL, 0)
		ON CONFLICT(bill_id, due_date) DO NOTHING
	`, billID, dueDate.Format(dateLayout), amount.String())
	if err != nil {
		return false, fmt.Errorf("failed to insert occurrence: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Insert creates an occurrence and surfaces a duplicate natural key as
// UniquenessViolation. Used for explicit one-off creation, not generation.
func (s *OccurrenceStore) Insert(ctx context.Context, billID int64, dueDate time.Time, amount decimal.Decimal) (int64, error) {
	inserted, err := s.InsertIfAbsent(ctx, billID, dueDate, amount)
	if err != nil {
		return 0, err
	}
	if !inserted {
		return 0, &ledger.UniquenessViolation{BillID: billID, DueDate: dueDate.Format(dateLayout)}
	}

	occ, err := s.Get(ctx, billID, dueDate)
	if err != nil {
		return 0, err
	}
	return occ.ID, nil
}

// Get retrieves an occurrence by its natural key. Returns nil, nil when not
// found.
func (s *OccurrenceStore) Get(ctx context.Context, billID int64, dueDate time.Time) (*ledger.Occurrence, error) {
	row := s.conn.GetDB().QueryRowContext(ctx, `
		SELECT id, bill_id, due_date, amount, paid_at, ignored
		FROM bill_payments
		WHERE bill_id = ? AND due_date = ?
	`, billID, dueDate.Format(dateLayout))
	return scanOccurrenceRow(row.Scan)
}

// GetByID retrieves an occurrence by row id. Returns nil, nil when not
// found.
func (s *OccurrenceStore) GetByID(ctx context.Context, id int64) (*ledger.Occurrence, error) {
	row := s.conn.GetDB().QueryRowContext(ctx, `
		SELECT id, bill_id, due_date, amount, paid_at, ignored
		FROM bill_payments
		WHERE id = ?
	`, id)
	return scanOccurrenceRow(row.Scan)
}

// ListByBill returns a bill's occurrences in due-date order.
func (s *OccurrenceStore) ListByBill(ctx context.Context, billID int64) ([]ledger.Occurrence, error) {
	rows, err := s.conn.GetDB().QueryContext(ctx, `
		SELECT id, bill_id, due_date, amount, paid_at, ignored
		FROM bill_payments
		WHERE bill_id = ?
		ORDER BY due_date ASC, id ASC
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// ListWindow returns all occurrences with due_date inside [start, end].
func (s *OccurrenceStore) ListWindow(ctx context.Context, start, end time.Time) ([]ledger.Occurrence, error) {
	rows, err := s.conn.GetDB().QueryContext(ctx, `
		SELECT id, bill_id, due_date, amount, paid_at, ignored
		FROM bill_payments
		WHERE due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC, bill_id ASC
	`, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrence window: %w", err)
	}
	defer rows.Close()
	return collectOccurrences(rows)
}

// SetPaid stamps paid_at and clears the ignored flag. Once set, paid_at is
// history and occurrences carrying it are never deleted.
func (s *OccurrenceStore) SetPaid(ctx context.Context, id int64, paidAt time.Time) error {
	_, err := s.conn.GetDB().ExecContext(ctx, `
		UPDATE bill_payments SET paid_at = ?, ignored = 0 WHERE id = ?
	`, paidAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark occurrence paid: %w", err)
	}
	return nil
}

// SetIgnored flips the ignored flag. State rules (a paid occurrence cannot
// be ignored) are enforced by the reconcile engine.
func (s *OccurrenceStore) SetIgnored(ctx context.Context, id int64, ignored bool) error {
	_, err := s.conn.GetDB().ExecContext(ctx,
		`UPDATE bill_payments SET ignored = ? WHERE id = ?`, ignored, id)
	if err != nil {
		return fmt.Errorf("failed to set ignored flag: %w", err)
	}
	return nil
}

// DeleteFutureUnpaid removes occurrences strictly after the given date that
// are unpaid and not ignored. Paid history is immutable; ignored rows are
// kept as explicit user decisions.
func (s *OccurrenceStore) DeleteFutureUnpaid(ctx context.Context, billID int64, after time.Time) (int, error) {
	res, err := s.conn.GetDB().ExecContext(ctx, `
		DELETE FROM bill_payments
		WHERE bill_id = ? AND due_date > ? AND paid_at IS NULL AND ignored = 0
	`, billID, after.Format(dateLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete future occurrences: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// SumOutstanding derives the bill's total debt: the sum of amounts over
// unpaid, non-ignored occurrences.
func (s *OccurrenceStore) SumOutstanding(ctx context.Context, billID int64) (decimal.Decimal, error) {
	rows, err := s.conn.GetDB().QueryContext(ctx, `
		SELECT amount FROM bill_payments
		WHERE bill_id = ? AND paid_at IS NULL AND ignored = 0
	`, billID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outstanding occurrences: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad occurrence amount %q: %w", amountStr, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

func collectOccurrences(rows *sql.Rows) ([]ledger.Occurrence, error) {
	var occs []ledger.Occurrence
	for rows.Next() {
		occ, err := scanOccurrenceRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occs = append(occs, *occ)
	}
	return occs, rows.Err()
}

func scanOccurrenceRow(scan func(...interface{}) error) (*ledger.Occurrence, error) {
	var (
		occ       ledger.Occurrence
		dueStr    string
		amountStr string
		paidAt    sql.NullString
	)
	err := scan(&occ.ID, &occ.BillID, &dueStr, &amountStr, &paidAt, &occ.Ignored)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if occ.DueDate, err = time.Parse(dateLayout, dueStr); err != nil {
		return nil, fmt.Errorf("bad due_date %q: %w", dueStr, err)
	}
	if occ.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", amountStr, err)
	}
	if paidAt.Valid {
		t, err := time.Parse(time.RFC3339, paidAt.String)
		if err != nil {
			return nil, fmt.Errorf("bad paid_at %q: %w", paidAt.String, err)
		}
		occ.PaidAt = &t
	}
	return &occ, nil
}
