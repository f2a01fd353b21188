package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/ledger"
)

// BillStore manages recurring bill definitions.
type BillStore struct {
	conn *Connection
}

// NewBillStore creates a new BillStore instance.
func NewBillStore(conn *Connection) *BillStore {
	return &BillStore{conn: conn}
}

// cadenceColumns maps the tagged union onto the mutually exclusive columns:
// monthly rows populate due_day, yearly rows populate due_month + due_dom.
func cadenceColumns(c ledger.Cadence) (dueDay, dueMonth, dueDOM interface{}) {
	switch c.Frequency {
	case ledger.FreqMonthly:
		return c.DueDay, nil, nil
	default:
		return nil, int(c.DueMonth), c.DueDOM
	}
}

func cadenceFromColumns(freq string, dueDay, dueMonth, dueDOM sql.NullInt64) (ledger.Cadence, error) {
	var c ledger.Cadence
	switch ledger.Frequency(freq) {
	case ledger.FreqMonthly:
		c = ledger.Monthly(int(dueDay.Int64))
	case ledger.FreqYearly:
		c = ledger.Yearly(time.Month(dueMonth.Int64), int(dueDOM.Int64))
	default:
		return c, &ledger.ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", freq)}
	}
	return c, c.Validate()
}

// Create inserts a bill after validating the cadence invariant (the schema
// CHECK enforces it again at the storage boundary).
func (s *BillStore) Create(ctx context.Context, bill ledger.Bill) (int64, error) {
	if err := bill.Cadence.Validate(); err != nil {
		return 0, err
	}
	dueDay, dueMonth, dueDOM := cadenceColumns(bill.Cadence)

	var accountID interface{}
	if bill.AccountID != nil {
		accountID = *bill.AccountID
	}

	res, err := s.conn.GetDB().ExecContext(ctx, `
		INSERT INTO bills (payee, frequency, amount_due, total_debt, account_id,
			due_day, due_month, due_dom, active, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`,
		bill.Payee,
		string(bill.Cadence.Frequency),
		bill.AmountDue.String(),
		bill.TotalDebt.String(),
		accountID,
		dueDay, dueMonth, dueDOM,
		bill.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create bill: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get bill id: %w", err)
	}
	return id, nil
}

// Get retrieves a bill by id. Returns nil, nil when not found.
func (s *BillStore) Get(ctx context.Context, id int64) (*ledger.Bill, error) {
	row := s.conn.GetDB().QueryRowContext(ctx, `
		SELECT id, payee, frequency, amount_due, total_debt, account_id,
			due_day, due_month, due_dom, active, notes
		FROM bills
		WHERE id = ?
	`, id)

	bill, err := scanBill(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}
	return bill, nil
}

// List retrieves bills ordered by payee, optionally active only.
func (s *BillStore) List(ctx context.Context, activeOnly bool) ([]ledger.Bill, error) {
	query := `
		SELECT id, payee, frequency, amount_due, total_debt, account_id,
			due_day, due_month, due_dom, active, notes
		FROM bills
	`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY payee`

	rows, err := s.conn.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []ledger.Bill
	for rows.Next() {
		bill, err := scanBill(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, *bill)
	}
	return bills, rows.Err()
}

// UpdateCadence replaces a bill's recurrence rule. Occurrence regeneration
// is the caller's job (schedule.Generator.Regenerate).
func (s *BillStore) UpdateCadence(ctx context.Context, id int64, c ledger.Cadence) error {
	if err := c.Validate(); err != nil {
		return err
	}
	dueDay, dueMonth, dueDOM := cadenceColumns(c)

	_, err := s.conn.GetDB().ExecContext(ctx, `
		UPDATE bills SET frequency = ?, due_day = ?, due_month = ?, due_dom = ?
		WHERE id = ?
	`, string(c.Frequency), dueDay, dueMonth, dueDOM, id)
	if err != nil {
		return fmt.Errorf("failed to update cadence: %w", err)
	}
	return nil
}

// UpdateAmountDue changes the bill's amount for future generation. Existing
// occurrence snapshots keep their original amount.
func (s *BillStore) UpdateAmountDue(ctx context.Context, id int64, amount decimal.Decimal) error {
	_, err := s.conn.GetDB().ExecContext(ctx,
		`UPDATE bills SET amount_due = ? WHERE id = ?`, amount.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update amount due: %w", err)
	}
	return nil
}

// SetTotalDebt writes the derived total_debt accumulator.
func (s *BillStore) SetTotalDebt(ctx context.Context, id int64, debt decimal.Decimal) error {
	_, err := s.conn.GetDB().ExecContext(ctx,
		`UPDATE bills SET total_debt = ? WHERE id = ?`, debt.String(), id)
	if err != nil {
		return fmt.Errorf("failed to set total debt: %w", err)
	}
	return nil
}

// SetActive toggles the bill. Deactivating suppresses future generation
// without deleting history.
func (s *BillStore) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := s.conn.GetDB().ExecContext(ctx,
		`UPDATE bills SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to set bill active flag: %w", err)
	}
	return nil
}

func scanBill(scan func(...interface{}) error) (*ledger.Bill, error) {
	var (
		bill      ledger.Bill
		freq      string
		amountStr string
		debtStr   string
		accountID sql.NullInt64
		dueDay    sql.NullInt64
		dueMonth  sql.NullInt64
		dueDOM    sql.NullInt64
	)
	if err := scan(&bill.ID, &bill.Payee, &freq, &amountStr, &debtStr,
		&accountID, &dueDay, &dueMonth, &dueDOM, &bill.Active, &bill.Notes); err != nil {
		return nil, err
	}

	var err error
	if bill.Cadence, err = cadenceFromColumns(freq, dueDay, dueMonth, dueDOM); err != nil {
		return nil, err
	}
	if bill.AmountDue, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("bad amount_due %q: %w", amountStr, err)
	}
	if bill.TotalDebt, err = decimal.NewFromString(debtStr); err != nil {
		return nil, fmt.Errorf("bad total_debt %q: %w", debtStr, err)
	}
	if accountID.Valid {
		v := accountID.Int64
		bill.AccountID = &v
	}
	return &bill, nil
}
