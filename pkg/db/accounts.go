package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/ledger"
	"github.com/homeledger/homeledger/pkg/lookup"
)

const dateLayout = "2006-01-02"

// AccountStore manages account records.
type AccountStore struct {
	conn *Connection
}

// NewAccountStore creates a new AccountStore instance.
func NewAccountStore(conn *Connection) *AccountStore {
	return &AccountStore{conn: conn}
}

// Create inserts an account. A zero Opened date defaults to today and the
// account starts active.
func (s *AccountStore) Create(ctx context.Context, acc ledger.Account) (int64, error) {
	opened := acc.Opened
	if opened.IsZero() {
		opened = time.Now()
	}

	var apy interface{}
	if acc.APY != nil {
		apy = *acc.APY
	}

	res, err := s.conn.GetDB().ExecContext(ctx, `
		INSERT INTO accounts (institution, type, acc_id, active, balance, interest, apy, opened)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		acc.Institution,
		acc.Type.Code(),
		acc.Name,
		ledger.FormatFlag(true),
		acc.OpeningBalance.String(),
		ledger.FormatFlag(acc.Interest),
		apy,
		opened.Format(dateLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get account id: %w", err)
	}
	return id, nil
}

// Get retrieves an account by id. Returns nil, nil when not found.
func (s *AccountStore) Get(ctx context.Context, id int64) (*ledger.Account, error) {
	row := s.conn.GetDB().QueryRowContext(ctx, `
		SELECT id, institution, type, acc_id, active, balance, interest, apy, opened
		FROM accounts
		WHERE id = ?
	`, id)

	acc, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// List retrieves accounts ordered by institution then name, optionally
// restricted to active ones.
func (s *AccountStore) List(ctx context.Context, activeOnly bool) ([]ledger.Account, error) {
	query := `
		SELECT id, institution, type, acc_id, active, balance, interest, apy, opened
		FROM accounts
	`
	if activeOnly {
		query += ` WHERE active <> 'NO'`
	}
	query += ` ORDER BY institution, acc_id`

	rows, err := s.conn.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acc, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// SetActive toggles the account's active flag, stored in the legacy
// 'YES'/'NO' representation.
func (s *AccountStore) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := s.conn.GetDB().ExecContext(ctx,
		`UPDATE accounts SET active = ? WHERE id = ?`, ledger.FormatFlag(active), id)
	if err != nil {
		return fmt.Errorf("failed to set account active flag: %w", err)
	}
	return nil
}

// Balances holds an account's derived balance projections. Posted excludes
// pending transactions; available includes everything.
type Balances struct {
	Posted    decimal.Decimal
	Available decimal.Decimal
}

// Header returns the account's posted and available balances, derived from
// the opening balance plus the transaction sequence.
func (s *AccountStore) Header(ctx context.Context, id int64) (*Balances, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("account %d not found", id)
	}

	rows, err := s.conn.GetDB().QueryContext(ctx,
		`SELECT amount, pending FROM transactions WHERE acc_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to sum transactions: %w", err)
	}
	defer rows.Close()

	posted, available := acc.OpeningBalance, acc.OpeningBalance
	for rows.Next() {
		var amountStr string
		var pending bool
		if err := rows.Scan(&amountStr, &pending); err != nil {
			return nil, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q on account %d: %w", amountStr, id, err)
		}
		available = available.Add(amount)
		if !pending {
			posted = posted.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Balances{Posted: posted, Available: available}, nil
}

func scanAccount(scan func(...interface{}) error) (*ledger.Account, error) {
	var (
		acc        ledger.Account
		typeCode   int
		activeRaw  string
		balanceStr string
		intRaw     string
		apy        sql.NullInt64
		openedStr  string
	)
	if err := scan(&acc.ID, &acc.Institution, &typeCode, &acc.Name,
		&activeRaw, &balanceStr, &intRaw, &apy, &openedStr); err != nil {
		return nil, err
	}

	var err error
	if acc.Type, err = lookup.AccountTypeFromCode(typeCode); err != nil {
		return nil, err
	}
	if acc.Active, err = ledger.ParseFlag(activeRaw); err != nil {
		return nil, err
	}
	if acc.Interest, err = ledger.ParseFlag(intRaw); err != nil {
		return nil, err
	}
	if acc.OpeningBalance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("bad opening balance %q: %w", balanceStr, err)
	}
	if acc.Opened, err = time.Parse(dateLayout, openedStr); err != nil {
		return nil, fmt.Errorf("bad opened date %q: %w", openedStr, err)
	}
	if apy.Valid {
		v := apy.Int64
		acc.APY = &v
	}
	return &acc, nil
}
