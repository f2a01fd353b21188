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

// TransactionStore manages the per-account transaction sequences. Balance
// recomputation lives in the reconcile package; every insert, update, and
// delete here must go through that engine so the running balances stay
// consistent.
type TransactionStore struct {
	conn *Connection
}

// NewTransactionStore creates a new TransactionStore instance.
func NewTransactionStore(conn *Connection) *TransactionStore {
	return &TransactionStore{conn: conn}
}

// NormalizeAmount enforces the amount sign from the transaction type:
// expenses are negative, everything else positive. Users may enter any
// sign; it is ignored.
func NormalizeAmount(amount decimal.Decimal, t lookup.TransType) decimal.Decimal {
	abs := amount.Abs()
	if t.Sign() < 0 {
		return abs.Neg()
	}
	return abs
}

// NextOrderKey returns the manual sort key for a new row: max(c_id) + 10.
// The gap leaves room for manual reordering between rows.
func (s *TransactionStore) NextOrderKey(ctx context.Context, accountID int64) (int64, error) {
	var maxKey sql.NullInt64
	err := s.conn.GetDB().QueryRowContext(ctx,
		`SELECT MAX(c_id) FROM transactions WHERE acc_id = ?`, accountID).Scan(&maxKey)
	if err != nil {
		return 0, fmt.Errorf("failed to get max order key: %w", err)
	}
	return maxKey.Int64 + 10, nil
}

// Insert appends a transaction. A zero OrderKey is assigned max+10; the
// amount sign is normalized from the type. The stored balance is a
// placeholder until the reconcile engine recomputes the tail.
func (s *TransactionStore) Insert(ctx context.Context, txn ledger.Transaction) (int64, error) {
	orderKey := txn.OrderKey
	if orderKey == 0 {
		var err error
		if orderKey, err = s.NextOrderKey(ctx, txn.AccountID); err != nil {
			return 0, err
		}
	}
	amount := NormalizeAmount(txn.Amount, txn.Type)

	res, err := s.conn.GetDB().ExecContext(ctx, `
		INSERT INTO transactions (c_id, acc_id, pending, type, name, method, cat, amount, balance, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		orderKey,
		txn.AccountID,
		txn.Pending,
		txn.Type.Code(),
		txn.Name,
		txn.Method.Code(),
		txn.Category.Code(),
		amount.String(),
		amount.String(),
		txn.Date.Format(dateLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction id: %w", err)
	}
	return id, nil
}

// Update rewrites a transaction's editable fields in place, applying the
// same sign normalization as Insert. c_id changes go through SetOrderKey.
func (s *TransactionStore) Update(ctx context.Context, txn ledger.Transaction) error {
	amount := NormalizeAmount(txn.Amount, txn.Type)

	res, err := s.conn.GetDB().ExecContext(ctx, `
		UPDATE transactions
		SET pending = ?, type = ?, name = ?, method = ?, cat = ?, amount = ?, date = ?
		WHERE id = ? AND acc_id = ?
	`,
		txn.Pending,
		txn.Type.Code(),
		txn.Name,
		txn.Method.Code(),
		txn.Category.Code(),
		amount.String(),
		txn.Date.Format(dateLayout),
		txn.ID,
		txn.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d not found on account %d", txn.ID, txn.AccountID)
	}
	return nil
}

// SetOrderKey moves a row to a new manual sort position.
func (s *TransactionStore) SetOrderKey(ctx context.Context, id, orderKey int64) error {
	_, err := s.conn.GetDB().ExecContext(ctx,
		`UPDATE transactions SET c_id = ? WHERE id = ?`, orderKey, id)
	if err != nil {
		return fmt.Errorf("failed to set order key: %w", err)
	}
	return nil
}

// SwapOrderKeys exchanges the sort keys of two rows atomically.
func (s *TransactionStore) SwapOrderKeys(ctx context.Context, a, b ledger.Transaction) error {
	return s.conn.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET c_id = ? WHERE id = ?`, b.OrderKey, a.ID); err != nil {
			return fmt.Errorf("failed to move transaction %d: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET c_id = ? WHERE id = ?`, a.OrderKey, b.ID); err != nil {
			return fmt.Errorf("failed to move transaction %d: %w", b.ID, err)
		}
		return nil
	})
}

// Delete removes a transaction. Returns false when no row matched.
func (s *TransactionStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.conn.GetDB().ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a transaction by id. Returns nil, nil when not found.
func (s *TransactionStore) Get(ctx context.Context, id int64) (*ledger.Transaction, error) {
	row := s.conn.GetDB().QueryRowContext(ctx, `
		SELECT id, c_id, acc_id, pending, type, name, method, cat, amount, balance, date
		FROM transactions
		WHERE id = ?
	`, id)

	txn, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// List returns an account's transactions in balance-computation order:
// (c_id, id) ascending.
func (s *TransactionStore) List(ctx context.Context, accountID int64) ([]ledger.Transaction, error) {
	rows, err := s.conn.GetDB().QueryContext(ctx, `
		SELECT id, c_id, acc_id, pending, type, name, method, cat, amount, balance, date
		FROM transactions
		WHERE acc_id = ?
		ORDER BY c_id ASC, id ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []ledger.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// Neighbor returns the adjacent row in sort order: the nearest row with a
// higher (up=true) or lower (up=false) c_id. Returns nil, nil at the edge.
func (s *TransactionStore) Neighbor(ctx context.Context, accountID, orderKey int64, up bool) (*ledger.Transaction, error) {
	query := `
		SELECT id, c_id, acc_id, pending, type, name, method, cat, amount, balance, date
		FROM transactions
		WHERE acc_id = ? AND c_id > ?
		ORDER BY c_id ASC, id ASC
		LIMIT 1
	`
	if !up {
		query = `
		SELECT id, c_id, acc_id, pending, type, name, method, cat, amount, balance, date
		FROM transactions
		WHERE acc_id = ? AND c_id < ?
		ORDER BY c_id DESC, id DESC
		LIMIT 1
	`
	}

	row := s.conn.GetDB().QueryRowContext(ctx, query, accountID, orderKey)
	txn, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find neighbor: %w", err)
	}
	return txn, nil
}

// UpdateBalances writes recomputed running balances back in one SQL
// transaction. Only the balance column changes.
func (s *TransactionStore) UpdateBalances(ctx context.Context, txns []ledger.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	return s.conn.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE transactions SET balance = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare balance update: %w", err)
		}
		defer stmt.Close()

		for i := range txns {
			if _, err := stmt.ExecContext(ctx, txns[i].Balance.String(), txns[i].ID); err != nil {
				return fmt.Errorf("failed to update balance for transaction %d: %w", txns[i].ID, err)
			}
		}
		return nil
	})
}

func scanTransaction(scan func(...interface{}) error) (*ledger.Transaction, error) {
	var (
		txn        ledger.Transaction
		typeCode   int
		methodCode int
		catCode    int
		amountStr  string
		balanceStr string
		dateStr    string
	)
	if err := scan(&txn.ID, &txn.OrderKey, &txn.AccountID, &txn.Pending,
		&typeCode, &txn.Name, &methodCode, &catCode,
		&amountStr, &balanceStr, &dateStr); err != nil {
		return nil, err
	}

	var err error
	if txn.Type, err = lookup.TransTypeFromCode(typeCode); err != nil {
		return nil, err
	}
	if txn.Method, err = lookup.TransMethodFromCode(methodCode); err != nil {
		return nil, err
	}
	if txn.Category, err = lookup.TransCatFromCode(catCode); err != nil {
		return nil, err
	}
	if txn.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", amountStr, err)
	}
	if txn.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("bad balance %q: %w", balanceStr, err)
	}
	if txn.Date, err = time.Parse(dateLayout, dateStr); err != nil {
		return nil, fmt.Errorf("bad date %q: %w", dateStr, err)
	}
	return &txn, nil
}
