package db

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Stats represents ledger-wide statistics.
type Stats struct {
	Accounts        int
	Transactions    int
	Bills           int
	OccurrencesPaid int
	OccurrencesOpen int
	OutstandingDebt decimal.Decimal
}

// GetStats retrieves ledger statistics.
func GetStats(ctx context.Context, conn *Connection) (*Stats, error) {
	stats := &Stats{OutstandingDebt: decimal.Zero}

	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM accounts WHERE active <> 'NO'`, &stats.Accounts},
		{`SELECT COUNT(*) FROM transactions`, &stats.Transactions},
		{`SELECT COUNT(*) FROM bills WHERE active = 1`, &stats.Bills},
		{`SELECT COUNT(*) FROM bill_payments WHERE paid_at IS NOT NULL`, &stats.OccurrencesPaid},
		{`SELECT COUNT(*) FROM bill_payments WHERE paid_at IS NULL AND ignored = 0`, &stats.OccurrencesOpen},
	}
	for _, c := range counts {
		if err := conn.GetDB().QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to get statistics: %w", err)
		}
	}

	rows, err := conn.GetDB().QueryContext(ctx,
		`SELECT amount FROM bill_payments WHERE paid_at IS NULL AND ignored = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum outstanding debt: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("bad occurrence amount %q: %w", amountStr, err)
		}
		stats.OutstandingDebt = stats.OutstandingDebt.Add(amount)
	}
	return stats, rows.Err()
}
