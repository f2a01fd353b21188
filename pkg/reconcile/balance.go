// Package reconcile keeps the transaction store and the payment occurrence
// records consistent: running balances under out-of-order edits, paid and
// ignored occurrence state, and each bill's derived total debt.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/ledger"
)

// SortForBalance orders transactions the way balances are computed: by the
// manual sort key, with equal keys broken by the insertion id. The tie-break
// keeps recomputation stable; iteration order is never load-bearing.
func SortForBalance(txns []ledger.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if txns[i].OrderKey != txns[j].OrderKey {
			return txns[i].OrderKey < txns[j].OrderKey
		}
		return txns[i].ID < txns[j].ID
	})
}

// RecomputeFrom rewrites balances in place for every index >= from, seeding
// from the previous row's balance (or the opening balance when from is 0).
// Rows before from are untouched. txns must already be in balance order.
func RecomputeFrom(txns []ledger.Transaction, opening decimal.Decimal, from int) {
	if from < 0 {
		from = 0
	}
	prev := opening
	if from > 0 && from <= len(txns) {
		prev = txns[from-1].Balance
	}
	for i := from; i < len(txns); i++ {
		prev = prev.Add(txns[i].Amount)
		txns[i].Balance = prev
	}
}

// Verify walks the ordered sequence and checks the running-balance
// invariant: balance[i] = balance[i-1] + amount[i], seeded by the opening
// balance. A gap is reported as InconsistentBalanceState.
func Verify(txns []ledger.Transaction, opening decimal.Decimal) error {
	prev := opening
	for i := range txns {
		want := prev.Add(txns[i].Amount)
		if !txns[i].Balance.Equal(want) {
			return &ledger.InconsistentBalanceState{
				Detail: fmt.Sprintf("transaction %d (position %d): balance %s, want %s",
					txns[i].ID, i, txns[i].Balance, want),
			}
		}
		prev = txns[i].Balance
	}
	return nil
}

// insertionPoint returns the index where a row with the given sort key and
// id would sit in the ordered sequence. Used to find the recompute start
// after a delete.
func insertionPoint(txns []ledger.Transaction, orderKey, id int64) int {
	return sort.Search(len(txns), func(i int) bool {
		if txns[i].OrderKey != orderKey {
			return txns[i].OrderKey > orderKey
		}
		return txns[i].ID > id
	})
}
