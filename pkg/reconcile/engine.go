package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/ledger"
	"github.com/homeledger/homeledger/pkg/lookup"
	"github.com/homeledger/homeledger/pkg/schedule"
)

// Engine applies ledger mutations while preserving the running-balance and
// occurrence invariants. Each account's transaction sequence is guarded by
// a serializing lock so concurrent edits cannot read a stale tail balance.
type Engine struct {
	accounts *db.AccountStore
	txns     *db.TransactionStore
	bills    *db.BillStore
	occs     *db.OccurrenceStore
	pay      *db.PayScheduleStore
	log      *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewEngine creates an Engine over the given connection.
func NewEngine(conn *db.Connection, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		accounts: db.NewAccountStore(conn),
		txns:     db.NewTransactionStore(conn),
		bills:    db.NewBillStore(conn),
		occs:     db.NewOccurrenceStore(conn),
		pay:      db.NewPayScheduleStore(conn),
		log:      log,
	}
}

// accountLock returns the serializing lock for one account.
func (e *Engine) accountLock(accountID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locks == nil {
		e.locks = make(map[int64]*sync.Mutex)
	}
	l, ok := e.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[accountID] = l
	}
	return l
}

// recomputeTail reloads the account's ordered sequence and rewrites
// balances from the first row at or after (orderKey, id). Passing orderKey
// < 0 forces a full resequence.
func (e *Engine) recomputeTail(ctx context.Context, accountID, orderKey, id int64) error {
	acc, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("account %d not found", accountID)
	}

	txns, err := e.txns.List(ctx, accountID)
	if err != nil {
		return err
	}
	SortForBalance(txns)

	from := 0
	if orderKey >= 0 {
		// id-1 so the row itself is included when it still exists.
		from = insertionPoint(txns, orderKey, id-1)
	}
	RecomputeFrom(txns, acc.OpeningBalance, from)
	return e.txns.UpdateBalances(ctx, txns[from:])
}

// ApplyTransaction inserts a transaction and recomputes balances from its
// sort position onward. Rows before the insertion point are untouched.
func (e *Engine) ApplyTransaction(ctx context.Context, txn ledger.Transaction) (int64, error) {
	l := e.accountLock(txn.AccountID)
	l.Lock()
	defer l.Unlock()

	id, err := e.txns.Insert(ctx, txn)
	if err != nil {
		return 0, err
	}

	inserted, err := e.txns.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := e.recomputeTail(ctx, txn.AccountID, inserted.OrderKey, inserted.ID); err != nil {
		return 0, err
	}
	return id, nil
}

// EditTransaction rewrites a transaction. Edits to amount, type, or pending
// state recompute from the row's position; a changed sort key resequences
// the whole account.
func (e *Engine) EditTransaction(ctx context.Context, txn ledger.Transaction) error {
	l := e.accountLock(txn.AccountID)
	l.Lock()
	defer l.Unlock()

	old, err := e.txns.Get(ctx, txn.ID)
	if err != nil {
		return err
	}
	if old == nil {
		return fmt.Errorf("transaction %d not found", txn.ID)
	}
	if old.AccountID != txn.AccountID {
		return &ledger.ValidationError{Field: "account", Reason: "transactions cannot change accounts"}
	}

	if err := e.txns.Update(ctx, txn); err != nil {
		return err
	}

	orderKey, id := old.OrderKey, old.ID
	if txn.OrderKey != 0 && txn.OrderKey != old.OrderKey {
		if err := e.txns.SetOrderKey(ctx, txn.ID, txn.OrderKey); err != nil {
			return err
		}
		// Sort key changed: full account resequence.
		orderKey, id = -1, 0
	}
	return e.recomputeTail(ctx, txn.AccountID, orderKey, id)
}

// DeleteTransaction removes a transaction and recomputes every row after
// its old position.
func (e *Engine) DeleteTransaction(ctx context.Context, accountID, txnID int64) error {
	l := e.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	old, err := e.txns.Get(ctx, txnID)
	if err != nil {
		return err
	}
	if old == nil || old.AccountID != accountID {
		return fmt.Errorf("transaction %d not found on account %d", txnID, accountID)
	}

	if _, err := e.txns.Delete(ctx, txnID); err != nil {
		return err
	}
	return e.recomputeTail(ctx, accountID, old.OrderKey, old.ID)
}

// MoveTransaction swaps the row's manual sort key with its neighbor (up
// moves it later in display order, matching the original swap semantics)
// and recomputes the affected tail.
func (e *Engine) MoveTransaction(ctx context.Context, accountID, txnID int64, up bool) error {
	l := e.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	cur, err := e.txns.Get(ctx, txnID)
	if err != nil {
		return err
	}
	if cur == nil || cur.AccountID != accountID {
		return fmt.Errorf("transaction %d not found on account %d", txnID, accountID)
	}

	neighbor, err := e.txns.Neighbor(ctx, accountID, cur.OrderKey, up)
	if err != nil {
		return err
	}
	if neighbor == nil {
		return nil // already at the edge
	}

	if err := e.txns.SwapOrderKeys(ctx, *cur, *neighbor); err != nil {
		return err
	}

	low := cur.OrderKey
	if neighbor.OrderKey < low {
		low = neighbor.OrderKey
	}
	return e.recomputeTail(ctx, accountID, low, 0)
}

// MarkPaid stamps an occurrence paid, recomputes the owning bill's derived
// total_debt, and applies the payment to the bill's linked account as a
// cleared expense transaction. An inconsistency (stored debt smaller than
// the occurrence amount) is logged and surfaced after the state is
// recomputed from the occurrence set; it is never hidden by clamping.
func (e *Engine) MarkPaid(ctx context.Context, occurrenceID int64, paidAt time.Time) error {
	occ, err := e.occs.GetByID(ctx, occurrenceID)
	if err != nil {
		return err
	}
	if occ == nil {
		return fmt.Errorf("occurrence %d not found", occurrenceID)
	}
	if occ.Paid() {
		return nil // idempotent
	}

	bill, err := e.bills.Get(ctx, occ.BillID)
	if err != nil {
		return err
	}
	if bill == nil {
		return fmt.Errorf("bill %d not found", occ.BillID)
	}

	// Ignored occurrences are excluded from the derived total, so the
	// stored debt legitimately lacks their amount; only unignored rows can
	// reveal a real inconsistency.
	var inconsistent error
	if !occ.Ignored && bill.TotalDebt.Sub(occ.Amount).IsNegative() {
		inconsistent = &ledger.InconsistentBalanceState{
			Detail: fmt.Sprintf("bill %d total_debt %s would go negative paying occurrence %d (%s)",
				bill.ID, bill.TotalDebt, occ.ID, occ.Amount),
		}
		e.log.Error("total debt inconsistency detected",
			"bill_id", bill.ID, "occurrence_id", occ.ID,
			"total_debt", bill.TotalDebt.String(), "amount", occ.Amount.String())
	}

	if err := e.occs.SetPaid(ctx, occurrenceID, paidAt); err != nil {
		return err
	}
	if err := e.RecomputeDebt(ctx, bill.ID); err != nil {
		return err
	}

	if bill.AccountID != nil {
		_, err := e.ApplyTransaction(ctx, ledger.Transaction{
			AccountID: *bill.AccountID,
			Pending:   false,
			Type:      lookup.TransExpense,
			Name:      bill.Payee,
			Method:    lookup.MethodNA,
			Category:  lookup.CatBills,
			Amount:    occ.Amount,
			Date:      occ.DueDate,
		})
		if err != nil {
			return fmt.Errorf("failed to record bill payment transaction: %w", err)
		}
	}
	return inconsistent
}

// MarkIgnored excludes an occurrence from totals and due-soon projections.
// A paid occurrence cannot be ignored; paid and ignored are mutually
// exclusive in effect.
func (e *Engine) MarkIgnored(ctx context.Context, occurrenceID int64) error {
	occ, err := e.occs.GetByID(ctx, occurrenceID)
	if err != nil {
		return err
	}
	if occ == nil {
		return fmt.Errorf("occurrence %d not found", occurrenceID)
	}
	if occ.Paid() {
		return &ledger.InvalidStateTransition{From: "paid", To: "ignored"}
	}

	if err := e.occs.SetIgnored(ctx, occurrenceID, true); err != nil {
		return err
	}
	return e.RecomputeDebt(ctx, occ.BillID)
}

// ClearIgnored puts an occurrence back into the outstanding set.
func (e *Engine) ClearIgnored(ctx context.Context, occurrenceID int64) error {
	occ, err := e.occs.GetByID(ctx, occurrenceID)
	if err != nil {
		return err
	}
	if occ == nil {
		return fmt.Errorf("occurrence %d not found", occurrenceID)
	}

	if err := e.occs.SetIgnored(ctx, occurrenceID, false); err != nil {
		return err
	}
	return e.RecomputeDebt(ctx, occ.BillID)
}

// RecomputeDebt derives total_debt from the bill's unpaid, non-ignored
// occurrences. Deriving instead of incrementally maintaining prevents
// drift under historical edits.
func (e *Engine) RecomputeDebt(ctx context.Context, billID int64) error {
	total, err := e.occs.SumOutstanding(ctx, billID)
	if err != nil {
		return err
	}
	return e.bills.SetTotalDebt(ctx, billID, total)
}

// DeactivateBill suppresses future generation and removes unpaid,
// non-ignored occurrences still ahead of now. Paid history stays.
func (e *Engine) DeactivateBill(ctx context.Context, billID int64, now time.Time) error {
	if err := e.bills.SetActive(ctx, billID, false); err != nil {
		return err
	}
	if _, err := e.occs.DeleteFutureUnpaid(ctx, billID, schedule.Normalize(now)); err != nil {
		return err
	}
	return e.RecomputeDebt(ctx, billID)
}

// VerifyAccount checks the running-balance invariant over the whole
// account. A detected gap is returned as InconsistentBalanceState and
// logged, never repaired here.
func (e *Engine) VerifyAccount(ctx context.Context, accountID int64) error {
	acc, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("account %d not found", accountID)
	}

	txns, err := e.txns.List(ctx, accountID)
	if err != nil {
		return err
	}
	SortForBalance(txns)
	if err := Verify(txns, acc.OpeningBalance); err != nil {
		e.log.Error("balance invariant violated", "account_id", accountID, "error", err)
		return err
	}
	return nil
}

// UpcomingBill is one active bill due inside the current pay window,
// annotated with the state of that occurrence.
type UpcomingBill struct {
	Bill    ledger.Bill
	DueDate time.Time
	Paid    bool
	Ignored bool
}

// Upcoming projects the active bills whose next due date falls inside the
// biweekly pay window containing today. Sorted by (due date, payee).
func (e *Engine) Upcoming(ctx context.Context, today time.Time) ([]UpcomingBill, time.Time, time.Time, error) {
	ps, err := e.pay.Get(ctx)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	anchor := schedule.Normalize(today)
	if ps != nil {
		anchor = ps.Anchor
	}
	start, end := schedule.PayWindow(anchor, today)

	bills, err := e.bills.List(ctx, true)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	// One window query instead of a lookup per bill.
	occs, err := e.occs.ListWindow(ctx, start, end)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	type occKey struct {
		billID int64
		due    string
	}
	byKey := make(map[occKey]ledger.Occurrence, len(occs))
	for _, o := range occs {
		byKey[occKey{o.BillID, o.DueDate.Format("2006-01-02")}] = o
	}

	var out []UpcomingBill
	for _, b := range bills {
		due, err := schedule.NextDue(b.Cadence, start)
		if err != nil {
			return nil, time.Time{}, time.Time{}, err
		}
		if due.After(end) {
			continue
		}

		u := UpcomingBill{Bill: b, DueDate: due}
		if occ, ok := byKey[occKey{b.ID, due.Format("2006-01-02")}]; ok {
			u.Paid = occ.Paid()
			u.Ignored = occ.Ignored
		}
		out = append(out, u)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return strings.ToLower(out[i].Bill.Payee) < strings.ToLower(out[j].Bill.Payee)
	})
	return out, start, end, nil
}
