package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/ledger"
	"github.com/homeledger/homeledger/pkg/lookup"
	"github.com/homeledger/homeledger/pkg/schedule"
)

// testLedger opens a temporary SQLite database with the full schema and
// seeded lookup tables.
func testLedger(t *testing.T) *db.Connection {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"), nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testAccount(t *testing.T, conn *db.Connection, opening string) int64 {
	t.Helper()
	id, err := db.NewAccountStore(conn).Create(context.Background(), ledger.Account{
		Institution:    "First Bank",
		Type:           lookup.AccountChecking,
		Name:           "Checking",
		OpeningBalance: decimal.RequireFromString(opening),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return id
}

func deposit(account int64, amount, date string) ledger.Transaction {
	return ledger.Transaction{
		AccountID: account,
		Type:      lookup.TransDeposit,
		Name:      "Deposit",
		Method:    lookup.MethodNA,
		Category:  lookup.CatIncome,
		Amount:    decimal.RequireFromString(amount),
		Date:      mustDate(date),
	}
}

func expense(account int64, amount, date string) ledger.Transaction {
	return ledger.Transaction{
		AccountID: account,
		Type:      lookup.TransExpense,
		Name:      "Expense",
		Method:    lookup.MethodDebit,
		Category:  lookup.CatOther,
		Amount:    decimal.RequireFromString(amount),
		Date:      mustDate(date),
	}
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func listBalances(t *testing.T, conn *db.Connection, account int64) []string {
	t.Helper()
	txns, err := db.NewTransactionStore(conn).List(context.Background(), account)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	out := make([]string, 0, len(txns))
	for _, txn := range txns {
		out = append(out, txn.Balance.String())
	}
	return out
}

func TestApplyTransactionRunningBalances(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	account := testAccount(t, conn, "1000")

	for _, txn := range []ledger.Transaction{
		deposit(account, "500", "2026-08-01"),
		expense(account, "120.25", "2026-08-02"),
		expense(account, "79.75", "2026-08-03"),
	} {
		if _, err := engine.ApplyTransaction(ctx, txn); err != nil {
			t.Fatalf("ApplyTransaction: %v", err)
		}
	}

	want := []string{"1500", "1379.75", "1300"}
	got := listBalances(t, conn, account)
	if len(got) != len(want) {
		t.Fatalf("got %d balances, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("balance[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	if err := engine.VerifyAccount(ctx, account); err != nil {
		t.Errorf("VerifyAccount: %v", err)
	}
}

func TestConcurrentApplySerialized(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	account := testAccount(t, conn, "0")

	// Concurrent inserts on one account must serialize: no two writers may
	// read the same stale tail balance and diverge.
	const writers = 20
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ApplyTransaction(ctx, deposit(account, "10", "2026-08-01"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ApplyTransaction: %v", err)
		}
	}

	if err := engine.VerifyAccount(ctx, account); err != nil {
		t.Errorf("VerifyAccount after concurrent inserts: %v", err)
	}
	balances := listBalances(t, conn, account)
	if len(balances) != writers {
		t.Fatalf("got %d rows, want %d", len(balances), writers)
	}
	if tail := balances[len(balances)-1]; tail != "200" {
		t.Errorf("tail balance = %s, want 200", tail)
	}
}

func TestSignNormalization(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	account := testAccount(t, conn, "0")

	// An expense entered with a positive amount stores negative, and a
	// deposit entered negative stores positive.
	if _, err := engine.ApplyTransaction(ctx, expense(account, "50", "2026-08-01")); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.ApplyTransaction(ctx, deposit(account, "-80", "2026-08-02")); err != nil {
		t.Fatal(err)
	}

	txns, err := db.NewTransactionStore(conn).List(ctx, account)
	if err != nil {
		t.Fatal(err)
	}
	if !txns[0].Amount.Equal(decimal.RequireFromString("-50")) {
		t.Errorf("expense amount = %s, want -50", txns[0].Amount)
	}
	if !txns[1].Amount.Equal(decimal.RequireFromString("80")) {
		t.Errorf("deposit amount = %s, want 80", txns[1].Amount)
	}
}

func TestEditTransactionRecomputesTail(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	account := testAccount(t, conn, "0")

	var ids []int64
	for _, amount := range []string{"10", "20", "30", "40", "50"} {
		id, err := engine.ApplyTransaction(ctx, deposit(account, amount, "2026-08-01"))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	// Edit position 2 (0-based) of five rows: balances 0..1 stay, 2..4 move.
	store := db.NewTransactionStore(conn)
	edited, err := store.Get(ctx, ids[2])
	if err != nil {
		t.Fatal(err)
	}
	edited.Amount = decimal.RequireFromString("35")
	if err := engine.EditTransaction(ctx, *edited); err != nil {
		t.Fatalf("EditTransaction: %v", err)
	}

	want := []string{"10", "30", "65", "105", "155"}
	got := listBalances(t, conn, account)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("balance[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDeleteTransactionRecomputesTail(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	account := testAccount(t, conn, "100")

	var ids []int64
	for _, amount := range []string{"10", "20", "30"} {
		id, err := engine.ApplyTransaction(ctx, deposit(account, amount, "2026-08-01"))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	if err := engine.DeleteTransaction(ctx, account, ids[1]); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	want := []string{"110", "140"}
	got := listBalances(t, conn, account)
	if len(got) != 2 {
		t.Fatalf("got %d rows after delete, want 2", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("balance[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMoveTransactionPreservesInvariant(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	account := testAccount(t, conn, "0")

	var ids []int64
	for _, amount := range []string{"100", "-40", "25"} {
		txn := deposit(account, amount, "2026-08-01")
		if amount[0] == '-' {
			txn = expense(account, amount, "2026-08-01")
		}
		id, err := engine.ApplyTransaction(ctx, txn)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	// Swap the first row upward (toward higher c_id).
	if err := engine.MoveTransaction(ctx, account, ids[0], true); err != nil {
		t.Fatalf("MoveTransaction: %v", err)
	}

	txns, err := db.NewTransactionStore(conn).List(ctx, account)
	if err != nil {
		t.Fatal(err)
	}
	if txns[0].ID != ids[1] || txns[1].ID != ids[0] {
		t.Errorf("order after move = [%d %d %d], want [%d %d %d]",
			txns[0].ID, txns[1].ID, txns[2].ID, ids[1], ids[0], ids[2])
	}
	if err := engine.VerifyAccount(ctx, account); err != nil {
		t.Errorf("VerifyAccount after move: %v", err)
	}

	// Moving the top row further up is a no-op.
	if err := engine.MoveTransaction(ctx, account, ids[2], true); err != nil {
		t.Fatalf("MoveTransaction at edge: %v", err)
	}
}

func testBill(t *testing.T, conn *db.Connection, account *int64, amount string) ledger.Bill {
	t.Helper()
	bill := ledger.Bill{
		Payee:     "Electric",
		Cadence:   ledger.Monthly(15),
		AmountDue: decimal.RequireFromString(amount),
		AccountID: account,
	}
	id, err := db.NewBillStore(conn).Create(context.Background(), bill)
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	got, err := db.NewBillStore(conn).Get(context.Background(), id)
	if err != nil {
		t.Fatalf("reload bill: %v", err)
	}
	return *got
}

func TestGenerateIdempotentOnStore(t *testing.T) {
	conn := testLedger(t)
	ctx := context.Background()
	bill := testBill(t, conn, nil, "120")

	gen := schedule.NewGenerator(db.NewOccurrenceStore(conn))
	start, end := mustDate("2026-01-01"), mustDate("2026-06-30")

	n, err := gen.Materialize(ctx, bill, start, end)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if n != 6 {
		t.Errorf("first run inserted %d, want 6", n)
	}

	n, err = gen.Materialize(ctx, bill, start, end)
	if err != nil {
		t.Fatalf("Materialize (repeat): %v", err)
	}
	if n != 0 {
		t.Errorf("repeat run inserted %d, want 0", n)
	}

	occs, err := db.NewOccurrenceStore(conn).ListByBill(ctx, bill.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 6 {
		t.Errorf("store holds %d occurrences, want 6", len(occs))
	}
}

func TestMarkPaidUpdatesDebtAndLedger(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	account := testAccount(t, conn, "1000")
	bill := testBill(t, conn, &account, "120")

	gen := schedule.NewGenerator(db.NewOccurrenceStore(conn))
	if _, err := gen.Materialize(ctx, bill, mustDate("2026-01-01"), mustDate("2026-03-31")); err != nil {
		t.Fatal(err)
	}
	if err := engine.RecomputeDebt(ctx, bill.ID); err != nil {
		t.Fatal(err)
	}

	reloaded, _ := db.NewBillStore(conn).Get(ctx, bill.ID)
	if !reloaded.TotalDebt.Equal(decimal.RequireFromString("360")) {
		t.Fatalf("total_debt = %s, want 360", reloaded.TotalDebt)
	}

	occ, err := db.NewOccurrenceStore(conn).Get(ctx, bill.ID, mustDate("2026-01-15"))
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.MarkPaid(ctx, occ.ID, time.Now()); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	reloaded, _ = db.NewBillStore(conn).Get(ctx, bill.ID)
	if !reloaded.TotalDebt.Equal(decimal.RequireFromString("240")) {
		t.Errorf("total_debt after payment = %s, want 240", reloaded.TotalDebt)
	}

	// The payment lands in the linked account as a cleared expense.
	txns, err := db.NewTransactionStore(conn).List(ctx, account)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 {
		t.Fatalf("linked account has %d transactions, want 1", len(txns))
	}
	if txns[0].Name != "Electric" || txns[0].Category != lookup.CatBills {
		t.Errorf("payment transaction = %q / %v", txns[0].Name, txns[0].Category)
	}
	if !txns[0].Amount.Equal(decimal.RequireFromString("-120")) {
		t.Errorf("payment amount = %s, want -120", txns[0].Amount)
	}
	if !txns[0].Balance.Equal(decimal.RequireFromString("880")) {
		t.Errorf("running balance = %s, want 880", txns[0].Balance)
	}

	// Paying the same occurrence again is a no-op.
	if err := engine.MarkPaid(ctx, occ.ID, time.Now()); err != nil {
		t.Fatalf("MarkPaid (repeat): %v", err)
	}
	txns, _ = db.NewTransactionStore(conn).List(ctx, account)
	if len(txns) != 1 {
		t.Errorf("repeat payment duplicated the ledger entry")
	}
}

func TestMarkIgnoredOnPaidFails(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	bill := testBill(t, conn, nil, "50")

	occStore := db.NewOccurrenceStore(conn)
	id, err := occStore.Insert(ctx, bill.ID, mustDate("2026-02-15"), bill.AmountDue)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.MarkPaid(ctx, id, time.Now()); err != nil {
		t.Fatal(err)
	}

	err = engine.MarkIgnored(ctx, id)
	var ist *ledger.InvalidStateTransition
	if !errors.As(err, &ist) {
		t.Fatalf("MarkIgnored on paid occurrence: error = %v, want InvalidStateTransition", err)
	}

	// State remains paid, not ignored.
	occ, err := occStore.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !occ.Paid() || occ.Ignored {
		t.Errorf("occurrence state paid=%v ignored=%v, want paid and not ignored", occ.Paid(), occ.Ignored)
	}
}

func TestMarkIgnoredExcludesFromDebt(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	bill := testBill(t, conn, nil, "50")

	occStore := db.NewOccurrenceStore(conn)
	id, err := occStore.Insert(ctx, bill.ID, mustDate("2026-02-15"), bill.AmountDue)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := occStore.Insert(ctx, bill.ID, mustDate("2026-03-15"), bill.AmountDue); err != nil {
		t.Fatal(err)
	}

	if err := engine.MarkIgnored(ctx, id); err != nil {
		t.Fatalf("MarkIgnored: %v", err)
	}
	reloaded, _ := db.NewBillStore(conn).Get(ctx, bill.ID)
	if !reloaded.TotalDebt.Equal(decimal.RequireFromString("50")) {
		t.Errorf("total_debt with ignored occurrence = %s, want 50", reloaded.TotalDebt)
	}

	if err := engine.ClearIgnored(ctx, id); err != nil {
		t.Fatalf("ClearIgnored: %v", err)
	}
	reloaded, _ = db.NewBillStore(conn).Get(ctx, bill.ID)
	if !reloaded.TotalDebt.Equal(decimal.RequireFromString("100")) {
		t.Errorf("total_debt after un-ignore = %s, want 100", reloaded.TotalDebt)
	}
}

func TestMarkPaidOnIgnoredOccurrence(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	bill := testBill(t, conn, nil, "50")

	occStore := db.NewOccurrenceStore(conn)
	id, err := occStore.Insert(ctx, bill.ID, mustDate("2026-02-15"), bill.AmountDue)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.MarkIgnored(ctx, id); err != nil {
		t.Fatal(err)
	}

	// An ignored occurrence is already absent from the stored debt, so
	// paying it must not report an inconsistency.
	if err := engine.MarkPaid(ctx, id, time.Now()); err != nil {
		t.Fatalf("MarkPaid on ignored occurrence: %v", err)
	}

	occ, err := occStore.GetByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !occ.Paid() || occ.Ignored {
		t.Errorf("occurrence state paid=%v ignored=%v, want paid and not ignored", occ.Paid(), occ.Ignored)
	}
	reloaded, _ := db.NewBillStore(conn).Get(ctx, bill.ID)
	if !reloaded.TotalDebt.Equal(decimal.Zero) {
		t.Errorf("total_debt = %s, want 0", reloaded.TotalDebt)
	}
}

func TestMarkPaidReportsInconsistentDebt(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	bill := testBill(t, conn, nil, "50")

	id, err := db.NewOccurrenceStore(conn).Insert(ctx, bill.ID, mustDate("2026-02-15"), bill.AmountDue)
	if err != nil {
		t.Fatal(err)
	}

	// Force a stored debt smaller than the occurrence amount.
	if err := db.NewBillStore(conn).SetTotalDebt(ctx, bill.ID, decimal.RequireFromString("10")); err != nil {
		t.Fatal(err)
	}

	err = engine.MarkPaid(ctx, id, time.Now())
	var ibs *ledger.InconsistentBalanceState
	if !errors.As(err, &ibs) {
		t.Fatalf("MarkPaid error = %v, want InconsistentBalanceState", err)
	}

	// The payment itself still lands; debt is rederived, not clamped blind.
	occ, _ := db.NewOccurrenceStore(conn).GetByID(ctx, id)
	if !occ.Paid() {
		t.Error("occurrence should be paid despite the reported inconsistency")
	}
	reloaded, _ := db.NewBillStore(conn).Get(ctx, bill.ID)
	if !reloaded.TotalDebt.Equal(decimal.Zero) {
		t.Errorf("total_debt = %s, want 0", reloaded.TotalDebt)
	}
}

func TestRegenerateLeavesPaidHistory(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	bill := testBill(t, conn, nil, "120")

	occStore := db.NewOccurrenceStore(conn)
	gen := schedule.NewGenerator(occStore)
	start, end := mustDate("2026-01-01"), mustDate("2026-04-30")
	if _, err := gen.Materialize(ctx, bill, start, end); err != nil {
		t.Fatal(err)
	}

	paid, err := occStore.Get(ctx, bill.ID, mustDate("2026-02-15"))
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.MarkPaid(ctx, paid.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	// Change the cadence to day 1 and regenerate from mid-February.
	billStore := db.NewBillStore(conn)
	if err := billStore.UpdateCadence(ctx, bill.ID, ledger.Monthly(1)); err != nil {
		t.Fatal(err)
	}
	updated, _ := billStore.Get(ctx, bill.ID)
	updated.AmountDue = decimal.RequireFromString("999") // must not touch snapshots

	now := mustDate("2026-02-16")
	if _, err := gen.Regenerate(ctx, *updated, now, now, end); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	// The paid occurrence keeps its amount and paid_at.
	after, err := occStore.Get(ctx, bill.ID, mustDate("2026-02-15"))
	if err != nil {
		t.Fatal(err)
	}
	if after == nil || !after.Paid() {
		t.Fatal("paid occurrence was deleted or unpaid by regeneration")
	}
	if !after.Amount.Equal(decimal.RequireFromString("120")) {
		t.Errorf("paid occurrence amount = %s, want 120", after.Amount)
	}

	// Old future unpaid dates are gone, new cadence dates exist.
	if gone, _ := occStore.Get(ctx, bill.ID, mustDate("2026-03-15")); gone != nil {
		t.Error("future unpaid occurrence under the old cadence survived")
	}
	if added, _ := occStore.Get(ctx, bill.ID, mustDate("2026-03-01")); added == nil {
		t.Error("occurrence under the new cadence was not generated")
	}
}

func TestDeactivateBillDropsFutureUnpaid(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()
	bill := testBill(t, conn, nil, "120")

	occStore := db.NewOccurrenceStore(conn)
	gen := schedule.NewGenerator(occStore)
	if _, err := gen.Materialize(ctx, bill, mustDate("2026-01-01"), mustDate("2026-04-30")); err != nil {
		t.Fatal(err)
	}

	paid, _ := occStore.Get(ctx, bill.ID, mustDate("2026-01-15"))
	if err := engine.MarkPaid(ctx, paid.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := engine.DeactivateBill(ctx, bill.ID, mustDate("2026-01-20")); err != nil {
		t.Fatalf("DeactivateBill: %v", err)
	}

	occs, err := occStore.ListByBill(ctx, bill.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 1 || !occs[0].Paid() {
		t.Errorf("after deactivation %d occurrences remain, want only the paid one", len(occs))
	}

	reloaded, _ := db.NewBillStore(conn).Get(ctx, bill.ID)
	if reloaded.Active {
		t.Error("bill still active")
	}
	if !reloaded.TotalDebt.Equal(decimal.Zero) {
		t.Errorf("total_debt = %s, want 0", reloaded.TotalDebt)
	}
}

func TestUpcomingProjection(t *testing.T) {
	conn := testLedger(t)
	engine := NewEngine(conn, nil)
	ctx := context.Background()

	if err := db.NewPayScheduleStore(conn).Set(ctx, mustDate("2026-08-07")); err != nil {
		t.Fatal(err)
	}

	billStore := db.NewBillStore(conn)
	inWindow := ledger.Bill{Payee: "Electric", Cadence: ledger.Monthly(15), AmountDue: decimal.RequireFromString("120")}
	outOfWindow := ledger.Bill{Payee: "Insurance", Cadence: ledger.Yearly(time.March, 3), AmountDue: decimal.RequireFromString("640")}
	if _, err := billStore.Create(ctx, inWindow); err != nil {
		t.Fatal(err)
	}
	if _, err := billStore.Create(ctx, outOfWindow); err != nil {
		t.Fatal(err)
	}

	upcoming, start, end, err := engine.Upcoming(ctx, mustDate("2026-08-10"))
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if !start.Equal(mustDate("2026-08-07")) || !end.Equal(mustDate("2026-08-20")) {
		t.Errorf("window = [%s, %s]", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if len(upcoming) != 1 {
		t.Fatalf("upcoming has %d bills, want 1", len(upcoming))
	}
	if upcoming[0].Bill.Payee != "Electric" || !upcoming[0].DueDate.Equal(mustDate("2026-08-15")) {
		t.Errorf("upcoming = %s due %s", upcoming[0].Bill.Payee, upcoming[0].DueDate.Format("2006-01-02"))
	}
	if upcoming[0].Paid || upcoming[0].Ignored {
		t.Error("fresh occurrence should be neither paid nor ignored")
	}
}
