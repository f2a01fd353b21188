package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/ledger"
	"github.com/homeledger/homeledger/pkg/lookup"
	"github.com/homeledger/homeledger/pkg/reconcile"
)

var txnCmd = &cobra.Command{
	Use:   "txn",
	Short: "Manage transactions",
}

var (
	txnAccount int64
	txnID      int64
	txnType    string
	txnName    string
	txnMethod  string
	txnCat     string
	txnAmount  string
	txnDate    string
	txnPending bool
	txnDir     string
)

var txnAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a transaction to an account",
	Long: `Append a transaction. The amount sign is derived from the type
(expenses negative, deposits positive) regardless of the entered sign, and
the account's running balances are recomputed.

Example:
  homeledger txn add --account 1 --type expense --name "Groceries" --cat groceries --amount 54.10`,
	Run: runTxnAdd,
}

var txnListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an account's transactions in ledger order",
	Run:   runTxnList,
}

var txnEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a transaction and recompute balances after it",
	Run:   runTxnEdit,
}

var txnDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a transaction and recompute balances after it",
	Run:   runTxnDelete,
}

var txnMoveCmd = &cobra.Command{
	Use:   "move",
	Short: "Swap a transaction with its neighbor in manual sort order",
	Run:   runTxnMove,
}

func init() {
	addFlags := func(c *cobra.Command) {
		c.Flags().Int64Var(&txnAccount, "account", 0, "Account id (required)")
		c.Flags().StringVar(&txnType, "type", "expense", "Transaction type (expense|deposit|transfer)")
		c.Flags().StringVar(&txnName, "name", "", "Description (required)")
		c.Flags().StringVar(&txnMethod, "method", "n/a", "Method (n/a|debit|credit|check|ach|cash)")
		c.Flags().StringVar(&txnCat, "cat", "n/a", "Category (n/a|bills|groceries|dining|income|transport|other)")
		c.Flags().StringVar(&txnAmount, "amount", "", "Amount (required)")
		c.Flags().StringVar(&txnDate, "date", "", "Date YYYY-MM-DD (default today)")
		c.Flags().BoolVar(&txnPending, "pending", false, "Mark as pending")
		c.MarkFlagRequired("account")
		c.MarkFlagRequired("name")
		c.MarkFlagRequired("amount")
	}
	addFlags(txnAddCmd)

	txnListCmd.Flags().Int64Var(&txnAccount, "account", 0, "Account id (required)")
	txnListCmd.MarkFlagRequired("account")

	addFlags(txnEditCmd)
	txnEditCmd.Flags().Int64Var(&txnID, "id", 0, "Transaction id (required)")
	txnEditCmd.MarkFlagRequired("id")

	txnDeleteCmd.Flags().Int64Var(&txnAccount, "account", 0, "Account id (required)")
	txnDeleteCmd.Flags().Int64Var(&txnID, "id", 0, "Transaction id (required)")
	txnDeleteCmd.MarkFlagRequired("account")
	txnDeleteCmd.MarkFlagRequired("id")

	txnMoveCmd.Flags().Int64Var(&txnAccount, "account", 0, "Account id (required)")
	txnMoveCmd.Flags().Int64Var(&txnID, "id", 0, "Transaction id (required)")
	txnMoveCmd.Flags().StringVar(&txnDir, "dir", "up", "Direction (up|down)")
	txnMoveCmd.MarkFlagRequired("account")
	txnMoveCmd.MarkFlagRequired("id")

	txnCmd.AddCommand(txnAddCmd)
	txnCmd.AddCommand(txnListCmd)
	txnCmd.AddCommand(txnEditCmd)
	txnCmd.AddCommand(txnDeleteCmd)
	txnCmd.AddCommand(txnMoveCmd)
}

func parseTransType(s string) (lookup.TransType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense":
		return lookup.TransExpense, nil
	case "deposit":
		return lookup.TransDeposit, nil
	case "transfer":
		return lookup.TransTransfer, nil
	}
	return 0, fmt.Errorf("unknown transaction type %q", s)
}

func parseTransMethod(s string) (lookup.TransMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na":
		return lookup.MethodNA, nil
	case "debit":
		return lookup.MethodDebit, nil
	case "credit":
		return lookup.MethodCredit, nil
	case "check":
		return lookup.MethodCheck, nil
	case "ach":
		return lookup.MethodACH, nil
	case "cash":
		return lookup.MethodCash, nil
	}
	return 0, fmt.Errorf("unknown method %q", s)
}

func parseTransCat(s string) (lookup.TransCat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na":
		return lookup.CatNA, nil
	case "bills":
		return lookup.CatBills, nil
	case "groceries":
		return lookup.CatGroceries, nil
	case "dining":
		return lookup.CatDining, nil
	case "income":
		return lookup.CatIncome, nil
	case "transport":
		return lookup.CatTransport, nil
	case "other":
		return lookup.CatOther, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", s)
}

func buildTxnFromFlags() (ledger.Transaction, error) {
	var txn ledger.Transaction
	var err error

	if txn.Type, err = parseTransType(txnType); err != nil {
		return txn, err
	}
	if txn.Method, err = parseTransMethod(txnMethod); err != nil {
		return txn, err
	}
	if txn.Category, err = parseTransCat(txnCat); err != nil {
		return txn, err
	}
	if txn.Amount, err = ledger.ParseAmount(txnAmount); err != nil {
		return txn, err
	}
	if txn.Date, err = parseDateFlag(txnDate); err != nil {
		return txn, err
	}
	txn.AccountID = txnAccount
	txn.Name = txnName
	txn.Pending = txnPending
	return txn, nil
}

func runTxnAdd(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	txn, err := buildTxnFromFlags()
	exitOnError(err, "invalid transaction")

	engine := reconcile.NewEngine(conn, slog.Default())
	id, err := engine.ApplyTransaction(context.Background(), txn)
	exitOnError(err, "failed to add transaction")

	fmt.Printf("Added transaction %d\n", id)
}

func runTxnList(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	txns, err := db.NewTransactionStore(conn).List(context.Background(), txnAccount)
	exitOnError(err, "failed to list transactions")

	if len(txns) == 0 {
		fmt.Println("No transactions")
		return
	}

	// Display newest first, like a bank statement.
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		state := "cleared"
		if t.Pending {
			state = "pending"
		}
		fmt.Printf("[%d] %s  %-8s %-24s %12s  balance %12s\n",
			t.ID, t.Date.Format("2006-01-02"), state, t.Name,
			ledger.FormatAmount(t.Amount, cfg.Currency),
			ledger.FormatAmount(t.Balance, cfg.Currency))
	}
}

func runTxnEdit(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	txn, err := buildTxnFromFlags()
	exitOnError(err, "invalid transaction")
	txn.ID = txnID

	engine := reconcile.NewEngine(conn, slog.Default())
	err = engine.EditTransaction(context.Background(), txn)
	exitOnError(err, "failed to edit transaction")

	fmt.Printf("Updated transaction %d\n", txnID)
}

func runTxnDelete(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	engine := reconcile.NewEngine(conn, slog.Default())
	err = engine.DeleteTransaction(context.Background(), txnAccount, txnID)
	exitOnError(err, "failed to delete transaction")

	fmt.Printf("Deleted transaction %d\n", txnID)
}

func runTxnMove(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	up := txnDir != "down"
	engine := reconcile.NewEngine(conn, slog.Default())
	err = engine.MoveTransaction(context.Background(), txnAccount, txnID, up)
	exitOnError(err, "failed to move transaction")

	fmt.Printf("Moved transaction %d %s\n", txnID, txnDir)
}
