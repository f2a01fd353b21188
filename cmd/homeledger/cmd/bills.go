package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/ledger"
	"github.com/homeledger/homeledger/pkg/reconcile"
	"github.com/homeledger/homeledger/pkg/schedule"
)

var billCmd = &cobra.Command{
	Use:   "bill",
	Short: "Manage recurring bills and payment occurrences",
}

var (
	billPayee    string
	billAmount   string
	billFreq     string
	billDueDay   int
	billDueMonth int
	billDueDOM   int
	billAccount  int64
	billNotes    string
	billID       int64
	billFrom     string
	billTo       string
	billDue      string
	billAll      bool
)

var billAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a recurring bill",
	Long: `Create a recurring bill. Monthly bills take --due-day; yearly bills
take --due-month and --due-dom. The two sets are mutually exclusive.

Example:
  homeledger bill add --payee Electric --amount 120.00 --freq monthly --due-day 15
  homeledger bill add --payee Insurance --amount 640.00 --freq yearly --due-month 3 --due-dom 3`,
	Run: runBillAdd,
}

var billListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bills",
	Run:   runBillList,
}

var billGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Materialize payment occurrences over a horizon",
	Long: `Generate payment occurrences for every active bill across a date
horizon. Generation is idempotent: re-running the same horizon inserts
nothing new and never touches existing occurrences.

Example:
  homeledger bill generate --from 2026-01-01 --to 2026-06-30`,
	Run: runBillGenerate,
}

var billRecadenceCmd = &cobra.Command{
	Use:   "recadence",
	Short: "Change a bill's cadence and regenerate future occurrences",
	Long: `Change a bill's recurrence rule. Future unpaid occurrences are
regenerated under the new cadence; paid history is never altered.`,
	Run: runBillRecadence,
}

var billAmountCmd = &cobra.Command{
	Use:   "amount",
	Short: "Change a bill's amount for future occurrences",
	Long: `Change the amount due per occurrence. Only occurrences generated
from now on use the new amount; existing snapshots keep theirs.`,
	Run: runBillAmount,
}

var billPayCmd = &cobra.Command{
	Use:   "pay",
	Short: "Mark an occurrence paid",
	Run:   runBillPay,
}

var billIgnoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Mark an occurrence ignored (excluded from totals)",
	Run:   runBillIgnore,
}

var billCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Deactivate a bill, dropping its future unpaid occurrences",
	Run:   runBillClose,
}

func init() {
	cadenceFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&billFreq, "freq", "monthly", "Cadence (monthly|yearly)")
		c.Flags().IntVar(&billDueDay, "due-day", 0, "Monthly: due day of month (1-31)")
		c.Flags().IntVar(&billDueMonth, "due-month", 0, "Yearly: due month (1-12)")
		c.Flags().IntVar(&billDueDOM, "due-dom", 0, "Yearly: due day of month (1-31)")
	}

	billAddCmd.Flags().StringVar(&billPayee, "payee", "", "Payee name (required)")
	billAddCmd.Flags().StringVar(&billAmount, "amount", "", "Amount due per occurrence (required)")
	cadenceFlags(billAddCmd)
	billAddCmd.Flags().Int64Var(&billAccount, "account", 0, "Linked account id (optional)")
	billAddCmd.Flags().StringVar(&billNotes, "notes", "", "Notes")
	billAddCmd.MarkFlagRequired("payee")
	billAddCmd.MarkFlagRequired("amount")

	billListCmd.Flags().BoolVar(&billAll, "all", false, "Include inactive bills")

	billGenerateCmd.Flags().StringVar(&billFrom, "from", "", "Horizon start YYYY-MM-DD (default today)")
	billGenerateCmd.Flags().StringVar(&billTo, "to", "", "Horizon end YYYY-MM-DD (default start + configured horizon)")

	billRecadenceCmd.Flags().Int64Var(&billID, "id", 0, "Bill id (required)")
	cadenceFlags(billRecadenceCmd)
	billRecadenceCmd.MarkFlagRequired("id")

	billAmountCmd.Flags().Int64Var(&billID, "id", 0, "Bill id (required)")
	billAmountCmd.Flags().StringVar(&billAmount, "amount", "", "New amount due (required)")
	billAmountCmd.MarkFlagRequired("id")
	billAmountCmd.MarkFlagRequired("amount")

	for _, c := range []*cobra.Command{billPayCmd, billIgnoreCmd} {
		c.Flags().Int64Var(&billID, "id", 0, "Bill id (required)")
		c.Flags().StringVar(&billDue, "due", "", "Occurrence due date YYYY-MM-DD (required)")
		c.MarkFlagRequired("id")
		c.MarkFlagRequired("due")
	}

	billCloseCmd.Flags().Int64Var(&billID, "id", 0, "Bill id (required)")
	billCloseCmd.MarkFlagRequired("id")

	billCmd.AddCommand(billAddCmd)
	billCmd.AddCommand(billListCmd)
	billCmd.AddCommand(billGenerateCmd)
	billCmd.AddCommand(billRecadenceCmd)
	billCmd.AddCommand(billAmountCmd)
	billCmd.AddCommand(billPayCmd)
	billCmd.AddCommand(billIgnoreCmd)
	billCmd.AddCommand(billCloseCmd)
}

func cadenceFromFlags() (ledger.Cadence, error) {
	var c ledger.Cadence
	switch ledger.Frequency(billFreq) {
	case ledger.FreqMonthly:
		c = ledger.Monthly(billDueDay)
	case ledger.FreqYearly:
		c = ledger.Yearly(time.Month(billDueMonth), billDueDOM)
	default:
		return c, fmt.Errorf("unknown frequency %q", billFreq)
	}
	return c, c.Validate()
}

func runBillAdd(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	cadence, err := cadenceFromFlags()
	exitOnError(err, "invalid cadence")

	amount, err := ledger.ParseAmount(billAmount)
	exitOnError(err, "invalid amount")

	bill := ledger.Bill{
		Payee:     billPayee,
		Cadence:   cadence,
		AmountDue: amount,
		Notes:     billNotes,
	}
	if billAccount != 0 {
		bill.AccountID = &billAccount
	}

	id, err := db.NewBillStore(conn).Create(context.Background(), bill)
	exitOnError(err, "failed to create bill")

	fmt.Printf("Created bill %d (%s)\n", id, billPayee)
}

func runBillList(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	bills, err := db.NewBillStore(conn).List(context.Background(), !billAll)
	exitOnError(err, "failed to list bills")

	if len(bills) == 0 {
		fmt.Println("No bills")
		return
	}

	for _, b := range bills {
		var rule string
		switch b.Cadence.Frequency {
		case ledger.FreqMonthly:
			rule = fmt.Sprintf("monthly on day %d", b.Cadence.DueDay)
		case ledger.FreqYearly:
			rule = fmt.Sprintf("yearly on %s %d", b.Cadence.DueMonth, b.Cadence.DueDOM)
		}
		state := ""
		if !b.Active {
			state = "  (inactive)"
		}
		fmt.Printf("[%d] %-20s %12s  %-22s debt %12s%s\n",
			b.ID, b.Payee,
			ledger.FormatAmount(b.AmountDue, cfg.Currency), rule,
			ledger.FormatAmount(b.TotalDebt, cfg.Currency), state)
	}
}

func runBillGenerate(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	start, err := parseDateFlag(billFrom)
	exitOnError(err, "invalid --from date")
	var end time.Time
	if billTo == "" {
		end = start.AddDate(0, 0, cfg.HorizonDays)
	} else {
		end, err = parseDateFlag(billTo)
		exitOnError(err, "invalid --to date")
	}

	ctx := context.Background()
	bills, err := db.NewBillStore(conn).List(ctx, true)
	exitOnError(err, "failed to list bills")

	gen := schedule.NewGenerator(db.NewOccurrenceStore(conn))
	engine := reconcile.NewEngine(conn, slog.Default())

	total := 0
	for _, b := range bills {
		n, err := gen.Materialize(ctx, b, start, end)
		exitOnError(err, fmt.Sprintf("failed to generate occurrences for bill %d", b.ID))
		if n > 0 {
			exitOnError(engine.RecomputeDebt(ctx, b.ID), "failed to recompute total debt")
		}
		total += n
		slog.Debug("Generated occurrences", "bill_id", b.ID, "payee", b.Payee, "inserted", n)
	}

	fmt.Printf("Generated %d occurrence(s) for %d bill(s) between %s and %s\n",
		total, len(bills), start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func runBillRecadence(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	cadence, err := cadenceFromFlags()
	exitOnError(err, "invalid cadence")

	ctx := context.Background()
	store := db.NewBillStore(conn)
	err = store.UpdateCadence(ctx, billID, cadence)
	exitOnError(err, "failed to update cadence")

	bill, err := store.Get(ctx, billID)
	exitOnError(err, "failed to reload bill")
	if bill == nil {
		exitOnError(fmt.Errorf("bill %d not found", billID), "failed to reload bill")
	}

	now := time.Now()
	start := schedule.Normalize(now)
	end := start.AddDate(0, 0, cfg.HorizonDays)

	gen := schedule.NewGenerator(db.NewOccurrenceStore(conn))
	n, err := gen.Regenerate(ctx, *bill, now, start, end)
	exitOnError(err, "failed to regenerate occurrences")

	engine := reconcile.NewEngine(conn, slog.Default())
	exitOnError(engine.RecomputeDebt(ctx, billID), "failed to recompute total debt")

	fmt.Printf("Updated bill %d cadence; regenerated %d future occurrence(s)\n", billID, n)
}

func runBillAmount(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	amount, err := ledger.ParseAmount(billAmount)
	exitOnError(err, "invalid amount")

	err = db.NewBillStore(conn).UpdateAmountDue(context.Background(), billID, amount)
	exitOnError(err, "failed to update amount")

	fmt.Printf("Bill %d amount set to %s for future occurrences\n",
		billID, ledger.FormatAmount(amount, cfg.Currency))
}

func resolveOccurrence(ctx context.Context, conn *db.Connection) *ledger.Occurrence {
	due, err := parseDateFlag(billDue)
	exitOnError(err, "invalid --due date")

	occ, err := db.NewOccurrenceStore(conn).Get(ctx, billID, due)
	exitOnError(err, "failed to load occurrence")
	if occ == nil {
		// Materialize the single occurrence on demand, as the original
		// mark-paid flow did.
		bill, err := db.NewBillStore(conn).Get(ctx, billID)
		exitOnError(err, "failed to load bill")
		if bill == nil {
			exitOnError(fmt.Errorf("bill %d not found", billID), "failed to load bill")
		}
		_, err = db.NewOccurrenceStore(conn).Insert(ctx, billID, due, bill.AmountDue)
		var dup *ledger.UniquenessViolation
		if err != nil && !errors.As(err, &dup) {
			exitOnError(err, "failed to create occurrence")
		}
		occ, err = db.NewOccurrenceStore(conn).Get(ctx, billID, due)
		exitOnError(err, "failed to load occurrence")
	}
	return occ
}

func runBillPay(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	ctx := context.Background()
	occ := resolveOccurrence(ctx, conn)

	engine := reconcile.NewEngine(conn, slog.Default())
	err = engine.MarkPaid(ctx, occ.ID, time.Now())
	var inconsistent *ledger.InconsistentBalanceState
	if errors.As(err, &inconsistent) {
		fmt.Printf("Warning: %v\n", inconsistent)
	} else {
		exitOnError(err, "failed to mark occurrence paid")
	}

	fmt.Printf("Marked bill %d occurrence %s paid\n", billID, billDue)
}

func runBillIgnore(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	ctx := context.Background()
	occ := resolveOccurrence(ctx, conn)

	engine := reconcile.NewEngine(conn, slog.Default())
	err = engine.MarkIgnored(ctx, occ.ID)
	exitOnError(err, "failed to mark occurrence ignored")

	fmt.Printf("Marked bill %d occurrence %s ignored\n", billID, billDue)
}

func runBillClose(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	engine := reconcile.NewEngine(conn, slog.Default())
	err = engine.DeactivateBill(context.Background(), billID, time.Now())
	exitOnError(err, "failed to deactivate bill")

	fmt.Printf("Bill %d deactivated\n", billID)
}
