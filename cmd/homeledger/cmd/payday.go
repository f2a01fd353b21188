package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/ledger"
	"github.com/homeledger/homeledger/pkg/reconcile"
)

var paydayAnchor string

var paydayCmd = &cobra.Command{
	Use:   "payday",
	Short: "Set the biweekly payday anchor",
	Long: `Record a known payday. Income is assumed biweekly; the anchor
defines the 14-day pay windows used by the upcoming view.

Example:
  homeledger payday --anchor 2026-08-21`,
	Run: runPayday,
}

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "Show bills due in the current pay window",
	Run:   runUpcoming,
}

func init() {
	paydayCmd.Flags().StringVar(&paydayAnchor, "anchor", "", "A known payday YYYY-MM-DD (required)")
	paydayCmd.MarkFlagRequired("anchor")
}

func runPayday(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	anchor, err := parseDateFlag(paydayAnchor)
	exitOnError(err, "invalid anchor date")

	err = db.NewPayScheduleStore(conn).Set(context.Background(), anchor)
	exitOnError(err, "failed to set pay schedule")

	fmt.Printf("Payday anchor set to %s (biweekly)\n", anchor.Format("2006-01-02"))
}

func runUpcoming(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	engine := reconcile.NewEngine(conn, slog.Default())
	upcoming, start, end, err := engine.Upcoming(context.Background(), time.Now())
	exitOnError(err, "failed to project upcoming bills")

	fmt.Printf("Pay window %s .. %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	if len(upcoming) == 0 {
		fmt.Println("No bills due in this window")
		return
	}

	for _, u := range upcoming {
		state := "due"
		switch {
		case u.Paid:
			state = "paid"
		case u.Ignored:
			state = "ignored"
		}
		fmt.Printf("%s  %-20s %12s  %s\n",
			u.DueDate.Format("2006-01-02"), u.Bill.Payee,
			ledger.FormatAmount(u.Bill.AmountDue, cfg.Currency), state)
	}
}
