package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/ledger"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display ledger statistics",
	Long: `Display statistics about the ledger.

Shows:
- Active account and bill counts
- Total transactions
- Paid and open payment occurrences
- Aggregate outstanding debt

Example:
  homeledger stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	stats, err := db.GetStats(context.Background(), conn)
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Ledger Statistics ===")
	fmt.Printf("Active accounts:     %d\n", stats.Accounts)
	fmt.Printf("Transactions:        %d\n", stats.Transactions)
	fmt.Printf("Active bills:        %d\n", stats.Bills)
	fmt.Printf("Occurrences paid:    %d\n", stats.OccurrencesPaid)
	fmt.Printf("Occurrences open:    %d\n", stats.OccurrencesOpen)
	fmt.Printf("Outstanding debt:    %s\n", ledger.FormatAmount(stats.OutstandingDebt, cfg.Currency))
	fmt.Println()
}
