// Package cmd provides CLI commands for homeledger.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/homeledger/homeledger/pkg/config"
	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/lookup"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "homeledger",
	Short: "Personal finance ledger with recurring-bill tracking",
	Long: `homeledger is a personal finance ledger CLI.

It tracks:
- Bank/savings accounts with running balances
- Ordered transaction histories (pending and cleared)
- Recurring bills with monthly/yearly cadences
- Generated payment occurrences and their paid/ignored state

Example:
  homeledger account add --institution "First Bank" --name Checking --type checking --balance 1200.00
  homeledger bill generate --from 2026-01-01 --to 2026-06-30
  homeledger upcoming`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(txnCmd)
	rootCmd.AddCommand(billCmd)
	rootCmd.AddCommand(paydayCmd)
	rootCmd.AddCommand(upcomingCmd)
	rootCmd.AddCommand(statsCmd)
}

// getConfigFile returns the config file path override, if any.
func getConfigFile() string {
	return cfgFile
}

// openLedger loads configuration and opens the database.
func openLedger() (*config.Config, *db.Connection, error) {
	cfg, err := config.Load(getConfigFile())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	catalog := lookup.Default()
	if cfg.LookupsFile != "" {
		if catalog, err = lookup.LoadCatalog(cfg.LookupsFile); err != nil {
			return nil, nil, err
		}
	}

	slog.Debug("Opening database", "path", cfg.DBPath)
	conn, err := db.Open(cfg.DBPath, catalog)
	if err != nil {
		return nil, nil, err
	}
	return cfg, conn, nil
}

// exitOnError handles errors and exits.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}
