package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/homeledger/homeledger/pkg/db"
	"github.com/homeledger/homeledger/pkg/ledger"
	"github.com/homeledger/homeledger/pkg/lookup"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var (
	accInstitution string
	accName        string
	accType        string
	accBalance     string
	accInterest    bool
	accID          int64
)

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	Long: `Create an account with an opening balance.

Example:
  homeledger account add --institution "First Bank" --name Checking --type checking --balance 1200.00`,
	Run: runAccountAdd,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active accounts with balances",
	Run:   runAccountList,
}

var accountCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Deactivate an account",
	Run:   runAccountClose,
}

func init() {
	accountAddCmd.Flags().StringVar(&accInstitution, "institution", "", "Institution name (required)")
	accountAddCmd.Flags().StringVar(&accName, "name", "", "Account name (required)")
	accountAddCmd.Flags().StringVar(&accType, "type", "checking", "Account type (checking|savings|credit|investment|loan)")
	accountAddCmd.Flags().StringVar(&accBalance, "balance", "0", "Opening balance")
	accountAddCmd.Flags().BoolVar(&accInterest, "interest", false, "Account accrues interest")
	accountAddCmd.MarkFlagRequired("institution")
	accountAddCmd.MarkFlagRequired("name")

	accountCloseCmd.Flags().Int64Var(&accID, "id", 0, "Account id (required)")
	accountCloseCmd.MarkFlagRequired("id")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountCloseCmd)
}

func parseAccountType(s string) (lookup.AccountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checking":
		return lookup.AccountChecking, nil
	case "savings":
		return lookup.AccountSavings, nil
	case "credit":
		return lookup.AccountCredit, nil
	case "investment":
		return lookup.AccountInvestment, nil
	case "loan":
		return lookup.AccountLoan, nil
	}
	return 0, fmt.Errorf("unknown account type %q", s)
}

func runAccountAdd(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	accType, err := parseAccountType(accType)
	exitOnError(err, "invalid account type")

	balance, err := ledger.ParseAmount(accBalance)
	exitOnError(err, "invalid opening balance")

	ctx := context.Background()
	id, err := db.NewAccountStore(conn).Create(ctx, ledger.Account{
		Institution:    accInstitution,
		Type:           accType,
		Name:           accName,
		OpeningBalance: balance,
		Interest:       accInterest,
	})
	exitOnError(err, "failed to create account")

	fmt.Printf("Created account %d (%s / %s)\n", id, accInstitution, accName)
}

func runAccountList(cmd *cobra.Command, args []string) {
	cfg, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	ctx := context.Background()
	store := db.NewAccountStore(conn)
	accounts, err := store.List(ctx, true)
	exitOnError(err, "failed to list accounts")

	if len(accounts) == 0 {
		fmt.Println("No accounts")
		return
	}

	lastInstitution := ""
	for _, acc := range accounts {
		if acc.Institution != lastInstitution {
			fmt.Printf("%s\n", acc.Institution)
			lastInstitution = acc.Institution
		}
		balances, err := store.Header(ctx, acc.ID)
		exitOnError(err, "failed to compute balances")
		fmt.Printf("  [%d] %-20s posted %12s  available %12s\n",
			acc.ID, acc.Name,
			ledger.FormatAmount(balances.Posted, cfg.Currency),
			ledger.FormatAmount(balances.Available, cfg.Currency))
	}
}

func runAccountClose(cmd *cobra.Command, args []string) {
	_, conn, err := openLedger()
	exitOnError(err, "failed to open ledger")
	defer conn.Close()

	err = db.NewAccountStore(conn).SetActive(context.Background(), accID, false)
	exitOnError(err, "failed to deactivate account")

	fmt.Printf("Account %d deactivated\n", accID)
}
