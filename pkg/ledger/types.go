// Package ledger defines the domain records of the personal finance ledger
// and the validation rules they carry across the storage boundary.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/homeledger/homeledger/pkg/lookup"
)

// Account is one financial account (checking, savings, ...).
// OpeningBalance is the authoritative starting point; posted and available
// balances are projections over the account's transactions.
type Account struct {
	ID             int64
	Institution    string
	Type           lookup.AccountType
	Name           string // user-visible label
	Active         bool
	OpeningBalance decimal.Decimal
	Interest       bool
	APY            *int64
	Opened         time.Time
}

// Transaction is one ledger entry. OrderKey (c_id) is the manual sort key:
// it defines display and balance-computation order independent of insertion
// time. Balance is derived, recomputed on write, never hand-edited.
type Transaction struct {
	ID        int64
	OrderKey  int64
	AccountID int64
	Pending   bool
	Type      lookup.TransType
	Name      string
	Method    lookup.TransMethod
	Category  lookup.TransCat
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	Date      time.Time
}

// Bill is a recurring obligation, optionally linked to an account.
// TotalDebt is derived from the bill's unpaid, non-ignored occurrences.
type Bill struct {
	ID        int64
	Payee     string
	Cadence   Cadence
	AmountDue decimal.Decimal
	TotalDebt decimal.Decimal
	AccountID *int64
	Active    bool
	Notes     string
}

// Occurrence is one concrete, dated instance of a bill's obligation.
// (BillID, DueDate) is the natural key. Amount snapshots the bill's
// amount_due at generation time and is never overwritten by regeneration.
type Occurrence struct {
	ID      int64
	BillID  int64
	DueDate time.Time
	Amount  decimal.Decimal
	PaidAt  *time.Time
	Ignored bool
}

// Paid reports whether the occurrence has been paid.
func (o Occurrence) Paid() bool { return o.PaidAt != nil }

// Outstanding reports whether the occurrence still counts toward the
// bill's total debt.
func (o Occurrence) Outstanding() bool { return o.PaidAt == nil && !o.Ignored }

// PaySchedule is the singleton biweekly income anchor. It projects future
// paydays and is not itself a bill.
type PaySchedule struct {
	Anchor time.Time
}
