// Package lookup defines the closed enumerations behind the ledger's lookup
// tables (account types, transaction types/methods/categories, months) and
// the conversion between Go values and their persisted integer codes.
//
// Codes are stable, small, and never reused; the database rows are pure
// reference data seeded from a YAML catalog.
package lookup

import "fmt"

// AccountType classifies an account.
type AccountType int

const (
	AccountChecking AccountType = iota + 1
	AccountSavings
	AccountCredit
	AccountInvestment
	AccountLoan
)

// TransType classifies a transaction and fixes its amount sign:
// expenses are stored negative, everything else positive.
type TransType int

const (
	TransExpense TransType = iota + 1
	TransDeposit
	TransTransfer
)

// Sign returns -1 for expense types and +1 otherwise. Users may enter any
// sign; the store ignores it and applies this rule.
func (t TransType) Sign() int {
	if t == TransExpense {
		return -1
	}
	return 1
}

// TransMethod is the payment instrument.
type TransMethod int

const (
	MethodNA TransMethod = iota + 1
	MethodDebit
	MethodCredit
	MethodCheck
	MethodACH
	MethodCash
)

// TransCat is the spending category.
type TransCat int

const (
	CatNA TransCat = iota + 1
	CatBills
	CatGroceries
	CatDining
	CatIncome
	CatTransport
	CatOther
)

// Code returns the persisted integer code for an enum value. Values and
// codes coincide; the indirection keeps call sites honest about which
// representation crosses the storage boundary.
func (t AccountType) Code() int { return int(t) }
func (t TransType) Code() int   { return int(t) }
func (t TransMethod) Code() int { return int(t) }
func (t TransCat) Code() int    { return int(t) }

// AccountTypeFromCode converts a persisted code back to the closed enum,
// rejecting codes outside the catalog.
func AccountTypeFromCode(code int) (AccountType, error) {
	if code < int(AccountChecking) || code > int(AccountLoan) {
		return 0, fmt.Errorf("unknown account type code %d", code)
	}
	return AccountType(code), nil
}

// TransTypeFromCode converts a persisted transaction type code.
func TransTypeFromCode(code int) (TransType, error) {
	if code < int(TransExpense) || code > int(TransTransfer) {
		return 0, fmt.Errorf("unknown transaction type code %d", code)
	}
	return TransType(code), nil
}

// TransMethodFromCode converts a persisted method code. Code 0 (legacy
// "unset") maps to MethodNA.
func TransMethodFromCode(code int) (TransMethod, error) {
	if code == 0 {
		return MethodNA, nil
	}
	if code < int(MethodNA) || code > int(MethodCash) {
		return 0, fmt.Errorf("unknown transaction method code %d", code)
	}
	return TransMethod(code), nil
}

// TransCatFromCode converts a persisted category code. Code 0 (legacy
// "unset") maps to CatNA.
func TransCatFromCode(code int) (TransCat, error) {
	if code == 0 {
		return CatNA, nil
	}
	if code < int(CatNA) || code > int(CatOther) {
		return 0, fmt.Errorf("unknown transaction category code %d", code)
	}
	return TransCat(code), nil
}
