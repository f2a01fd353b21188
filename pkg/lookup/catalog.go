package lookup

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one lookup row: a stable integer code and its display label.
type Entry struct {
	Code  int    `yaml:"code"`
	Label string `yaml:"label"`
}

// Catalog holds the reference data for every lookup table. It is loaded
// once at startup and treated as immutable.
type Catalog struct {
	AccountTypes []Entry `yaml:"account_types"`
	TransTypes   []Entry `yaml:"trans_types"`
	TransMethods []Entry `yaml:"trans_methods"`
	TransCats    []Entry `yaml:"trans_cats"`

	accountTypeLabels map[int]string
	transTypeLabels   map[int]string
	transMethodLabels map[int]string
	transCatLabels    map[int]string
}

// Default returns the built-in catalog matching the enum constants in this
// package. A YAML file may extend labels but codes are fixed.
func Default() *Catalog {
	c := &Catalog{
		AccountTypes: []Entry{
			{AccountChecking.Code(), "Checking"},
			{AccountSavings.Code(), "Savings"},
			{AccountCredit.Code(), "Credit"},
			{AccountInvestment.Code(), "Investment"},
			{AccountLoan.Code(), "Loan"},
		},
		TransTypes: []Entry{
			{TransExpense.Code(), "Expense"},
			{TransDeposit.Code(), "Deposit"},
			{TransTransfer.Code(), "Transfer"},
		},
		TransMethods: []Entry{
			{MethodNA.Code(), "N/A"},
			{MethodDebit.Code(), "Debit"},
			{MethodCredit.Code(), "Credit"},
			{MethodCheck.Code(), "Check"},
			{MethodACH.Code(), "ACH"},
			{MethodCash.Code(), "Cash"},
		},
		TransCats: []Entry{
			{CatNA.Code(), "N/A"},
			{CatBills.Code(), "Bills"},
			{CatGroceries.Code(), "Groceries"},
			{CatDining.Code(), "Dining"},
			{CatIncome.Code(), "Income"},
			{CatTransport.Code(), "Transport"},
			{CatOther.Code(), "Other"},
		},
	}
	c.buildLabelMaps()
	return c
}

// LoadCatalog reads a catalog from a YAML file. Missing sections fall back
// to the built-in defaults so a partial file only overrides what it names.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse lookup catalog: %w", err)
	}

	def := Default()
	if len(c.AccountTypes) == 0 {
		c.AccountTypes = def.AccountTypes
	}
	if len(c.TransTypes) == 0 {
		c.TransTypes = def.TransTypes
	}
	if len(c.TransMethods) == 0 {
		c.TransMethods = def.TransMethods
	}
	if len(c.TransCats) == 0 {
		c.TransCats = def.TransCats
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	c.buildLabelMaps()
	return &c, nil
}

func (c *Catalog) validate() error {
	for _, section := range []struct {
		name    string
		entries []Entry
	}{
		{"account_types", c.AccountTypes},
		{"trans_types", c.TransTypes},
		{"trans_methods", c.TransMethods},
		{"trans_cats", c.TransCats},
	} {
		seen := make(map[int]bool, len(section.entries))
		for _, e := range section.entries {
			if e.Code <= 0 {
				return fmt.Errorf("lookup catalog %s: code %d must be positive", section.name, e.Code)
			}
			if e.Label == "" {
				return fmt.Errorf("lookup catalog %s: code %d has empty label", section.name, e.Code)
			}
			if seen[e.Code] {
				return fmt.Errorf("lookup catalog %s: duplicate code %d", section.name, e.Code)
			}
			seen[e.Code] = true
		}
	}
	return nil
}

func (c *Catalog) buildLabelMaps() {
	c.accountTypeLabels = labelMap(c.AccountTypes)
	c.transTypeLabels = labelMap(c.TransTypes)
	c.transMethodLabels = labelMap(c.TransMethods)
	c.transCatLabels = labelMap(c.TransCats)
}

func labelMap(entries []Entry) map[int]string {
	m := make(map[int]string, len(entries))
	for _, e := range entries {
		m[e.Code] = e.Label
	}
	return m
}

// AccountTypeLabel returns the display label for an account type.
func (c *Catalog) AccountTypeLabel(t AccountType) string { return c.accountTypeLabels[t.Code()] }

// TransTypeLabel returns the display label for a transaction type.
func (c *Catalog) TransTypeLabel(t TransType) string { return c.transTypeLabels[t.Code()] }

// TransMethodLabel returns the display label for a payment method.
func (c *Catalog) TransMethodLabel(m TransMethod) string { return c.transMethodLabels[m.Code()] }

// TransCatLabel returns the display label for a category.
func (c *Catalog) TransCatLabel(cat TransCat) string { return c.transCatLabels[cat.Code()] }

// Months lists the twelve month codes (1..12) with English labels, for the
// months reference table.
func Months() []Entry {
	out := make([]Entry, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, Entry{Code: int(m), Label: m.String()})
	}
	return out
}
