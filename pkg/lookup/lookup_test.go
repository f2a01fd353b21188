package lookup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCodeRoundTrips(t *testing.T) {
	for _, at := range []AccountType{AccountChecking, AccountSavings, AccountCredit, AccountInvestment, AccountLoan} {
		got, err := AccountTypeFromCode(at.Code())
		if err != nil || got != at {
			t.Errorf("AccountTypeFromCode(%d) = %v, %v", at.Code(), got, err)
		}
	}
	for _, tt := range []TransType{TransExpense, TransDeposit, TransTransfer} {
		got, err := TransTypeFromCode(tt.Code())
		if err != nil || got != tt {
			t.Errorf("TransTypeFromCode(%d) = %v, %v", tt.Code(), got, err)
		}
	}
	if _, err := AccountTypeFromCode(99); err == nil {
		t.Error("AccountTypeFromCode(99) should fail")
	}
	if _, err := TransTypeFromCode(0); err == nil {
		t.Error("TransTypeFromCode(0) should fail")
	}
}

func TestLegacyZeroCodes(t *testing.T) {
	// Legacy rows use 0 for "unset" method/category.
	m, err := TransMethodFromCode(0)
	if err != nil || m != MethodNA {
		t.Errorf("TransMethodFromCode(0) = %v, %v, want MethodNA", m, err)
	}
	c, err := TransCatFromCode(0)
	if err != nil || c != CatNA {
		t.Errorf("TransCatFromCode(0) = %v, %v, want CatNA", c, err)
	}
}

func TestTransTypeSign(t *testing.T) {
	if TransExpense.Sign() != -1 {
		t.Error("expense sign should be -1")
	}
	if TransDeposit.Sign() != 1 || TransTransfer.Sign() != 1 {
		t.Error("non-expense sign should be +1")
	}
}

func TestDefaultCatalogLabels(t *testing.T) {
	c := Default()
	tests := []struct {
		got  string
		want string
	}{
		{c.AccountTypeLabel(AccountChecking), "Checking"},
		{c.TransTypeLabel(TransExpense), "Expense"},
		{c.TransMethodLabel(MethodNA), "N/A"},
		{c.TransCatLabel(CatBills), "Bills"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("label = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lookups.yaml")

	content := `
trans_cats:
  - code: 1
    label: "N/A"
  - code: 2
    label: "Utilities"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	// Overridden section applies, others fall back to defaults.
	if got := c.TransCatLabel(CatBills); got != "Utilities" {
		t.Errorf("TransCatLabel(2) = %q, want Utilities", got)
	}
	if got := c.TransTypeLabel(TransExpense); got != "Expense" {
		t.Errorf("TransTypeLabel = %q, want Expense", got)
	}
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lookups.yaml")

	content := `
trans_types:
  - code: 1
    label: "Expense"
  - code: 1
    label: "Expense Again"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCatalog(path); err == nil {
		t.Error("LoadCatalog should reject duplicate codes")
	}
}

func TestMonths(t *testing.T) {
	months := Months()
	if len(months) != 12 {
		t.Fatalf("Months() returned %d entries, want 12", len(months))
	}
	if months[0].Code != 1 || months[0].Label != "January" {
		t.Errorf("first month = %+v", months[0])
	}
	if months[11].Code != 12 || months[11].Label != "December" {
		t.Errorf("last month = %+v", months[11])
	}
}
