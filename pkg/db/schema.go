package db

import (
	"fmt"

	"github.com/homeledger/homeledger/pkg/lookup"
)

// Schema defines the SQL statements to create database tables.
//
// Monetary columns are TEXT holding decimal values (scale up to 9); dates
// are TEXT YYYY-MM-DD; timestamps are RFC 3339 TEXT. accounts.active and
// accounts.interest keep the legacy 'YES'/'NO' encoding, newer flags are
// true booleans (INTEGER 0/1).
const Schema = `
-- Lookup tables: stable small integer IDs, never reused.
CREATE TABLE IF NOT EXISTS account_types (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trans_types (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trans_methods (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trans_cats (
    id INTEGER PRIMARY KEY,
    label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS months (
    id INTEGER PRIMARY KEY,              -- 1..12
    label TEXT NOT NULL
);

-- Accounts. balance is the OPENING balance; current balances are derived
-- from the transaction sequence.
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    institution TEXT NOT NULL,
    type INTEGER NOT NULL REFERENCES account_types(id),
    acc_id TEXT NOT NULL,                -- user-visible account name
    active TEXT NOT NULL DEFAULT 'YES',  -- legacy 'YES'/'NO'
    balance TEXT NOT NULL DEFAULT '0',   -- opening balance, decimal text
    interest TEXT NOT NULL DEFAULT 'NO', -- legacy 'YES'/'NO'
    apy INTEGER,
    opened TEXT NOT NULL                 -- YYYY-MM-DD
);

-- Transactions. c_id is the manual sort key: display/processing order is
-- (c_id, id), independent of creation time. balance is derived and
-- recomputed on write.
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    c_id INTEGER NOT NULL,
    acc_id INTEGER NOT NULL REFERENCES accounts(id),
    pending INTEGER NOT NULL DEFAULT 0,
    type INTEGER NOT NULL REFERENCES trans_types(id),
    name TEXT NOT NULL,
    method INTEGER NOT NULL REFERENCES trans_methods(id),
    cat INTEGER NOT NULL REFERENCES trans_cats(id),
    amount TEXT NOT NULL,                -- signed decimal text
    balance TEXT NOT NULL DEFAULT '0',   -- derived running balance
    date TEXT NOT NULL                   -- YYYY-MM-DD
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_order
    ON transactions(acc_id, c_id, id);

-- Bills. Cadence fields are mutually exclusive: monthly rows carry due_day
-- only, yearly rows carry due_month + due_dom only.
CREATE TABLE IF NOT EXISTS bills (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    payee TEXT NOT NULL,
    frequency TEXT NOT NULL CHECK (frequency IN ('monthly','yearly')),
    amount_due TEXT NOT NULL,
    total_debt TEXT NOT NULL DEFAULT '0',
    account_id INTEGER REFERENCES accounts(id),
    due_day INTEGER,                     -- monthly: 1..31
    due_month INTEGER REFERENCES months(id),
    due_dom INTEGER,                     -- yearly: 1..31
    active INTEGER NOT NULL DEFAULT 1,
    notes TEXT NOT NULL DEFAULT '',
    CHECK (
        (frequency = 'monthly' AND due_day IS NOT NULL AND due_month IS NULL AND due_dom IS NULL) OR
        (frequency = 'yearly'  AND due_day IS NULL AND due_month IS NOT NULL AND due_dom IS NOT NULL)
    )
);

-- Payment occurrences. (bill_id, due_date) is the natural key; amount is a
-- snapshot of the bill's amount_due at generation time.
CREATE TABLE IF NOT EXISTS bill_payments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bill_id INTEGER NOT NULL REFERENCES bills(id),
    due_date TEXT NOT NULL,              -- YYYY-MM-DD
    amount TEXT NOT NULL,
    paid_at TEXT,                        -- RFC 3339, NULL while unpaid
    ignored INTEGER NOT NULL DEFAULT 0,
    UNIQUE(bill_id, due_date)
);

CREATE INDEX IF NOT EXISTS idx_bill_payments_due
    ON bill_payments(due_date);

-- Pay schedule: singleton biweekly income anchor.
CREATE TABLE IF NOT EXISTS pay_schedule (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    frequency TEXT NOT NULL DEFAULT 'biweekly',
    anchor_date TEXT NOT NULL            -- YYYY-MM-DD
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}

// SeedLookups inserts the catalog's reference rows. Existing IDs are left
// alone (IDs are never reused), new labels for existing IDs are applied.
func SeedLookups(conn *Connection, catalog *lookup.Catalog) error {
	seed := func(table string, entries []lookup.Entry) error {
		for _, e := range entries {
			_, err := conn.Exec(
				fmt.Sprintf(`INSERT INTO %s (id, label) VALUES (?, ?)
					ON CONFLICT(id) DO UPDATE SET label = excluded.label`, table),
				e.Code, e.Label,
			)
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", table, err)
			}
		}
		return nil
	}

	if err := seed("account_types", catalog.AccountTypes); err != nil {
		return err
	}
	if err := seed("trans_types", catalog.TransTypes); err != nil {
		return err
	}
	if err := seed("trans_methods", catalog.TransMethods); err != nil {
		return err
	}
	if err := seed("trans_cats", catalog.TransCats); err != nil {
		return err
	}
	return seed("months", lookup.Months())
}
