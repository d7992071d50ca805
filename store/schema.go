package store

import (
	"fmt"
	"strings"
)

// schemaVersion is bumped whenever the DDL below changes shape.
const schemaVersion = "1"

// schemaDDL returns the full schema for the given driver. Dates are stored as
// TEXT in ISO form and money columns as TEXT decimals, so both drivers round
// trip values exactly.
func schemaDDL(driver string) string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	ddl := `
CREATE TABLE IF NOT EXISTS accounts (
	id %[1]s,
	owner TEXT NOT NULL,
	name TEXT NOT NULL UNIQUE,
	broker TEXT NOT NULL DEFAULT '',
	account_type TEXT NOT NULL,
	market TEXT NOT NULL,
	currency TEXT NOT NULL,
	margin BOOLEAN NOT NULL DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id %[1]s,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	price TEXT NOT NULL,
	fee TEXT NOT NULL DEFAULT '0',
	tax TEXT NOT NULL DEFAULT '0',
	currency TEXT NOT NULL,
	memo TEXT,
	executed_on TEXT NOT NULL,
	source_ref TEXT,
	created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_source_ref ON transactions(source_ref);
CREATE INDEX IF NOT EXISTS idx_transactions_account_date ON transactions(account_id, executed_on);

CREATE TABLE IF NOT EXISTS cash_transactions (
	id %[1]s,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	category TEXT NOT NULL,
	ticker TEXT,
	currency TEXT NOT NULL,
	amount TEXT NOT NULL,
	counter_currency TEXT,
	counter_amount TEXT,
	linked_transaction_id INTEGER REFERENCES transactions(id),
	memo TEXT,
	executed_on TEXT NOT NULL,
	source_ref TEXT,
	created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_transactions_source_ref ON cash_transactions(source_ref);
CREATE INDEX IF NOT EXISTS idx_cash_transactions_account_date ON cash_transactions(account_id, executed_on);

CREATE TABLE IF NOT EXISTS holdings (
	id %[1]s,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	ticker TEXT NOT NULL,
	quantity TEXT NOT NULL,
	avg_cost TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (account_id, ticker)
);

CREATE TABLE IF NOT EXISTS cash_positions (
	id %[1]s,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	currency TEXT NOT NULL,
	balance TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (account_id, currency)
);

CREATE TABLE IF NOT EXISTS planned_orders (
	id %[1]s,
	account_id INTEGER NOT NULL REFERENCES accounts(id),
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity TEXT NOT NULL,
	target_price TEXT,
	target_currency TEXT,
	note TEXT,
	priority TEXT NOT NULL DEFAULT 'NORMAL',
	status TEXT NOT NULL DEFAULT 'PENDING',
	linked_transaction_id INTEGER REFERENCES transactions(id),
	created_at TEXT NOT NULL,
	executed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_planned_orders_status ON planned_orders(status);

CREATE TABLE IF NOT EXISTS import_batches (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	imported INTEGER NOT NULL DEFAULT 0,
	duplicates INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	rebuilt TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS price_cache (
	ticker TEXT PRIMARY KEY,
	price TEXT NOT NULL,
	currency TEXT NOT NULL,
	fetched_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS exchange_rates (
	from_currency TEXT NOT NULL,
	to_currency TEXT NOT NULL,
	rate TEXT NOT NULL,
	fetched_at TEXT NOT NULL,
	PRIMARY KEY (from_currency, to_currency)
);

CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	return fmt.Sprintf(ddl, pk)
}

// initSchema creates any missing tables and records the schema version.
func (s *Store) initSchema() error {
	for _, stmt := range strings.Split(schemaDDL(s.driver), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	upsert := `INSERT INTO schema_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.Exec(s.rebind(upsert), "schema_version", schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// SchemaVersion reads the version stamped at initialization.
func (s *Store) SchemaVersion() (string, error) {
	var version string
	err := s.db.Get(&version, s.rebind(`SELECT value FROM schema_meta WHERE key = ?`), "schema_version")
	if err != nil {
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
