// Package sqlstore holds the shared Postgres connection and schema used
// by the Raw Store, Canonical Store, Account Registry and Session
// Registry, grounded on the pack's postgres-consumer sink: database/sql +
// lib/pq, a bounded connection pool, and idempotent CREATE TABLE IF NOT
// EXISTS schema init rather than a migration framework.
package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres at dsn, configures the pool, and ensures the
// schema exists.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS currencies (
	symbol TEXT NOT NULL,
	network TEXT NOT NULL DEFAULT '',
	contract_address TEXT NOT NULL DEFAULT '',
	decimals INTEGER NOT NULL,
	asset_class TEXT NOT NULL,
	is_native BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (symbol, network, contract_address)
);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	account_type TEXT NOT NULL,
	source_name TEXT NOT NULL,
	identifier TEXT NOT NULL,
	parent_account_id TEXT,
	provider_preference TEXT NOT NULL DEFAULT '',
	credentials BYTEA,
	last_cursor JSONB NOT NULL DEFAULT '{}',
	verified_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_identity_tuple_idx
	ON accounts (account_type, source_name, identifier, COALESCE(user_id, ''));

CREATE TABLE IF NOT EXISTS import_sessions (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	transactions_imported INTEGER NOT NULL DEFAULT 0,
	transactions_skipped INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	error_details JSONB,
	warnings JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS import_sessions_account_idx ON import_sessions (account_id, started_at DESC);

CREATE TABLE IF NOT EXISTS raw_transactions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES import_sessions(id),
	source_name TEXT NOT NULL,
	provider_name TEXT NOT NULL,
	venue_transaction_id TEXT NOT NULL,
	transaction_type_hint TEXT NOT NULL DEFAULT '',
	source_address TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL,
	normalized_preview TEXT,
	event_id TEXT NOT NULL UNIQUE,
	processing_status TEXT NOT NULL DEFAULT 'pending',
	error TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS raw_transactions_unique_row_idx
	ON raw_transactions (source_name, venue_transaction_id, transaction_type_hint, source_address);

CREATE TABLE IF NOT EXISTS canonical_transactions (
	id TEXT PRIMARY KEY,
	external_id TEXT NOT NULL,
	source TEXT NOT NULL,
	"timestamp" TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	operation_category TEXT NOT NULL,
	operation_type TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	UNIQUE (external_id, source)
);

CREATE TABLE IF NOT EXISTS movements (
	id TEXT PRIMARY KEY,
	canonical_transaction_id TEXT NOT NULL REFERENCES canonical_transactions(id),
	direction TEXT NOT NULL,
	asset TEXT NOT NULL,
	gross_amount NUMERIC NOT NULL,
	net_amount NUMERIC NOT NULL,
	price_at_tx_time NUMERIC,
	metadata JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS movements_tx_idx ON movements (canonical_transaction_id);

CREATE TABLE IF NOT EXISTS fees (
	id TEXT PRIMARY KEY,
	canonical_transaction_id TEXT NOT NULL REFERENCES canonical_transactions(id),
	amount NUMERIC NOT NULL,
	currency TEXT NOT NULL,
	scope TEXT NOT NULL,
	settlement TEXT NOT NULL,
	funded_from_movement_id TEXT
);
CREATE INDEX IF NOT EXISTS fees_tx_idx ON fees (canonical_transaction_id);
`
