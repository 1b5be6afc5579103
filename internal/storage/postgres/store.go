package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage/sqlstore"
)

// Dialect is the PostgreSQL flavour of the ledger schema. Amounts are
// NUMERIC(78,0) so any 256-bit unsigned quantity fits.
var Dialect = sqlstore.Dialect{
	Name:           "postgres",
	NumberedParams: true,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id             BIGSERIAL PRIMARY KEY,
			owner          TEXT NOT NULL,
			name           TEXT NOT NULL,
			description    TEXT NOT NULL,
			asset_id       TEXT NOT NULL,
			target_amount  NUMERIC(78,0) NOT NULL,
			monthly_pledge NUMERIC(78,0) NOT NULL,
			raw_deposited  NUMERIC(78,0) NOT NULL,
			last_activity  BIGINT NOT NULL,
			status         TEXT NOT NULL,
			created_at     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_asset_status ON accounts(asset_id, status)`,
		`CREATE TABLE IF NOT EXISTS deposits (
			seq         BIGSERIAL PRIMARY KEY,
			id          TEXT NOT NULL UNIQUE,
			account_id  BIGINT NOT NULL REFERENCES accounts(id),
			sender      TEXT NOT NULL,
			amount      NUMERIC(78,0) NOT NULL,
			transfer_id TEXT NOT NULL DEFAULT '',
			created_at  BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_account ON deposits(account_id, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_transfer ON deposits(transfer_id) WHERE transfer_id <> ''`,
		`CREATE TABLE IF NOT EXISTS collections (
			asset_id  TEXT PRIMARY KEY,
			collected NUMERIC(78,0) NOT NULL
		)`,
	},
}

// Open connects to PostgreSQL with the lib/pq driver and applies the schema.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := sqlstore.New(db, Dialect)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
