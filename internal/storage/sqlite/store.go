package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage/sqlstore"
	_ "modernc.org/sqlite"
)

// Dialect is the SQLite flavour of the ledger schema. Amounts are TEXT
// because SQLite numeric affinity would round values beyond 2^63.
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			owner          TEXT NOT NULL,
			name           TEXT NOT NULL,
			description    TEXT NOT NULL,
			asset_id       TEXT NOT NULL,
			target_amount  TEXT NOT NULL,
			monthly_pledge TEXT NOT NULL,
			raw_deposited  TEXT NOT NULL,
			last_activity  INTEGER NOT NULL,
			status         TEXT NOT NULL,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_asset_status ON accounts(asset_id, status)`,
		`CREATE TABLE IF NOT EXISTS deposits (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			account_id  INTEGER NOT NULL REFERENCES accounts(id),
			sender      TEXT NOT NULL,
			amount      TEXT NOT NULL,
			transfer_id TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_account ON deposits(account_id, seq)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_transfer ON deposits(transfer_id) WHERE transfer_id <> ''`,
		`CREATE TABLE IF NOT EXISTS collections (
			asset_id  TEXT PRIMARY KEY,
			collected TEXT NOT NULL
		)`,
	},
}

// Open opens (or creates) the SQLite database at path, configures pragmas,
// and applies the schema.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps transactions serialised
	db.SetMaxOpenConns(1)
	return setup(ctx, db)
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory(ctx context.Context) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	return setup(ctx, db)
}

func setup(ctx context.Context, db *sql.DB) (*sqlstore.Store, error) {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	store := sqlstore.New(db, Dialect)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
