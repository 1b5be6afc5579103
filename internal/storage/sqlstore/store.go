// Package sqlstore implements interfaces.LedgerStore on database/sql.
// The postgres and sqlite packages supply the driver and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	inTx    bool
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		q:       db,
		dialect: dialect,
	}
}

// DB exposes the underlying pool for health checks and shutdown.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate applies the dialect schema.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.Name, err)
		}
	}
	return nil
}

func (s *Store) WithTransaction(ctx context.Context, fn func(tx interfaces.LedgerStore) error) error {
	if s.inTx {
		return fn(s)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// database/sql rolls a transaction back when its context ends. fn may
	// already have moved funds by then, so the commit must not depend on ctx.
	dbTx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &Store{db: s.db, q: dbTx, dialect: s.dialect, inTx: true}
	if err := fn(txStore); err != nil {
		dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const accountColumns = `id, owner, name, description, asset_id, target_amount, monthly_pledge,
	raw_deposited, last_activity, status, created_at`

func (s *Store) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	const query = `INSERT INTO accounts (owner, name, description, asset_id, target_amount, monthly_pledge,
	raw_deposited, last_activity, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`

	err := s.q.QueryRowContext(ctx, s.dialect.rebind(query),
		account.Owner,
		account.Name,
		account.Description,
		account.AssetID,
		account.TargetAmount,
		account.MonthlyPledge,
		account.RawDeposited,
		toNanos(account.LastActivity),
		string(account.Status),
		toNanos(account.CreatedAt),
	).Scan(&account.ID)
	if err != nil {
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

func (s *Store) GetAccount(ctx context.Context, id uint64) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`

	key, ok := rowID(id)
	if !ok {
		return models.Account{}, fmt.Errorf("account %d: %w", id, interfaces.ErrRecordNotFound)
	}
	account, err := scanAccount(s.q.QueryRowContext(ctx, s.dialect.rebind(query), key))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("account %d: %w", id, interfaces.ErrRecordNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return account, nil
}

func (s *Store) GetAccountsByOwner(ctx context.Context, owner string) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner = ? ORDER BY id`
	return s.queryAccounts(ctx, query, owner)
}

func (s *Store) GetActiveAccountsByAsset(ctx context.Context, assetID string) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE asset_id = ? AND status = ? ORDER BY id`
	return s.queryAccounts(ctx, query, assetID, string(models.AccountStatusActive))
}

func (s *Store) queryAccounts(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) UpdateAccountActivity(ctx context.Context, id uint64, rawDeposited decimal.Decimal, lastActivity time.Time) error {
	const query = `UPDATE accounts SET raw_deposited = ?, last_activity = ? WHERE id = ?`

	key, ok := rowID(id)
	if !ok {
		return fmt.Errorf("account %d: %w", id, interfaces.ErrRecordNotFound)
	}
	res, err := s.q.ExecContext(ctx, s.dialect.rebind(query), rawDeposited, toNanos(lastActivity), key)
	if err != nil {
		return fmt.Errorf("update account %d activity: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", id, interfaces.ErrRecordNotFound)
	}
	return nil
}

func (s *Store) UpdateAccountStatus(ctx context.Context, id uint64, from, to models.AccountStatus) error {
	const query = `UPDATE accounts SET status = ? WHERE id = ? AND status = ?`

	key, ok := rowID(id)
	if !ok {
		return fmt.Errorf("account %d: %w", id, interfaces.ErrRecordNotFound)
	}
	res, err := s.q.ExecContext(ctx, s.dialect.rebind(query), string(to), key, string(from))
	if err != nil {
		return fmt.Errorf("update account %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	current, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("account %d is %s: %w", id, current.Status, interfaces.ErrStatusConflict)
}

func (s *Store) SaveDeposit(ctx context.Context, deposit models.Deposit) error {
	const query = `INSERT INTO deposits (id, account_id, sender, amount, transfer_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	accountKey, ok := rowID(deposit.AccountID)
	if !ok {
		return fmt.Errorf("account %d: %w", deposit.AccountID, interfaces.ErrRecordNotFound)
	}
	_, err := s.q.ExecContext(ctx, s.dialect.rebind(query),
		deposit.ID,
		accountKey,
		deposit.Sender,
		deposit.Amount,
		deposit.TransferID,
		toNanos(deposit.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

const depositColumns = `id, account_id, sender, amount, transfer_id, created_at`

func (s *Store) GetDepositsByAccount(ctx context.Context, accountID uint64) ([]models.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE account_id = ? ORDER BY seq`

	key, ok := rowID(accountID)
	if !ok {
		return []models.Deposit{}, nil
	}
	rows, err := s.q.QueryContext(ctx, s.dialect.rebind(query), key)
	if err != nil {
		return nil, fmt.Errorf("query deposits: %w", err)
	}
	defer rows.Close()

	deposits := make([]models.Deposit, 0)
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		deposits = append(deposits, deposit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deposits, nil
}

func (s *Store) GetDepositByTransferID(ctx context.Context, transferID string) (models.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE transfer_id = ? AND transfer_id <> '' LIMIT 1`

	deposit, err := scanDeposit(s.q.QueryRowContext(ctx, s.dialect.rebind(query), transferID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Deposit{}, fmt.Errorf("transfer %q: %w", transferID, interfaces.ErrRecordNotFound)
	}
	if err != nil {
		return models.Deposit{}, fmt.Errorf("get deposit by transfer %q: %w", transferID, err)
	}
	return deposit, nil
}

func (s *Store) GetCollected(ctx context.Context, assetID string) (decimal.Decimal, error) {
	const query = `SELECT collected FROM collections WHERE asset_id = ?`

	var collected decimal.Decimal
	err := s.q.QueryRowContext(ctx, s.dialect.rebind(query), assetID).Scan(&collected)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get collected for %q: %w", assetID, err)
	}
	return collected, nil
}

func (s *Store) SaveCollected(ctx context.Context, assetID string, total decimal.Decimal) error {
	const query = `INSERT INTO collections (asset_id, collected) VALUES (?, ?)
	ON CONFLICT (asset_id) DO UPDATE SET collected = excluded.collected`

	if _, err := s.q.ExecContext(ctx, s.dialect.rebind(query), assetID, total); err != nil {
		return fmt.Errorf("save collected for %q: %w", assetID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		account      models.Account
		status       string
		lastActivity int64
		createdAt    int64
	)
	err := row.Scan(
		&account.ID,
		&account.Owner,
		&account.Name,
		&account.Description,
		&account.AssetID,
		&account.TargetAmount,
		&account.MonthlyPledge,
		&account.RawDeposited,
		&lastActivity,
		&status,
		&createdAt,
	)
	if err != nil {
		return models.Account{}, err
	}
	account.Status = models.AccountStatus(status)
	account.LastActivity = fromNanos(lastActivity)
	account.CreatedAt = fromNanos(createdAt)
	return account, nil
}

func scanDeposit(row rowScanner) (models.Deposit, error) {
	var (
		deposit   models.Deposit
		createdAt int64
	)
	err := row.Scan(
		&deposit.ID,
		&deposit.AccountID,
		&deposit.Sender,
		&deposit.Amount,
		&deposit.TransferID,
		&createdAt,
	)
	if err != nil {
		return models.Deposit{}, err
	}
	deposit.CreatedAt = fromNanos(createdAt)
	return deposit, nil
}

// rowID converts an account id to the signed key the schema stores. Ids above
// math.MaxInt64 can never have been allocated.
func rowID(id uint64) (int64, bool) {
	if id > math.MaxInt64 {
		return 0, false
	}
	return int64(id), true
}

// Timestamps are stored as unix nanoseconds so both backends round-trip them exactly.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

var _ interfaces.LedgerStore = (*Store)(nil)
