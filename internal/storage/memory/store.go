package memory

import (
	"context"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// A single mutex guards all data; transactions stage their writes on a copy
// and swap it in on success.
type MemoryLedgerStore struct {
	mu   sync.Mutex
	data *ledgerData
}

// NewMemoryLedgerStore creates an empty store. Account ids start at 1.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{data: newLedgerData()}
}

// WithTransaction commits whenever fn succeeds. fn may already have moved
// funds, so a context cancelled mid-way must not discard its writes.
func (m *MemoryLedgerStore) WithTransaction(ctx context.Context, fn func(tx interfaces.LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.data.clone()
	if err := fn(&txStore{data: staged}); err != nil {
		return err
	}
	m.data = staged
	return nil
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.createAccount(account), nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, id uint64) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.getAccount(id)
}

func (m *MemoryLedgerStore) GetAccountsByOwner(ctx context.Context, owner string) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.accountsWhere(func(a models.Account) bool { return a.Owner == owner }), nil
}

func (m *MemoryLedgerStore) GetActiveAccountsByAsset(ctx context.Context, assetID string) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.accountsWhere(activeWithAsset(assetID)), nil
}

func (m *MemoryLedgerStore) UpdateAccountActivity(ctx context.Context, id uint64, rawDeposited decimal.Decimal, lastActivity time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateActivity(id, rawDeposited, lastActivity)
}

func (m *MemoryLedgerStore) UpdateAccountStatus(ctx context.Context, id uint64, from, to models.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.updateStatus(id, from, to)
}

func (m *MemoryLedgerStore) SaveDeposit(ctx context.Context, deposit models.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveDeposit(deposit)
}

func (m *MemoryLedgerStore) GetDepositsByAccount(ctx context.Context, accountID uint64) ([]models.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.depositsByAccount(accountID), nil
}

func (m *MemoryLedgerStore) GetDepositByTransferID(ctx context.Context, transferID string) (models.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.depositByTransferID(transferID)
}

func (m *MemoryLedgerStore) GetCollected(ctx context.Context, assetID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.collected[assetID], nil
}

func (m *MemoryLedgerStore) SaveCollected(ctx context.Context, assetID string, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.collected[assetID] = total
	return nil
}

// txStore operates on staged data while the owning store's mutex is held.
type txStore struct {
	data *ledgerData
}

func (t *txStore) WithTransaction(ctx context.Context, fn func(tx interfaces.LedgerStore) error) error {
	return fn(t)
}

func (t *txStore) CreateAccount(ctx context.Context, account models.Account) (models.Account, error) {
	return t.data.createAccount(account), nil
}

func (t *txStore) GetAccount(ctx context.Context, id uint64) (models.Account, error) {
	return t.data.getAccount(id)
}

func (t *txStore) GetAccountsByOwner(ctx context.Context, owner string) ([]models.Account, error) {
	return t.data.accountsWhere(func(a models.Account) bool { return a.Owner == owner }), nil
}

func (t *txStore) GetActiveAccountsByAsset(ctx context.Context, assetID string) ([]models.Account, error) {
	return t.data.accountsWhere(activeWithAsset(assetID)), nil
}

func (t *txStore) UpdateAccountActivity(ctx context.Context, id uint64, rawDeposited decimal.Decimal, lastActivity time.Time) error {
	return t.data.updateActivity(id, rawDeposited, lastActivity)
}

func (t *txStore) UpdateAccountStatus(ctx context.Context, id uint64, from, to models.AccountStatus) error {
	return t.data.updateStatus(id, from, to)
}

func (t *txStore) SaveDeposit(ctx context.Context, deposit models.Deposit) error {
	return t.data.saveDeposit(deposit)
}

func (t *txStore) GetDepositsByAccount(ctx context.Context, accountID uint64) ([]models.Deposit, error) {
	return t.data.depositsByAccount(accountID), nil
}

func (t *txStore) GetDepositByTransferID(ctx context.Context, transferID string) (models.Deposit, error) {
	return t.data.depositByTransferID(transferID)
}

func (t *txStore) GetCollected(ctx context.Context, assetID string) (decimal.Decimal, error) {
	return t.data.collected[assetID], nil
}

func (t *txStore) SaveCollected(ctx context.Context, assetID string, total decimal.Decimal) error {
	t.data.collected[assetID] = total
	return nil
}

func activeWithAsset(assetID string) func(models.Account) bool {
	return func(a models.Account) bool {
		return a.AssetID == assetID && a.Status == models.AccountStatusActive
	}
}

// Compile-time check: ensure both views implement the LedgerStore interface
var (
	_ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
	_ interfaces.LedgerStore = (*txStore)(nil)
)
