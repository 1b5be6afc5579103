package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrRecordNotFound is returned by stores when a lookup matches nothing.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when a status transition finds the
	// account in a different state than expected.
	ErrStatusConflict = errors.New("account status changed concurrently")
)

// LedgerStore persists accounts, deposits and per-asset collection totals.
type LedgerStore interface {
	// WithTransaction runs fn against a store whose writes commit together
	// when fn returns nil and are discarded otherwise.
	WithTransaction(ctx context.Context, fn func(tx LedgerStore) error) error

	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)
	GetAccount(ctx context.Context, id uint64) (models.Account, error)
	GetAccountsByOwner(ctx context.Context, owner string) ([]models.Account, error)
	GetActiveAccountsByAsset(ctx context.Context, assetID string) ([]models.Account, error)
	UpdateAccountActivity(ctx context.Context, id uint64, rawDeposited decimal.Decimal, lastActivity time.Time) error
	UpdateAccountStatus(ctx context.Context, id uint64, from, to models.AccountStatus) error

	SaveDeposit(ctx context.Context, deposit models.Deposit) error
	GetDepositsByAccount(ctx context.Context, accountID uint64) ([]models.Deposit, error)
	GetDepositByTransferID(ctx context.Context, transferID string) (models.Deposit, error)

	GetCollected(ctx context.Context, assetID string) (decimal.Decimal, error)
	SaveCollected(ctx context.Context, assetID string, total decimal.Decimal) error
}
