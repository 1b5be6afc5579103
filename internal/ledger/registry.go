package ledger

import (
	"context"
	"fmt"

	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountRequest describes a goal account to open.
type AccountRequest struct {
	Name          string
	Description   string
	AssetID       string
	TargetAmount  decimal.Decimal
	MonthlyPledge decimal.Decimal // informational, never enforced
}

// CreateAccount opens an Active account owned by caller.
func (l *Ledger) CreateAccount(ctx context.Context, caller string, req AccountRequest) (models.Account, error) {
	if !isWholePositive(req.TargetAmount) {
		return models.Account{}, fmt.Errorf("target amount %s: %w", req.TargetAmount, ErrInvalidAmount)
	}
	if !req.MonthlyPledge.IsZero() && !isWholePositive(req.MonthlyPledge) {
		return models.Account{}, fmt.Errorf("monthly pledge %s: %w", req.MonthlyPledge, ErrInvalidAmount)
	}

	now := l.now()
	account, err := l.store.CreateAccount(ctx, models.Account{
		Owner:         caller,
		Name:          req.Name,
		Description:   req.Description,
		AssetID:       req.AssetID,
		TargetAmount:  req.TargetAmount,
		MonthlyPledge: req.MonthlyPledge,
		RawDeposited:  decimal.Zero,
		LastActivity:  now,
		Status:        models.AccountStatusActive,
		CreatedAt:     now,
	})
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}

	l.logger.Info("account created",
		zap.Uint64("account_id", account.ID),
		zap.String("owner", caller),
		zap.String("asset_id", account.AssetID),
		zap.Stringer("target_amount", account.TargetAmount),
	)
	l.publish(ctx, events.LedgerEvent{
		Type:       events.TypeAccountCreated,
		AccountID:  account.ID,
		AssetID:    account.AssetID,
		Identity:   caller,
		Amount:     account.TargetAmount,
		OccurredAt: now,
	})
	return account, nil
}

// ListAccounts returns every account caller owns, in creation order,
// whatever its status.
func (l *Ledger) ListAccounts(ctx context.Context, caller string) ([]models.Account, error) {
	accounts, err := l.store.GetAccountsByOwner(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// IsOwner reports whether caller owns the account.
func (l *Ledger) IsOwner(ctx context.Context, id uint64, caller string) (bool, error) {
	account, err := l.loadAccount(ctx, l.store, id)
	if err != nil {
		return false, err
	}
	return account.Owner == caller, nil
}

// IsOperator reports whether caller is the ledger operator.
func (l *Ledger) IsOperator(caller string) bool {
	return caller != "" && caller == l.operator
}

// Disable closes an Active account. Funds already deposited stay in the ledger.
func (l *Ledger) Disable(ctx context.Context, id uint64, caller string) error {
	unlock, err := l.lockAccountAsset(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	var account models.Account
	err = l.store.WithTransaction(ctx, func(tx interfaces.LedgerStore) error {
		found, err := l.activeOwnedAccount(ctx, tx, id, caller)
		if err != nil {
			return err
		}
		account = found
		return statusConflict(tx.UpdateAccountStatus(ctx, id, models.AccountStatusActive, models.AccountStatusDisabled))
	})
	if err != nil {
		return err
	}

	l.logger.Info("account disabled",
		zap.Uint64("account_id", id),
		zap.String("owner", caller),
		zap.Stringer("raw_deposited", account.RawDeposited),
	)
	l.publish(ctx, events.LedgerEvent{
		Type:      events.TypeAccountDisabled,
		AccountID: id,
		AssetID:   account.AssetID,
		Identity:  caller,
		Amount:    account.RawDeposited,
	})
	return nil
}
