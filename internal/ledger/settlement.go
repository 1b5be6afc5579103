package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Withdraw pays the full valuation of a goal-reached account to its owner
// and completes the account. The status change and the payout commit
// together; a failed payout leaves the account Active.
func (l *Ledger) Withdraw(ctx context.Context, id uint64, caller string) (decimal.Decimal, error) {
	unlock, err := l.lockAccountAsset(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	defer unlock()

	now := l.now()
	var (
		account models.Account
		amount  decimal.Decimal
	)
	err = l.store.WithTransaction(ctx, func(tx interfaces.LedgerStore) error {
		found, err := l.activeOwnedAccount(ctx, tx, id, caller)
		if err != nil {
			return err
		}
		value := l.valueOf(found, now)
		if value.LessThan(found.TargetAmount) {
			return fmt.Errorf("account %d holds %s of %s: %w", id, value, found.TargetAmount, ErrGoalNotReached)
		}
		if err := tx.UpdateAccountStatus(ctx, id, models.AccountStatusActive, models.AccountStatusCompleted); err != nil {
			return statusConflict(err)
		}
		account, amount = found, value
		return l.transfers.TransferAsset(ctx, models.Transfer{
			ID:        uuid.NewString(),
			AssetID:   found.AssetID,
			To:        caller,
			Amount:    value,
			Reason:    models.TransferReasonWithdrawal,
			CreatedAt: now,
		})
	})
	if err != nil {
		return decimal.Zero, err
	}

	l.logger.Info("account withdrawn",
		zap.Uint64("account_id", id),
		zap.String("owner", caller),
		zap.String("asset_id", account.AssetID),
		zap.Stringer("amount", amount),
	)
	l.publish(ctx, events.LedgerEvent{
		Type:       events.TypeAccountCompleted,
		AccountID:  id,
		AssetID:    account.AssetID,
		Identity:   caller,
		Amount:     amount,
		OccurredAt: now,
	})
	return amount, nil
}

// CollectableAmount returns the decayed-away funds of the asset's Active
// accounts that the operator has not collected yet.
func (l *Ledger) CollectableAmount(ctx context.Context, assetID, caller string) (decimal.Decimal, error) {
	if !l.IsOperator(caller) {
		return decimal.Zero, ErrNotLedgerOwner
	}

	mu := l.getAssetLock(assetID)
	mu.Lock()
	defer mu.Unlock()

	return l.collectable(ctx, l.store, assetID, l.now())
}

// Collect pays the collectable amount to the operator and advances the
// asset's collected total so the same decay is never paid twice.
func (l *Ledger) Collect(ctx context.Context, assetID, caller string) (decimal.Decimal, error) {
	if !l.IsOperator(caller) {
		return decimal.Zero, ErrNotLedgerOwner
	}

	mu := l.getAssetLock(assetID)
	mu.Lock()
	defer mu.Unlock()

	now := l.now()
	var amount decimal.Decimal
	err := l.store.WithTransaction(ctx, func(tx interfaces.LedgerStore) error {
		due, err := l.collectable(ctx, tx, assetID, now)
		if err != nil {
			return err
		}
		if !due.IsPositive() {
			return fmt.Errorf("asset %q: %w", assetID, ErrNothingToCollect)
		}
		collected, err := tx.GetCollected(ctx, assetID)
		if err != nil {
			return err
		}
		if err := tx.SaveCollected(ctx, assetID, collected.Add(due)); err != nil {
			return err
		}
		amount = due
		return l.transfers.TransferAsset(ctx, models.Transfer{
			ID:        uuid.NewString(),
			AssetID:   assetID,
			To:        l.operator,
			Amount:    due,
			Reason:    models.TransferReasonCollection,
			CreatedAt: now,
		})
	})
	if err != nil {
		return decimal.Zero, err
	}

	l.logger.Info("fees collected",
		zap.String("asset_id", assetID),
		zap.String("operator", l.operator),
		zap.Stringer("amount", amount),
	)
	l.publish(ctx, events.LedgerEvent{
		Type:       events.TypeFeesCollected,
		AssetID:    assetID,
		Identity:   l.operator,
		Amount:     amount,
		OccurredAt: now,
	})
	return amount, nil
}

// collectable sums raw minus valuation over the asset's Active accounts and
// subtracts what was already paid out. Deposits that reset decay after a
// collection can push the sum below the paid total; that reads as zero.
func (l *Ledger) collectable(ctx context.Context, store interfaces.LedgerStore, assetID string, now time.Time) (decimal.Decimal, error) {
	accounts, err := store.GetActiveAccountsByAsset(ctx, assetID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load accounts for %q: %w", assetID, err)
	}

	decayed := decimal.Zero
	for _, account := range accounts {
		decayed = decayed.Add(account.RawDeposited.Sub(l.valueOf(account, now)))
	}

	collected, err := store.GetCollected(ctx, assetID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load collected for %q: %w", assetID, err)
	}

	due := decayed.Sub(collected)
	if due.IsNegative() {
		return decimal.Zero, nil
	}
	return due, nil
}
