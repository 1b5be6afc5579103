package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
	"go.uber.org/zap"
)

// OnAssetReceived records an incoming transfer against the account named by
// the receipt's routing tag. Any error must make the asset protocol reject
// the transfer.
//
// A receipt whose TransferID was already recorded returns the original
// deposit with replayed set and changes nothing.
func (l *Ledger) OnAssetReceived(ctx context.Context, receipt models.Receipt) (deposit models.Deposit, replayed bool, err error) {
	id, err := DecodeRoutingTag(receipt.RoutingTag)
	if err != nil {
		return models.Deposit{}, false, err
	}

	unlock, err := l.lockAccountAsset(ctx, id)
	if err != nil {
		return models.Deposit{}, false, err
	}
	defer unlock()

	now := l.now()
	var account models.Account
	err = l.store.WithTransaction(ctx, func(tx interfaces.LedgerStore) error {
		if receipt.TransferID != "" {
			existing, err := tx.GetDepositByTransferID(ctx, receipt.TransferID)
			if err == nil {
				deposit, replayed = existing, true
				return nil
			}
			if !errors.Is(err, interfaces.ErrRecordNotFound) {
				return err
			}
		}

		found, err := l.loadAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if found.Status.IsTerminal() {
			return fmt.Errorf("account %d is %s: %w", id, found.Status, ErrAccountNotActive)
		}
		if found.AssetID != receipt.AssetID {
			return fmt.Errorf("account %d accepts %q, got %q: %w", id, found.AssetID, receipt.AssetID, ErrAssetMismatch)
		}
		if !isWholePositive(receipt.Amount) {
			return fmt.Errorf("deposit of %s: %w", receipt.Amount, ErrInvalidAmount)
		}

		deposit = models.Deposit{
			ID:         uuid.NewString(),
			AccountID:  id,
			Sender:     receipt.Sender,
			Amount:     receipt.Amount,
			TransferID: receipt.TransferID,
			CreatedAt:  now,
		}
		if err := tx.SaveDeposit(ctx, deposit); err != nil {
			return err
		}

		found.RawDeposited = found.RawDeposited.Add(receipt.Amount)
		found.LastActivity = now
		account = found
		return tx.UpdateAccountActivity(ctx, id, found.RawDeposited, now)
	})
	if err != nil {
		l.logger.Info("deposit rejected",
			zap.Uint64("account_id", id),
			zap.String("asset_id", receipt.AssetID),
			zap.String("sender", receipt.Sender),
			zap.Error(err),
		)
		return models.Deposit{}, false, err
	}
	if replayed {
		l.logger.Debug("deposit replayed", zap.String("transfer_id", receipt.TransferID), zap.String("deposit_id", deposit.ID))
		return deposit, true, nil
	}

	l.logger.Info("deposit recorded",
		zap.Uint64("account_id", id),
		zap.String("deposit_id", deposit.ID),
		zap.String("sender", deposit.Sender),
		zap.Stringer("amount", deposit.Amount),
		zap.Stringer("raw_deposited", account.RawDeposited),
		zap.Bool("goal_reached", account.GoalReached()),
	)
	l.publish(ctx, events.LedgerEvent{
		Type:       events.TypeDepositRecorded,
		AccountID:  id,
		AssetID:    account.AssetID,
		Identity:   deposit.Sender,
		Amount:     deposit.Amount,
		OccurredAt: now,
	})
	return deposit, false, nil
}

// ListDeposits returns the account's deposits, oldest first.
func (l *Ledger) ListDeposits(ctx context.Context, id uint64, caller string) ([]models.Deposit, error) {
	if _, err := l.ownedAccount(ctx, l.store, id, caller); err != nil {
		return nil, err
	}
	deposits, err := l.store.GetDepositsByAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	return deposits, nil
}
