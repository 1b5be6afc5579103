// Package transfer holds the outbound side of the asset-transfer protocol:
// implementations of interfaces.AssetTransferer.
package transfer

import (
	"context"
	"fmt"
	"sync"

	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Vault settles transfers in memory and keeps the payout history.
// It stands in for the asset protocol when no broker is configured.
type Vault struct {
	mu        sync.Mutex
	transfers []models.Transfer
	paid      map[string]decimal.Decimal // keyed by asset + "/" + recipient
}

func NewVault() *Vault {
	return &Vault{paid: make(map[string]decimal.Decimal)}
}

func (v *Vault) TransferAsset(ctx context.Context, transfer models.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !transfer.Amount.IsPositive() {
		return fmt.Errorf("transfer %s: non-positive amount %s", transfer.ID, transfer.Amount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.transfers = append(v.transfers, transfer)
	key := transfer.AssetID + "/" + transfer.To
	v.paid[key] = v.paid[key].Add(transfer.Amount)
	return nil
}

// Paid returns the total paid to recipient in asset.
func (v *Vault) Paid(assetID, recipient string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paid[assetID+"/"+recipient]
}

// Transfers returns a copy of every settled transfer, oldest first.
func (v *Vault) Transfers() []models.Transfer {
	v.mu.Lock()
	defer v.mu.Unlock()

	copied := make([]models.Transfer, len(v.transfers))
	copy(copied, v.transfers)
	return copied
}

var _ interfaces.AssetTransferer = (*Vault)(nil)
