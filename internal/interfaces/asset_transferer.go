package interfaces

import (
	"context"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
)

// AssetTransferer moves units out of the ledger. An error means nothing
// moved and the enclosing operation must abort.
type AssetTransferer interface {
	TransferAsset(ctx context.Context, transfer models.Transfer) error
}
