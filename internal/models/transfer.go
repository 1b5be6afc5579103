package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferReason explains why the ledger is paying out.
type TransferReason string

const (
	TransferReasonWithdrawal TransferReason = "withdrawal"
	TransferReasonCollection TransferReason = "collection"
)

// Transfer represents an instruction to move asset units out of the ledger.
type Transfer struct {
	ID        string          `json:"id"`
	AssetID   string          `json:"asset_id"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    TransferReason  `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}
