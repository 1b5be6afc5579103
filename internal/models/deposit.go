package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit records one accepted asset transfer into an account.
type Deposit struct {
	ID         string          `json:"id"`          // unique identifier
	AccountID  uint64          `json:"account_id"`  // account credited
	Sender     string          `json:"sender"`      // identity that sent the asset
	Amount     decimal.Decimal `json:"amount"`      // always positive, whole units
	TransferID string          `json:"transfer_id"` // idempotency key from the asset protocol, may be empty
	CreatedAt  time.Time       `json:"created_at"`
}
