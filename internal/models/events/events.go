package events

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Event types published after a ledger operation commits.
const (
	TypeAccountCreated   = "account_created"
	TypeDepositRecorded  = "deposit_recorded"
	TypeAccountDisabled  = "account_disabled"
	TypeAccountCompleted = "account_completed"
	TypeFeesCollected    = "fees_collected"
)

// LedgerEvent is the envelope written to the events topic.
type LedgerEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	AccountID  uint64          `json:"account_id,omitempty"`
	AssetID    string          `json:"asset_id"`
	Identity   string          `json:"identity"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Key partitions events so one account's history stays ordered.
func (e LedgerEvent) Key() string {
	if e.AccountID == 0 {
		return e.AssetID
	}
	return e.AssetID + "/" + strconv.FormatUint(e.AccountID, 10)
}
