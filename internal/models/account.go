package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of a goal account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusDisabled  AccountStatus = "disabled"
	AccountStatusCompleted AccountStatus = "completed"
)

// IsTerminal reports whether no further transition can leave the status.
func (s AccountStatus) IsTerminal() bool {
	return s == AccountStatusDisabled || s == AccountStatusCompleted
}

// Account is a single savings commitment toward a target quantity of one asset.
type Account struct {
	ID            uint64          `json:"id"`
	Owner         string          `json:"owner"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	AssetID       string          `json:"asset_id"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	MonthlyPledge decimal.Decimal `json:"monthly_pledge"`
	RawDeposited  decimal.Decimal `json:"raw_deposited"`
	LastActivity  time.Time       `json:"last_activity"`
	Status        AccountStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// GoalReached reports whether cumulative deposits meet the target.
// Once true the account no longer decays.
func (a Account) GoalReached() bool {
	return a.RawDeposited.GreaterThanOrEqual(a.TargetAmount)
}
