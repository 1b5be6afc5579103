package ledger

import "errors"

// Errors returned by ledger operations. All are final for the call that
// produced them; nothing is retried internally.
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrNotAccountOwner  = errors.New("caller does not own the account")
	ErrNotLedgerOwner   = errors.New("caller is not the ledger operator")
	ErrAccountNotActive = errors.New("account is not active")
	ErrAssetMismatch    = errors.New("asset does not match the account")
	ErrGoalNotReached   = errors.New("savings goal not reached")
	ErrNothingToCollect = errors.New("nothing to collect")
	ErrInvalidAmount    = errors.New("amount must be a positive whole number of units")
)
