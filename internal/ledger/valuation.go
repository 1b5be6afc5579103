package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// CurrentValuation returns what the owner could withdraw right now, after
// decay. It never changes stored state.
func (l *Ledger) CurrentValuation(ctx context.Context, id uint64, caller string) (decimal.Decimal, error) {
	account, err := l.activeOwnedAccount(ctx, l.store, id, caller)
	if err != nil {
		return decimal.Zero, err
	}
	return l.valueOf(account, l.now()), nil
}
