package interfaces

import (
	"context"

	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.LedgerEvent) error
}
