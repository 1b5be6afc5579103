// Package events holds ledger event publishers that need no broker.
package events

import (
	"context"

	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	ledgerevents "github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
	"go.uber.org/zap"
)

// LogPublisher writes every event to the logger. It is used when no kafka
// brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With(zap.String("component", "events"))}
}

func (p *LogPublisher) Publish(ctx context.Context, event ledgerevents.LedgerEvent) error {
	p.logger.Info("ledger event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.Uint64("account_id", event.AccountID),
		zap.String("asset_id", event.AssetID),
		zap.String("identity", event.Identity),
		zap.Stringer("amount", event.Amount),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

var _ interfaces.EventPublisher = (*LogPublisher)(nil)
