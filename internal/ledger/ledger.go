package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/valuation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the commitment-savings engine. It owns account lifecycle,
// deposit bookkeeping, valuation, withdrawal and operator fee collection.
//
// Operations touching one asset are serialised by a per-asset lock and every
// write set commits through a single store transaction.
type Ledger struct {
	store     interfaces.LedgerStore
	transfers interfaces.AssetTransferer
	publisher interfaces.EventPublisher
	policy    valuation.Policy
	operator  string
	now       func() time.Time
	logger    *zap.Logger

	muMap map[string]*sync.Mutex // one lock per asset id
	mapMu sync.Mutex             // protects muMap
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithPolicy sets the decay policy. The default is valuation.DefaultPolicy.
func WithPolicy(p valuation.Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithPublisher publishes ledger events after each committed operation.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger creates a ledger whose operator identity is fixed for its lifetime.
func NewLedger(store interfaces.LedgerStore, transfers interfaces.AssetTransferer, operator string, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		transfers: transfers,
		policy:    valuation.DefaultPolicy(),
		operator:  operator,
		now:       time.Now,
		logger:    zap.NewNop(),
		muMap:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("component", "ledger"))
	return l
}

// Operator returns the ledger operator identity.
func (l *Ledger) Operator() string {
	return l.operator
}

// Policy returns the decay policy in effect.
func (l *Ledger) Policy() valuation.Policy {
	return l.policy
}

func (l *Ledger) getAssetLock(assetID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[assetID]; !exists {
		l.muMap[assetID] = &sync.Mutex{}
	}
	return l.muMap[assetID]
}

// lockAccountAsset locks the asset of an existing account. The asset of an
// account never changes, so reading it before taking the lock is safe.
func (l *Ledger) lockAccountAsset(ctx context.Context, id uint64) (func(), error) {
	account, err := l.loadAccount(ctx, l.store, id)
	if err != nil {
		return nil, err
	}
	mu := l.getAssetLock(account.AssetID)
	mu.Lock()
	return mu.Unlock, nil
}

func (l *Ledger) loadAccount(ctx context.Context, store interfaces.LedgerStore, id uint64) (models.Account, error) {
	if id == 0 || id > MaxAccountID {
		return models.Account{}, fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
	}
	account, err := store.GetAccount(ctx, id)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return models.Account{}, fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
	}
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// ownedAccount loads the account and checks ownership. An unknown id fails
// the same way for every caller.
func (l *Ledger) ownedAccount(ctx context.Context, store interfaces.LedgerStore, id uint64, caller string) (models.Account, error) {
	account, err := l.loadAccount(ctx, store, id)
	if err != nil {
		return models.Account{}, err
	}
	if account.Owner != caller {
		return models.Account{}, fmt.Errorf("account %d: %w", id, ErrNotAccountOwner)
	}
	return account, nil
}

func (l *Ledger) activeOwnedAccount(ctx context.Context, store interfaces.LedgerStore, id uint64, caller string) (models.Account, error) {
	account, err := l.ownedAccount(ctx, store, id, caller)
	if err != nil {
		return models.Account{}, err
	}
	if account.Status.IsTerminal() {
		return models.Account{}, fmt.Errorf("account %d is %s: %w", id, account.Status, ErrAccountNotActive)
	}
	return account, nil
}

// statusConflict reports a lost status compare-and-set as the account no
// longer being Active.
func statusConflict(err error) error {
	if errors.Is(err, interfaces.ErrStatusConflict) {
		return fmt.Errorf("%w: %w", err, ErrAccountNotActive)
	}
	return err
}

func (l *Ledger) valueOf(account models.Account, now time.Time) decimal.Decimal {
	return l.policy.Value(account.RawDeposited, account.TargetAmount, account.LastActivity, now)
}

func (l *Ledger) publish(ctx context.Context, event events.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = l.now()
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.Warn("publish ledger event failed",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

// isWholePositive reports whether d is a positive integral amount.
func isWholePositive(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(0))
}
