package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/storage/sqlite"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/transfer"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/valuation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	operator = "0xoperator"
	alice    = "0xalice"
	bob      = "0xbob"
	gold     = "0x2AC170958D2ee523a225620A994597C1AD831ec9"
	silver   = "0x2AC07095892ee523a225620A994797C1AD831ec2"
)

var period = valuation.DefaultPeriod

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingTransferer struct{}

func (failingTransferer) TransferAsset(ctx context.Context, t models.Transfer) error {
	return errors.New("asset contract reverted")
}

// cancellingTransferer pays into the vault and then cancels the request, as
// a client hanging up right after the payout would.
type cancellingTransferer struct {
	vault  *transfer.Vault
	cancel context.CancelFunc
}

func (c cancellingTransferer) TransferAsset(ctx context.Context, t models.Transfer) error {
	err := c.vault.TransferAsset(ctx, t)
	c.cancel()
	return err
}

// conflictingStore loses every status compare-and-set, as if another
// request changed the status first.
type conflictingStore struct {
	interfaces.LedgerStore
}

func (s conflictingStore) WithTransaction(ctx context.Context, fn func(tx interfaces.LedgerStore) error) error {
	return s.LedgerStore.WithTransaction(ctx, func(tx interfaces.LedgerStore) error {
		return fn(conflictingStore{tx})
	})
}

func (s conflictingStore) UpdateAccountStatus(ctx context.Context, id uint64, from, to models.AccountStatus) error {
	return fmt.Errorf("account %d is %s: %w", id, models.AccountStatusDisabled, interfaces.ErrStatusConflict)
}

type harness struct {
	ledger    *Ledger
	store     interfaces.LedgerStore
	vault     *transfer.Vault
	clock     *fakeClock
	publisher *recordingPublisher
}

// forEachStore runs fn once per store backend.
func forEachStore(t *testing.T, fn func(t *testing.T, h *harness)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, newHarness(t, memory.NewMemoryLedgerStore()))
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := sqlite.OpenMemory(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { store.DB().Close() })
		fn(t, newHarness(t, store))
	})
}

func newHarness(t *testing.T, store interfaces.LedgerStore) *harness {
	t.Helper()
	h := &harness{
		store:     store,
		vault:     transfer.NewVault(),
		clock:     &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		publisher: &recordingPublisher{},
	}
	h.ledger = NewLedger(h.store, h.vault, operator,
		WithClock(h.clock.Now),
		WithPublisher(h.publisher),
		WithLogger(zaptest.NewLogger(t)),
	)
	return h
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (h *harness) open(t *testing.T, owner, asset, target string) models.Account {
	t.Helper()
	account, err := h.ledger.CreateAccount(context.Background(), owner, AccountRequest{
		Name:          "Buy House",
		Description:   "Saving up to buy a house",
		AssetID:       asset,
		TargetAmount:  amount(target),
		MonthlyPledge: amount("100000"),
	})
	require.NoError(t, err)
	return account
}

func (h *harness) deposit(t *testing.T, id uint64, asset, value string) models.Deposit {
	t.Helper()
	d, replayed, err := h.ledger.OnAssetReceived(context.Background(), models.Receipt{
		AssetID:    asset,
		Sender:     alice,
		Amount:     amount(value),
		RoutingTag: EncodeRoutingTag(id),
	})
	require.NoError(t, err)
	require.False(t, replayed)
	return d
}

func (h *harness) value(t *testing.T, id uint64, owner string) decimal.Decimal {
	t.Helper()
	v, err := h.ledger.CurrentValuation(context.Background(), id, owner)
	require.NoError(t, err)
	return v
}

func TestCreateAccount_ListAccounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		names := []string{"hoge", "fuga", "piyo"}
		assets := []string{gold, silver, gold}
		targets := []string{"10000000000000000000", "100000000000000000", "9000000000000000000"}

		for i := range names {
			_, err := h.ledger.CreateAccount(ctx, operator, AccountRequest{
				Name:          names[i],
				Description:   names[i] + " description",
				AssetID:       assets[i],
				TargetAmount:  amount(targets[i]),
				MonthlyPledge: decimal.NewFromInt(int64(i + 1)),
			})
			require.NoError(t, err)

			accounts, err := h.ledger.ListAccounts(ctx, operator)
			require.NoError(t, err)
			require.Len(t, accounts, i+1)

			head := accounts[i]
			assert.Equal(t, operator, head.Owner)
			assert.Equal(t, names[i], head.Name)
			assert.Equal(t, names[i]+" description", head.Description)
			assert.Equal(t, assets[i], head.AssetID)
			assert.True(t, head.TargetAmount.Equal(amount(targets[i])))
			assert.True(t, head.MonthlyPledge.Equal(decimal.NewFromInt(int64(i+1))))
			assert.Equal(t, models.AccountStatusActive, head.Status)
			assert.True(t, head.RawDeposited.IsZero())
			assert.True(t, head.CreatedAt.Equal(h.clock.Now()))
		}

		accounts, err := h.ledger.ListAccounts(ctx, operator)
		require.NoError(t, err)
		assert.Less(t, accounts[0].ID, accounts[1].ID)
		assert.Less(t, accounts[1].ID, accounts[2].ID)

		others, err := h.ledger.ListAccounts(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, others)
	})
}

func TestCreateAccount_InvalidAmounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		for _, target := range []string{"0", "-5", "1.5"} {
			_, err := h.ledger.CreateAccount(ctx, alice, AccountRequest{AssetID: gold, TargetAmount: amount(target)})
			assert.ErrorIsf(t, err, ErrInvalidAmount, "target %s", target)
		}

		_, err := h.ledger.CreateAccount(ctx, alice, AccountRequest{AssetID: gold, TargetAmount: amount("10"), MonthlyPledge: amount("-1")})
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = h.ledger.CreateAccount(ctx, alice, AccountRequest{AssetID: gold, TargetAmount: amount("10")})
		assert.NoError(t, err, "a zero pledge is allowed")

		accounts, err := h.ledger.ListAccounts(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, accounts, 1)
	})
}

func TestIsOwner(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "100")

		ok, err := h.ledger.IsOwner(ctx, account.ID, alice)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.ledger.IsOwner(ctx, account.ID, bob)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = h.ledger.IsOwner(ctx, account.ID+1, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestIsOperator(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		assert.True(t, h.ledger.IsOperator(operator))
		assert.False(t, h.ledger.IsOperator(alice))
		assert.False(t, h.ledger.IsOperator(""))
		assert.Equal(t, operator, h.ledger.Operator())
	})
}

func TestDisable(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "1000")
		h.deposit(t, account.ID, gold, "300")

		assert.ErrorIs(t, h.ledger.Disable(ctx, account.ID, bob), ErrNotAccountOwner)
		assert.ErrorIs(t, h.ledger.Disable(ctx, account.ID+10, alice), ErrAccountNotFound)

		require.NoError(t, h.ledger.Disable(ctx, account.ID, alice))
		assert.ErrorIs(t, h.ledger.Disable(ctx, account.ID, alice), ErrAccountNotActive)

		accounts, err := h.ledger.ListAccounts(ctx, alice)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, models.AccountStatusDisabled, accounts[0].Status)
		assert.True(t, accounts[0].RawDeposited.Equal(amount("300")), "funds are not refunded")
		assert.Empty(t, h.vault.Transfers())
	})
}

func TestDisabledAccountRejectsDeposits(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		active := h.open(t, alice, gold, "1000")
		disabled := h.open(t, alice, gold, "1000")
		require.NoError(t, h.ledger.Disable(ctx, disabled.ID, alice))

		_, _, err := h.ledger.OnAssetReceived(ctx, models.Receipt{
			AssetID:    gold,
			Sender:     bob,
			Amount:     amount("10"),
			RoutingTag: EncodeRoutingTag(disabled.ID),
		})
		assert.ErrorIs(t, err, ErrAccountNotActive)

		accounts, err := h.ledger.ListAccounts(ctx, alice)
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, active.ID, accounts[0].ID)
		assert.Equal(t, models.AccountStatusActive, accounts[0].Status)
		assert.Equal(t, disabled.ID, accounts[1].ID)
		assert.Equal(t, models.AccountStatusDisabled, accounts[1].Status)
		assert.True(t, accounts[1].RawDeposited.IsZero())

		_, err = h.ledger.CurrentValuation(ctx, disabled.ID, alice)
		assert.ErrorIs(t, err, ErrAccountNotActive)
	})
}

func TestOnAssetReceived(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "1000")

		h.clock.Advance(time.Hour)
		d, replayed, err := h.ledger.OnAssetReceived(ctx, models.Receipt{
			AssetID:    gold,
			Sender:     bob,
			Amount:     amount("250"),
			RoutingTag: EncodeRoutingTag(account.ID),
		})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.NotEmpty(t, d.ID)
		assert.Equal(t, account.ID, d.AccountID)
		assert.Equal(t, bob, d.Sender)
		assert.True(t, d.CreatedAt.Equal(h.clock.Now()))

		accounts, err := h.ledger.ListAccounts(ctx, alice)
		require.NoError(t, err)
		assert.True(t, accounts[0].RawDeposited.Equal(amount("250")))
		assert.True(t, accounts[0].LastActivity.Equal(h.clock.Now()))
	})
}

func TestOnAssetReceived_Rejections(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "1000")

		tests := []struct {
			name    string
			receipt models.Receipt
			want    error
		}{
			{"empty tag", models.Receipt{AssetID: gold, Amount: amount("1")}, ErrAccountNotFound},
			{"unknown id", models.Receipt{AssetID: gold, Amount: amount("1"), RoutingTag: EncodeRoutingTag(account.ID + 1)}, ErrAccountNotFound},
			{"oversize tag", models.Receipt{AssetID: gold, Amount: amount("1"), RoutingTag: make([]byte, 33)}, ErrAccountNotFound},
			{"wrong asset", models.Receipt{AssetID: silver, Amount: amount("1"), RoutingTag: EncodeRoutingTag(account.ID)}, ErrAssetMismatch},
			{"zero amount", models.Receipt{AssetID: gold, Amount: amount("0"), RoutingTag: EncodeRoutingTag(account.ID)}, ErrInvalidAmount},
			{"fractional amount", models.Receipt{AssetID: gold, Amount: amount("0.5"), RoutingTag: EncodeRoutingTag(account.ID)}, ErrInvalidAmount},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := h.ledger.OnAssetReceived(ctx, tt.receipt)
				assert.ErrorIs(t, err, tt.want)
			})
		}

		deposits, err := h.ledger.ListDeposits(ctx, account.ID, alice)
		require.NoError(t, err)
		assert.Empty(t, deposits, "rejected transfers leave no trace")
	})
}

func TestOnAssetReceived_ReplayedTransfer(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "1000")

		receipt := models.Receipt{
			AssetID:    gold,
			Sender:     bob,
			Amount:     amount("40"),
			RoutingTag: EncodeRoutingTag(account.ID),
			TransferID: "0xfeed",
		}
		first, replayed, err := h.ledger.OnAssetReceived(ctx, receipt)
		require.NoError(t, err)
		require.False(t, replayed)

		h.clock.Advance(period)
		second, replayed, err := h.ledger.OnAssetReceived(ctx, receipt)
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, first.ID, second.ID)

		deposits, err := h.ledger.ListDeposits(ctx, account.ID, alice)
		require.NoError(t, err)
		assert.Len(t, deposits, 1)
		assert.Equal(t, "32", h.value(t, account.ID, alice).String(), "a replay does not reset decay")
	})
}

func TestListDeposits(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "1000")

		for _, v := range []string{"1", "2", "3"} {
			h.deposit(t, account.ID, gold, v)
			h.clock.Advance(time.Minute)
		}

		deposits, err := h.ledger.ListDeposits(ctx, account.ID, alice)
		require.NoError(t, err)
		require.Len(t, deposits, 3)
		for i, v := range []string{"1", "2", "3"} {
			assert.Equal(t, v, deposits[i].Amount.String())
		}
		assert.True(t, deposits[0].CreatedAt.Before(deposits[2].CreatedAt))

		_, err = h.ledger.ListDeposits(ctx, account.ID, bob)
		assert.ErrorIs(t, err, ErrNotAccountOwner)

		// unknown ids fail the same way for every caller
		_, err = h.ledger.ListDeposits(ctx, 99, bob)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		_, err = h.ledger.ListDeposits(ctx, 99, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestCurrentValuation_DecaysPerPeriod(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		account := h.open(t, alice, gold, "1000000000000000000")
		h.deposit(t, account.ID, gold, "10000000000")

		assert.Equal(t, "10000000000", h.value(t, account.ID, alice).String())

		h.clock.Advance(period)
		assert.Equal(t, "8000000000", h.value(t, account.ID, alice).String())

		h.clock.Advance(period)
		assert.Equal(t, "6400000000", h.value(t, account.ID, alice).String())

		// reads never settle decay into stored state
		accounts, err := h.ledger.ListAccounts(context.Background(), alice)
		require.NoError(t, err)
		assert.Equal(t, "10000000000", accounts[0].RawDeposited.String())
	})
}

func TestCurrentValuation_DepositResetsDecay(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		account := h.open(t, alice, gold, "1000000")
		h.deposit(t, account.ID, gold, "1000")

		h.clock.Advance(3 * period)
		assert.Equal(t, "512", h.value(t, account.ID, alice).String())

		h.deposit(t, account.ID, gold, "1")
		assert.Equal(t, "1001", h.value(t, account.ID, alice).String())

		h.clock.Advance(period - time.Second)
		assert.Equal(t, "1001", h.value(t, account.ID, alice).String())
		h.clock.Advance(time.Second)
		assert.Equal(t, "801", h.value(t, account.ID, alice).String())
	})
}

func TestCurrentValuation_FrozenOnceGoalReached(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		account := h.open(t, alice, gold, "500")
		h.deposit(t, account.ID, gold, "200")
		h.deposit(t, account.ID, gold, "300")

		for i := 0; i < 5; i++ {
			h.clock.Advance(10 * period)
			assert.Equal(t, "500", h.value(t, account.ID, alice).String())
		}
	})
}

func TestCurrentValuation_Access(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "500")

		_, err := h.ledger.CurrentValuation(ctx, account.ID, bob)
		assert.ErrorIs(t, err, ErrNotAccountOwner)
		_, err = h.ledger.CurrentValuation(ctx, account.ID+1, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.True(t, h.value(t, account.ID, alice).IsZero())
	})
}

func TestWithdraw_GoalLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		target := amount("1000000000000000000")
		account := h.open(t, alice, gold, target.String())

		h.deposit(t, account.ID, gold, target.Div(decimal.NewFromInt(2)).String())
		h.clock.Advance(2 * period)

		_, err := h.ledger.Withdraw(ctx, account.ID, alice)
		assert.ErrorIs(t, err, ErrGoalNotReached)

		h.deposit(t, account.ID, gold, target.String())
		before := h.value(t, account.ID, alice)

		paid, err := h.ledger.Withdraw(ctx, account.ID, alice)
		require.NoError(t, err)
		assert.True(t, paid.Equal(before))
		assert.Equal(t, "1500000000000000000", paid.String())
		assert.True(t, h.vault.Paid(gold, alice).Equal(paid))

		_, err = h.ledger.CurrentValuation(ctx, account.ID, alice)
		assert.ErrorIs(t, err, ErrAccountNotActive)

		_, err = h.ledger.Withdraw(ctx, account.ID, alice)
		assert.ErrorIs(t, err, ErrAccountNotActive)

		accounts, err := h.ledger.ListAccounts(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, models.AccountStatusCompleted, accounts[0].Status)
	})
}

func TestWithdraw_Access(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "10")
		h.deposit(t, account.ID, gold, "10")

		_, err := h.ledger.Withdraw(ctx, account.ID, bob)
		assert.ErrorIs(t, err, ErrNotAccountOwner)
		_, err = h.ledger.Withdraw(ctx, account.ID+1, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)

		require.NoError(t, h.ledger.Disable(ctx, account.ID, alice))
		_, err = h.ledger.Withdraw(ctx, account.ID, alice)
		assert.ErrorIs(t, err, ErrAccountNotActive)
		assert.Empty(t, h.vault.Transfers())
	})
}

func TestWithdraw_FailedTransferRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		l := NewLedger(h.store, failingTransferer{}, operator, WithClock(h.clock.Now))

		account := h.open(t, alice, gold, "10")
		h.deposit(t, account.ID, gold, "10")

		_, err := l.Withdraw(ctx, account.ID, alice)
		assert.ErrorContains(t, err, "reverted")

		v, err := l.CurrentValuation(ctx, account.ID, alice)
		require.NoError(t, err, "account stays active")
		assert.Equal(t, "10", v.String())

		paid, err := h.ledger.Withdraw(ctx, account.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, "10", paid.String())
	})
}

func TestCollect(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "1000000000000000000")
		h.deposit(t, account.ID, gold, "10000000000")

		_, err := h.ledger.CollectableAmount(ctx, gold, alice)
		assert.ErrorIs(t, err, ErrNotLedgerOwner)
		_, err = h.ledger.Collect(ctx, gold, alice)
		assert.ErrorIs(t, err, ErrNotLedgerOwner)

		due, err := h.ledger.CollectableAmount(ctx, gold, operator)
		require.NoError(t, err)
		assert.True(t, due.IsZero())
		_, err = h.ledger.Collect(ctx, gold, operator)
		assert.ErrorIs(t, err, ErrNothingToCollect)

		h.clock.Advance(period)
		due, err = h.ledger.CollectableAmount(ctx, gold, operator)
		require.NoError(t, err)
		assert.Equal(t, "2000000000", due.String())

		paid, err := h.ledger.Collect(ctx, gold, operator)
		require.NoError(t, err)
		assert.Equal(t, "2000000000", paid.String())
		assert.Equal(t, "2000000000", h.vault.Paid(gold, operator).String())

		// the same decay is never paid twice
		_, err = h.ledger.Collect(ctx, gold, operator)
		assert.ErrorIs(t, err, ErrNothingToCollect)

		h.clock.Advance(period)
		paid, err = h.ledger.Collect(ctx, gold, operator)
		require.NoError(t, err)
		assert.Equal(t, "1600000000", paid.String())
		assert.Equal(t, "3600000000", h.vault.Paid(gold, operator).String())

		// a fresh deposit resets decay below what was already collected
		h.deposit(t, account.ID, gold, "1")
		due, err = h.ledger.CollectableAmount(ctx, gold, operator)
		require.NoError(t, err)
		assert.True(t, due.IsZero())
	})
}

func TestCollect_ScopedToActiveAccountsOfAsset(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		a := h.open(t, alice, gold, "1000000")
		b := h.open(t, bob, gold, "1000000")
		c := h.open(t, bob, silver, "1000000")
		h.deposit(t, a.ID, gold, "1000")
		h.deposit(t, b.ID, gold, "500")
		h.deposit(t, c.ID, silver, "2000")
		require.NoError(t, h.ledger.Disable(ctx, b.ID, bob))

		h.clock.Advance(period)

		due, err := h.ledger.CollectableAmount(ctx, gold, operator)
		require.NoError(t, err)
		assert.Equal(t, "200", due.String(), "only the active gold account counts")

		due, err = h.ledger.CollectableAmount(ctx, silver, operator)
		require.NoError(t, err)
		assert.Equal(t, "400", due.String())

		paid, err := h.ledger.Collect(ctx, gold, operator)
		require.NoError(t, err)
		assert.Equal(t, "200", paid.String())

		due, err = h.ledger.CollectableAmount(ctx, silver, operator)
		require.NoError(t, err)
		assert.Equal(t, "400", due.String(), "collecting one asset leaves others untouched")
	})
}

func TestCollect_FailedTransferRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		l := NewLedger(h.store, failingTransferer{}, operator, WithClock(h.clock.Now))

		account := h.open(t, alice, gold, "1000000")
		h.deposit(t, account.ID, gold, "1000")
		h.clock.Advance(period)

		_, err := l.Collect(ctx, gold, operator)
		require.Error(t, err)

		paid, err := h.ledger.Collect(ctx, gold, operator)
		require.NoError(t, err)
		assert.Equal(t, "200", paid.String())
	})
}

func TestEventsPublished(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()

		account := h.open(t, alice, gold, "100")
		h.deposit(t, account.ID, gold, "40")
		h.clock.Advance(period)
		_, err := h.ledger.Collect(ctx, gold, operator)
		require.NoError(t, err)
		h.deposit(t, account.ID, gold, "60")
		_, err = h.ledger.Withdraw(ctx, account.ID, alice)
		require.NoError(t, err)
		other := h.open(t, bob, gold, "100")
		require.NoError(t, h.ledger.Disable(ctx, other.ID, bob))

		assert.Equal(t, []string{
			events.TypeAccountCreated,
			events.TypeDepositRecorded,
			events.TypeFeesCollected,
			events.TypeDepositRecorded,
			events.TypeAccountCompleted,
			events.TypeAccountCreated,
			events.TypeAccountDisabled,
		}, h.publisher.types())

		for _, e := range h.publisher.events {
			assert.NotEmpty(t, e.ID)
			assert.False(t, e.OccurredAt.IsZero())
		}
	})
}

func TestConcurrentDeposits(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "1000000")

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _, err := h.ledger.OnAssetReceived(ctx, models.Receipt{
					AssetID:    gold,
					Sender:     bob,
					Amount:     amount("2"),
					RoutingTag: EncodeRoutingTag(account.ID),
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, "100", h.value(t, account.ID, alice).String())
		deposits, err := h.ledger.ListDeposits(ctx, account.ID, alice)
		require.NoError(t, err)
		assert.Len(t, deposits, 50)
	})
}

func TestAccountIDsBeyondStoreRange(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		h.open(t, alice, gold, "100")
		const huge = uint64(1) << 63

		_, _, err := h.ledger.OnAssetReceived(ctx, models.Receipt{
			AssetID:    gold,
			Sender:     bob,
			Amount:     amount("1"),
			RoutingTag: EncodeRoutingTag(huge),
		})
		assert.ErrorIs(t, err, ErrAccountNotFound)

		_, err = h.ledger.IsOwner(ctx, huge, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		_, err = h.ledger.ListDeposits(ctx, huge, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		_, err = h.ledger.CurrentValuation(ctx, huge, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		_, err = h.ledger.Withdraw(ctx, huge, alice)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.ErrorIs(t, h.ledger.Disable(ctx, huge, alice), ErrAccountNotFound)
	})
}

func TestWithdraw_CancelledAfterPayoutStillCompletes(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		account := h.open(t, alice, gold, "10")
		h.deposit(t, account.ID, gold, "10")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		l := NewLedger(h.store, cancellingTransferer{vault: h.vault, cancel: cancel}, operator, WithClock(h.clock.Now))

		paid, err := l.Withdraw(ctx, account.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, "10", paid.String())

		_, err = h.ledger.Withdraw(context.Background(), account.ID, alice)
		assert.ErrorIs(t, err, ErrAccountNotActive)
		assert.Equal(t, "10", h.vault.Paid(gold, alice).String(), "paid exactly once")
	})
}

func TestCollect_CancelledAfterPayoutStillAdvancesCounter(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		account := h.open(t, alice, gold, "1000000")
		h.deposit(t, account.ID, gold, "1000")
		h.clock.Advance(period)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		l := NewLedger(h.store, cancellingTransferer{vault: h.vault, cancel: cancel}, operator, WithClock(h.clock.Now))

		paid, err := l.Collect(ctx, gold, operator)
		require.NoError(t, err)
		assert.Equal(t, "200", paid.String())

		_, err = h.ledger.Collect(context.Background(), gold, operator)
		assert.ErrorIs(t, err, ErrNothingToCollect)
		assert.Equal(t, "200", h.vault.Paid(gold, operator).String())
	})
}

func TestLostStatusRaceReadsAsNotActive(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *harness) {
		ctx := context.Background()
		account := h.open(t, alice, gold, "10")
		h.deposit(t, account.ID, gold, "10")

		l := NewLedger(conflictingStore{h.store}, h.vault, operator, WithClock(h.clock.Now))

		assert.ErrorIs(t, l.Disable(ctx, account.ID, alice), ErrAccountNotActive)
		_, err := l.Withdraw(ctx, account.ID, alice)
		assert.ErrorIs(t, err, ErrAccountNotActive)
		assert.Empty(t, h.vault.Transfers())
	})
}
