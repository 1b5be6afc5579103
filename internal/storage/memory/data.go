package memory

import (
	"fmt"
	"maps"
	"time"

	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// ledgerData is the unsynchronised state behind a MemoryLedgerStore.
type ledgerData struct {
	lastID    uint64
	accounts  map[uint64]models.Account
	order     []uint64 // account ids in creation order
	deposits  map[uint64][]models.Deposit
	transfers map[string]models.Deposit // keyed by transfer id
	collected map[string]decimal.Decimal
}

func newLedgerData() *ledgerData {
	return &ledgerData{
		accounts:  make(map[uint64]models.Account),
		deposits:  make(map[uint64][]models.Deposit),
		transfers: make(map[string]models.Deposit),
		collected: make(map[string]decimal.Decimal),
	}
}

// clone copies everything a transaction may write. Deposit slices are
// append-only, so copying the slice headers with capped capacity is enough.
func (d *ledgerData) clone() *ledgerData {
	c := &ledgerData{
		lastID:    d.lastID,
		accounts:  maps.Clone(d.accounts),
		order:     d.order[:len(d.order):len(d.order)],
		deposits:  make(map[uint64][]models.Deposit, len(d.deposits)),
		transfers: maps.Clone(d.transfers),
		collected: maps.Clone(d.collected),
	}
	for id, list := range d.deposits {
		c.deposits[id] = list[:len(list):len(list)]
	}
	return c
}

func (d *ledgerData) createAccount(account models.Account) models.Account {
	d.lastID++
	account.ID = d.lastID
	d.accounts[account.ID] = account
	d.order = append(d.order, account.ID)
	return account
}

func (d *ledgerData) getAccount(id uint64) (models.Account, error) {
	account, ok := d.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("account %d: %w", id, interfaces.ErrRecordNotFound)
	}
	return account, nil
}

func (d *ledgerData) accountsWhere(match func(models.Account) bool) []models.Account {
	result := make([]models.Account, 0)
	for _, id := range d.order {
		if a := d.accounts[id]; match(a) {
			result = append(result, a)
		}
	}
	return result
}

func (d *ledgerData) updateActivity(id uint64, raw decimal.Decimal, lastActivity time.Time) error {
	account, err := d.getAccount(id)
	if err != nil {
		return err
	}
	account.RawDeposited = raw
	account.LastActivity = lastActivity
	d.accounts[id] = account
	return nil
}

func (d *ledgerData) updateStatus(id uint64, from, to models.AccountStatus) error {
	account, err := d.getAccount(id)
	if err != nil {
		return err
	}
	if account.Status != from {
		return fmt.Errorf("account %d is %s: %w", id, account.Status, interfaces.ErrStatusConflict)
	}
	account.Status = to
	d.accounts[id] = account
	return nil
}

func (d *ledgerData) saveDeposit(deposit models.Deposit) error {
	if _, err := d.getAccount(deposit.AccountID); err != nil {
		return err
	}
	d.deposits[deposit.AccountID] = append(d.deposits[deposit.AccountID], deposit)
	if deposit.TransferID != "" {
		d.transfers[deposit.TransferID] = deposit
	}
	return nil
}

func (d *ledgerData) depositsByAccount(accountID uint64) []models.Deposit {
	list := d.deposits[accountID]
	copied := make([]models.Deposit, len(list))
	copy(copied, list)
	return copied
}

func (d *ledgerData) depositByTransferID(transferID string) (models.Deposit, error) {
	deposit, ok := d.transfers[transferID]
	if !ok {
		return models.Deposit{}, fmt.Errorf("transfer %q: %w", transferID, interfaces.ErrRecordNotFound)
	}
	return deposit, nil
}
