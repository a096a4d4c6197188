package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountStore holds the single Account for one backtest run. A run scopes
// exactly one account; there is no cross-run sharing, so a single mutable
// struct (rather than a map of accounts) is sufficient and keeps mutation
// sites obvious.
type AccountStore struct {
	account Account
}

// NewAccountStore creates the run's account with id and initialCapital as
// its starting cash.
func NewAccountStore(id int64, initialCapital decimal.Decimal, createdDate time.Time) *AccountStore {
	return &AccountStore{
		account: Account{
			ID:             id,
			InitialCapital: initialCapital,
			CurrentCash:    initialCapital,
			CreatedDate:    civilDate(createdDate),
			IsActive:       true,
		},
	}
}

// Get returns a copy of the account. id is accepted for interface parity
// with a multi-account store even though this run scopes exactly one.
func (s *AccountStore) Get(id int64) (Account, error) {
	if id != s.account.ID {
		return Account{}, fmt.Errorf("%w: unknown account %d", ErrInvariantBreach, id)
	}
	return s.account, nil
}

// ReserveFunds atomically debits currentCash by amount if currentCash >=
// amount, reporting success. It never leaves currentCash negative.
func (s *AccountStore) ReserveFunds(id int64, amount decimal.Decimal) (bool, error) {
	if id != s.account.ID {
		return false, fmt.Errorf("%w: unknown account %d", ErrInvariantBreach, id)
	}
	if s.account.CurrentCash.LessThan(amount) {
		return false, nil
	}
	s.account.CurrentCash = s.account.CurrentCash.Sub(amount)
	return true, nil
}

// ReleaseFunds credits currentCash by amount.
func (s *AccountStore) ReleaseFunds(id int64, amount decimal.Decimal) error {
	if id != s.account.ID {
		return fmt.Errorf("%w: unknown account %d", ErrInvariantBreach, id)
	}
	s.account.CurrentCash = s.account.CurrentCash.Add(amount)
	return nil
}

// ApplyTrade credits or debits currentCash by the signed delta (net of
// commission).
func (s *AccountStore) ApplyTrade(id int64, deltaCash decimal.Decimal) error {
	if id != s.account.ID {
		return fmt.Errorf("%w: unknown account %d", ErrInvariantBreach, id)
	}
	next := s.account.CurrentCash.Add(deltaCash)
	if next.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: trade would drive cash negative", ErrInvariantBreach)
	}
	s.account.CurrentCash = next
	return nil
}

// Pricer prices a symbol as of the current simulation time. It is
// satisfied by (*Provider).GetBar composed with .Close.
type Pricer func(symbol string) (decimal.Decimal, error)

// TotalEquity computes currentCash + sum(openPosition.quantity *
// pricer(openPosition.symbol)) over every open position held by id.
func (s *AccountStore) TotalEquity(id int64, positions []Position, pricer Pricer) (decimal.Decimal, error) {
	account, err := s.Get(id)
	if err != nil {
		return decimal.Zero, err
	}

	equity := account.CurrentCash
	for _, pos := range positions {
		if pos.AccountID != id || pos.Status != PositionOpen {
			continue
		}
		price, err := pricer(pos.Symbol)
		if err != nil {
			return decimal.Zero, err
		}
		equity = equity.Add(price.Mul(decimal.NewFromInt(pos.Quantity)))
	}
	return equity, nil
}
