package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountStore_ReserveFunds_SucceedsWithinBalance(t *testing.T) {
	store := NewAccountStore(1, decimal.NewFromInt(1000), time.Now())

	ok, err := store.ReserveFunds(1, decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.True(t, ok)

	account, err := store.Get(1)
	require.NoError(t, err)
	assert.True(t, account.CurrentCash.Equal(decimal.NewFromInt(600)))
}

func TestAccountStore_ReserveFunds_FailsWhenInsufficient(t *testing.T) {
	store := NewAccountStore(1, decimal.NewFromInt(100), time.Now())

	ok, err := store.ReserveFunds(1, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.False(t, ok)

	account, _ := store.Get(1)
	assert.True(t, account.CurrentCash.Equal(decimal.NewFromInt(100)))
}

func TestAccountStore_ApplyTrade_RejectsNegativeCash(t *testing.T) {
	store := NewAccountStore(1, decimal.NewFromInt(100), time.Now())

	err := store.ApplyTrade(1, decimal.NewFromInt(-500))
	assert.ErrorIs(t, err, ErrInvariantBreach)
}

func TestAccountStore_TotalEquity_SumsCashAndOpenPositions(t *testing.T) {
	store := NewAccountStore(1, decimal.NewFromInt(1000), time.Now())
	_, err := store.ReserveFunds(1, decimal.NewFromInt(500))
	require.NoError(t, err)

	positions := []Position{
		{AccountID: 1, Symbol: "SPY", Quantity: 5, Status: PositionOpen},
	}
	pricer := func(symbol string) (decimal.Decimal, error) {
		return decimal.NewFromInt(100), nil
	}

	equity, err := store.TotalEquity(1, positions, pricer)
	require.NoError(t, err)
	assert.True(t, equity.Equal(decimal.NewFromInt(1000)), "expected 500 cash + 500 position value, got %s", equity)
}
