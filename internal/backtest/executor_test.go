package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(initialCapital decimal.Decimal) (*Executor, *Provider, *AccountStore, *PositionStore) {
	repo := NewMemoryRepository()
	repo.Put("SPY", mustBar("SPY", "2024-01-01", 100), mustBar("SPY", "2024-01-02", 110))

	start := mustDateNoErr("2024-01-01")
	provider := NewProvider(repo, start)
	accounts := NewAccountStore(1, initialCapital, start)
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)
	executor := NewExecutor(accounts, positions, risk, FlatCommission(decimal.NewFromInt(5)))
	return executor, provider, accounts, positions
}

func mustDateNoErr(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestExecutor_Execute_BuyOpensPositionAndDebitsCash(t *testing.T) {
	executor, provider, accounts, positions := newTestExecutor(decimal.NewFromInt(10000))

	order := Order{AccountID: 1, Symbol: "SPY", Side: SideBuy, Quantity: 10}
	result, err := executor.Execute(order, provider, provider.CurrentTime())
	require.NoError(t, err)
	require.True(t, result.Success)

	account, _ := accounts.Get(1)
	// 10000 - (100*10 + 5) = 8995
	assert.True(t, account.CurrentCash.Equal(decimal.NewFromInt(8995)))

	open, found := positions.FindOpen(1, "SPY")
	require.True(t, found)
	assert.Equal(t, int64(10), open.Quantity)
}

func TestExecutor_Execute_BuyRejectedOnInsufficientFunds(t *testing.T) {
	executor, provider, accounts, _ := newTestExecutor(decimal.NewFromInt(50))

	order := Order{AccountID: 1, Symbol: "SPY", Side: SideBuy, Quantity: 10}
	result, err := executor.Execute(order, provider, provider.CurrentTime())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, RejectInsufficientFunds, result.Rejected)

	account, _ := accounts.Get(1)
	assert.True(t, account.CurrentCash.Equal(decimal.NewFromInt(50)), "rejected buy must not touch cash")
}

func TestExecutor_Execute_SellClosesPositionAndCreditsCash(t *testing.T) {
	executor, provider, accounts, _ := newTestExecutor(decimal.NewFromInt(10000))

	buy := Order{AccountID: 1, Symbol: "SPY", Side: SideBuy, Quantity: 10}
	_, err := executor.Execute(buy, provider, provider.CurrentTime())
	require.NoError(t, err)

	require.NoError(t, provider.AdvanceTime(mustDateNoErr("2024-01-02")))
	sell := Order{AccountID: 1, Symbol: "SPY", Side: SideSell, Quantity: 10}
	result, err := executor.Execute(sell, provider, provider.CurrentTime())
	require.NoError(t, err)
	require.True(t, result.Success)

	account, _ := accounts.Get(1)
	// 8995 + (110*10 - 5) = 10090
	assert.True(t, account.CurrentCash.Equal(decimal.NewFromInt(10090)))
}
