package runner

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi5trading/backtestengine/internal/backtest"
)

type noopStrategy struct{}

func (noopStrategy) GenerateSignals(provider *backtest.Provider, currentDate time.Time) ([]backtest.Signal, error) {
	return nil, nil
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCoordinator_RunMany_RunsEachConfigIndependently(t *testing.T) {
	repo := backtest.NewMemoryRepository()
	repo.Put("SPY",
		backtest.Bar{Symbol: "SPY", Date: mustDate("2024-01-01"), Close: decimal.NewFromInt(100), Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100), AdjustedClose: decimal.NewFromInt(100)},
		backtest.Bar{Symbol: "SPY", Date: mustDate("2024-01-02"), Close: decimal.NewFromInt(101), Open: decimal.NewFromInt(101), High: decimal.NewFromInt(101), Low: decimal.NewFromInt(101), AdjustedClose: decimal.NewFromInt(101)},
	)

	configs := []backtest.Config{
		{AccountID: 1, InitialCapital: decimal.NewFromInt(10000), StartDate: mustDate("2024-01-01"), EndDate: mustDate("2024-01-02"), Symbols: []string{"SPY"}},
		{AccountID: 2, InitialCapital: decimal.NewFromInt(20000), StartDate: mustDate("2024-01-01"), EndDate: mustDate("2024-01-02"), Symbols: []string{"SPY"}},
	}

	coordinator := New(repo, func(backtest.Config) (backtest.Strategy, error) {
		return noopStrategy{}, nil
	}, zerolog.Nop(), 2)

	results, err := coordinator.RunMany(context.Background(), configs)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, backtest.RunCompleted, results[0].Status)
	assert.Equal(t, backtest.RunCompleted, results[1].Status)
	assert.True(t, results[0].InitialCapital.Equal(decimal.NewFromInt(10000)))
	assert.True(t, results[1].InitialCapital.Equal(decimal.NewFromInt(20000)))
}
