package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBar(symbol, date string, close float64) Bar {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return Bar{Symbol: symbol, Date: d, Open: decimal.NewFromFloat(close), High: decimal.NewFromFloat(close), Low: decimal.NewFromFloat(close), Close: decimal.NewFromFloat(close), AdjustedClose: decimal.NewFromFloat(close), Volume: 1000}
}

func TestProvider_GetBar_RejectsFutureDataAccess(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put("SPY", mustBar("SPY", "2024-01-01", 100), mustBar("SPY", "2024-01-05", 105))

	provider := NewProvider(repo, mustDate(t, "2024-01-01"))

	_, err := provider.GetBar("SPY", mustDate(t, "2024-01-05"))
	require.Error(t, err)

	fault := asFault(err)
	assert.Equal(t, string(FaultFutureDataAccess), fault.Kind)
}

func TestProvider_GetBar_ReturnsLastBarAtOrBeforeAsOf(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put("SPY", mustBar("SPY", "2024-01-01", 100), mustBar("SPY", "2024-01-03", 103))

	provider := NewProvider(repo, mustDate(t, "2024-01-01"))
	require.NoError(t, provider.AdvanceTime(mustDate(t, "2024-01-05")))

	bar, err := provider.GetBar("SPY", mustDate(t, "2024-01-05"))
	require.NoError(t, err)
	assert.True(t, bar.Close.Equal(decimal.NewFromFloat(103)))
}

func TestProvider_GetBar_DataNotFoundBeforeFirstBar(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put("SPY", mustBar("SPY", "2024-01-10", 100))

	provider := NewProvider(repo, mustDate(t, "2024-01-01"))

	_, err := provider.GetBar("SPY", mustDate(t, "2024-01-01"))
	require.Error(t, err)
	assert.Equal(t, string(FaultDataNotFound), asFault(err).Kind)
}

func TestProvider_GetBar_UnknownSymbol(t *testing.T) {
	repo := NewMemoryRepository()
	provider := NewProvider(repo, mustDate(t, "2024-01-01"))

	_, err := provider.GetBar("NOPE", mustDate(t, "2024-01-01"))
	require.Error(t, err)
	assert.Equal(t, string(FaultDataNotFound), asFault(err).Kind)
}

func TestProvider_AdvanceTime_RejectsClockRegression(t *testing.T) {
	repo := NewMemoryRepository()
	provider := NewProvider(repo, mustDate(t, "2024-01-10"))

	err := provider.AdvanceTime(mustDate(t, "2024-01-05"))
	require.Error(t, err)
	assert.Equal(t, string(FaultClockRegression), asFault(err).Kind)
}

func TestProvider_GetHistoricalBars_ClampsToClockAndRange(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put("SPY",
		mustBar("SPY", "2024-01-01", 100),
		mustBar("SPY", "2024-01-02", 101),
		mustBar("SPY", "2024-01-03", 102),
		mustBar("SPY", "2024-01-10", 110),
	)

	provider := NewProvider(repo, mustDate(t, "2024-01-01"))
	require.NoError(t, provider.AdvanceTime(mustDate(t, "2024-01-03")))

	bars, err := provider.GetHistoricalBars("SPY", mustDate(t, "2024-01-01"), mustDate(t, "2024-01-10"))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, "2024-01-03", bars[len(bars)-1].Date.Format("2006-01-02"))
}

func TestProvider_GetHistoricalBars_FromBeyondClockIsEmpty(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put("SPY", mustBar("SPY", "2024-01-01", 100))

	provider := NewProvider(repo, mustDate(t, "2024-01-01"))

	bars, err := provider.GetHistoricalBars("SPY", mustDate(t, "2024-02-01"), mustDate(t, "2024-03-01"))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
