package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionStore_Open_RejectsDuplicateOpenPosition(t *testing.T) {
	store := NewPositionStore()
	date := time.Now()

	_, err := store.Open(1, "SPY", decimal.NewFromInt(100), 10, date, nil)
	require.NoError(t, err)

	_, err = store.Open(1, "SPY", decimal.NewFromInt(101), 5, date, nil)
	require.Error(t, err)
	reason, ok := rejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, RejectDuplicateOpenPosition, reason)
}

func TestPositionStore_Close_ComputesRealizedPL(t *testing.T) {
	store := NewPositionStore()
	date := time.Now()

	pos, err := store.Open(1, "SPY", decimal.NewFromInt(100), 10, date, nil)
	require.NoError(t, err)

	closed, err := store.Close(pos.ID, decimal.NewFromInt(110), date.AddDate(0, 0, 1), "user")
	require.NoError(t, err)

	require.NotNil(t, closed.RealizedPL)
	assert.True(t, closed.RealizedPL.Equal(decimal.NewFromInt(100)), "expected (110-100)*10 = 100, got %s", closed.RealizedPL)
	assert.Equal(t, PositionClosed, closed.Status)
}

func TestPositionStore_Close_UnknownPositionIsInvariantBreach(t *testing.T) {
	store := NewPositionStore()
	_, err := store.Close(999, decimal.NewFromInt(100), time.Now(), "user")
	assert.ErrorIs(t, err, ErrInvariantBreach)
}

func TestPositionStore_GetOpen_ExcludesClosedAndOtherAccounts(t *testing.T) {
	store := NewPositionStore()
	date := time.Now()

	p1, err := store.Open(1, "SPY", decimal.NewFromInt(100), 10, date, nil)
	require.NoError(t, err)
	_, err = store.Open(1, "QQQ", decimal.NewFromInt(200), 5, date, nil)
	require.NoError(t, err)
	_, err = store.Open(2, "SPY", decimal.NewFromInt(100), 10, date, nil)
	require.NoError(t, err)

	_, err = store.Close(p1.ID, decimal.NewFromInt(105), date, "user")
	require.NoError(t, err)

	open := store.GetOpen(1)
	require.Len(t, open, 1)
	assert.Equal(t, "QQQ", open[0].Symbol)
}
