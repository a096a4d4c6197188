package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskEvaluator_Validate_RejectsInsufficientFunds(t *testing.T) {
	accounts := NewAccountStore(1, decimal.NewFromInt(100), time.Now())
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)

	order := Order{AccountID: 1, Symbol: "SPY", Side: SideBuy, Quantity: 10}
	err := risk.Validate(order, decimal.NewFromInt(100), decimal.NewFromInt(5))

	require.Error(t, err)
	reason, ok := rejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, RejectInsufficientFunds, reason)
}

func TestRiskEvaluator_Validate_RejectsNoPositionToClose(t *testing.T) {
	accounts := NewAccountStore(1, decimal.NewFromInt(1000), time.Now())
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)

	order := Order{AccountID: 1, Symbol: "SPY", Side: SideSell, Quantity: 10}
	err := risk.Validate(order, decimal.NewFromInt(100), decimal.NewFromInt(5))

	require.Error(t, err)
	reason, ok := rejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, RejectNoPositionToClose, reason)
}

func TestRiskEvaluator_Validate_RejectsNonPositiveQuantity(t *testing.T) {
	accounts := NewAccountStore(1, decimal.NewFromInt(1000), time.Now())
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)

	order := Order{AccountID: 1, Symbol: "SPY", Side: SideBuy, Quantity: 0}
	err := risk.Validate(order, decimal.NewFromInt(100), decimal.NewFromInt(5))

	reason, ok := rejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, RejectNonPositiveQuantity, reason)
}

func TestRiskEvaluator_EvaluateStopLoss_PriceTakesPriorityOverTime(t *testing.T) {
	accounts := NewAccountStore(1, decimal.NewFromInt(1000), time.Now())
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)

	entryDate := mustDate(t, "2024-01-01")
	stopPrice := decimal.NewFromInt(90)
	stopDays := 5
	pos := Position{
		EntryDate:     entryDate,
		StopLossPrice: &stopPrice,
		StopLossDays:  &stopDays,
	}

	currentDate := entryDate.AddDate(0, 0, 10) // time stop would also fire
	bar := Bar{Close: decimal.NewFromInt(85)}  // price stop fires too

	trigger := risk.EvaluateStopLoss(pos, bar, currentDate)
	assert.Equal(t, StopPriceStop, trigger)
}

func TestRiskEvaluator_EvaluateStopLoss_TimeStopAloneFires(t *testing.T) {
	accounts := NewAccountStore(1, decimal.NewFromInt(1000), time.Now())
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)

	entryDate := mustDate(t, "2024-01-01")
	stopDays := 5
	pos := Position{EntryDate: entryDate, StopLossDays: &stopDays}

	trigger := risk.EvaluateStopLoss(pos, Bar{Close: decimal.NewFromInt(200)}, entryDate.AddDate(0, 0, 5))
	assert.Equal(t, StopTimeStop, trigger)
}

func TestRiskEvaluator_EvaluateStopLoss_NoneWhenNeitherFires(t *testing.T) {
	accounts := NewAccountStore(1, decimal.NewFromInt(1000), time.Now())
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)

	entryDate := mustDate(t, "2024-01-01")
	stopPrice := decimal.NewFromInt(90)
	stopDays := 10
	pos := Position{EntryDate: entryDate, StopLossPrice: &stopPrice, StopLossDays: &stopDays}

	trigger := risk.EvaluateStopLoss(pos, Bar{Close: decimal.NewFromInt(200)}, entryDate.AddDate(0, 0, 2))
	assert.Equal(t, StopNone, trigger)
}
