// Package strategy holds concrete implementations of the backtest.Strategy
// port. The reference strategy here is a moving-average crossover,
// recomputed fresh from the provider's historical window each day rather
// than from incrementally maintained state, per the windowed-recalculation
// contract the engine specifies for it.
package strategy

import (
	"fmt"
	"time"

	"github.com/pi5trading/backtestengine/internal/backtest"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MovingAverageCrossover emits a Buy when the short-period average crosses
// above the long-period average, and a Sell when it crosses below. Both
// periods are positive and ShortPeriod < LongPeriod.
type MovingAverageCrossover struct {
	Symbols      []string
	ShortPeriod  int
	LongPeriod   int
	PositionSize int64
	StopLoss     *backtest.StopLoss

	logger zerolog.Logger
}

// NewMovingAverageCrossover validates shortPeriod < longPeriod (the
// contract's sole parameter invariant) and returns a ready strategy.
func NewMovingAverageCrossover(symbols []string, shortPeriod, longPeriod int, positionSize int64, stopLoss *backtest.StopLoss, logger zerolog.Logger) (*MovingAverageCrossover, error) {
	if shortPeriod <= 0 || longPeriod <= 0 {
		return nil, fmt.Errorf("moving average periods must be positive")
	}
	if shortPeriod >= longPeriod {
		return nil, fmt.Errorf("short period (%d) must be less than long period (%d)", shortPeriod, longPeriod)
	}
	return &MovingAverageCrossover{
		Symbols:      symbols,
		ShortPeriod:  shortPeriod,
		LongPeriod:   longPeriod,
		PositionSize: positionSize,
		StopLoss:     stopLoss,
		logger:       logger.With().Str("component", "ma_crossover").Logger(),
	}, nil
}

// GenerateSignals implements backtest.Strategy. For each symbol it fetches
// a window sized to guarantee at least LongPeriod bars under normal data,
// then compares today's moving averages against yesterday's — never
// maintaining incremental state across calls.
func (s *MovingAverageCrossover) GenerateSignals(provider *backtest.Provider, currentDate time.Time) ([]backtest.Signal, error) {
	var signals []backtest.Signal

	window := time.Duration(2*s.LongPeriod) * 24 * time.Hour
	from := currentDate.Add(-window)

	for _, symbol := range s.Symbols {
		bars, err := provider.GetHistoricalBars(symbol, from, currentDate)
		if err != nil {
			return nil, err
		}
		if len(bars) < s.LongPeriod || len(bars)-1 < s.LongPeriod {
			continue
		}

		shortMA := closeMean(bars, s.ShortPeriod)
		longMA := closeMean(bars, s.LongPeriod)
		shortMAPrev := closeMean(bars[:len(bars)-1], s.ShortPeriod)
		longMAPrev := closeMean(bars[:len(bars)-1], s.LongPeriod)

		switch {
		case shortMAPrev.LessThanOrEqual(longMAPrev) && shortMA.GreaterThan(longMA):
			signals = append(signals, backtest.Signal{
				Symbol:   symbol,
				Side:     backtest.SideBuy,
				Quantity: s.PositionSize,
				StopLoss: s.StopLoss,
				Reason:   fmt.Sprintf("bullish crossover: short %s > long %s", shortMA, longMA),
			})
			s.logger.Info().Str("symbol", symbol).Str("short_ma", shortMA.String()).Str("long_ma", longMA.String()).Msg("bullish crossover")

		case shortMAPrev.GreaterThanOrEqual(longMAPrev) && shortMA.LessThan(longMA):
			signals = append(signals, backtest.Signal{
				Symbol:   symbol,
				Side:     backtest.SideSell,
				Quantity: s.PositionSize,
				Reason:   fmt.Sprintf("bearish crossover: short %s < long %s", shortMA, longMA),
			})
			s.logger.Info().Str("symbol", symbol).Str("short_ma", shortMA.String()).Str("long_ma", longMA.String()).Msg("bearish crossover")
		}
	}

	return signals, nil
}

// closeMean averages the close of the last period bars in a date-ascending
// slice.
func closeMean(bars []backtest.Bar, period int) decimal.Decimal {
	recent := bars[len(bars)-period:]
	sum := decimal.Zero
	for _, b := range recent {
		sum = sum.Add(b.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}
