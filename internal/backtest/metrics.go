package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// profitFactorNoLosses is returned when there is gross profit but no
// gross loss to divide by. A true "infinite" profit factor cannot
// round-trip through a JSON result field, so — like the source this
// engine is modeled on — a large finite sentinel is reported instead.
const profitFactorNoLosses = 999.99

// tradingDaysPerYear is the annualization convention used for Sharpe and
// Sortino. The engine advances by calendar day, not trading day, which
// mildly biases this on markets with long holiday clusters; 252 is kept as
// the documented convention rather than re-derived per run.
const tradingDaysPerYear = 252

// roundTrip is one matched Buy+Sell pair, grouped by positionId.
type roundTrip struct {
	entryPrice decimal.Decimal
	exitPrice  decimal.Decimal
	quantity   int64
}

// MetricsCalculator derives the aggregate performance block of a Result
// from the trades and daily snapshots a run recorded.
type MetricsCalculator struct {
	trades         []Trade
	snapshots      []DailySnapshot
	initialCapital decimal.Decimal
}

// NewMetricsCalculator binds a calculator to one run's recorded trades and
// snapshots.
func NewMetricsCalculator(trades []Trade, snapshots []DailySnapshot, initialCapital decimal.Decimal) *MetricsCalculator {
	return &MetricsCalculator{trades: trades, snapshots: snapshots, initialCapital: initialCapital}
}

// Calculate fills in the scalar metrics block of a Result. It does not
// touch Result.Trades/DailySnapshots/Status — the driver owns those.
func (m *MetricsCalculator) Calculate() Result {
	var r Result
	r.InitialCapital = m.initialCapital

	r.FinalEquity = m.initialCapital
	if len(m.snapshots) > 0 {
		r.FinalEquity = m.snapshots[len(m.snapshots)-1].TotalEquity
	}

	if m.initialCapital.IsPositive() {
		r.TotalReturn = r.FinalEquity.Sub(m.initialCapital).Div(m.initialCapital)
	}

	r.MaxDrawdown = m.maxDrawdown()

	trips := m.roundTrips()
	r.TotalTrades = len(trips)

	grossProfit, grossLoss := decimal.Zero, decimal.Zero
	winning := 0
	for _, rt := range trips {
		pl := rt.exitPrice.Sub(rt.entryPrice).Mul(decimal.NewFromInt(rt.quantity))
		if rt.exitPrice.GreaterThan(rt.entryPrice) {
			winning++
			grossProfit = grossProfit.Add(pl)
		} else {
			grossLoss = grossLoss.Add(pl.Abs())
		}
	}
	r.WinningTrades = winning
	r.LosingTrades = len(trips) - winning
	if len(trips) > 0 {
		r.WinRate = float64(winning) / float64(len(trips))
	}
	r.ProfitFactor = profitFactor(grossProfit, grossLoss)

	returns := m.dailyReturns()
	r.SharpeRatio = sharpeRatio(returns)
	r.SortinoRatio = sortinoRatio(returns)
	r.CalmarRatio = calmarRatio(r.TotalReturn, r.MaxDrawdown)

	return r
}

// roundTrips groups trades by positionId into matched Buy+Sell pairs.
// Unmatched (still-open) trades are excluded from trade-count statistics,
// per the engine's round-tripping contract.
func (m *MetricsCalculator) roundTrips() []roundTrip {
	type half struct {
		buy, sell *Trade
	}
	byPosition := make(map[int64]*half)
	order := make([]int64, 0)

	for i := range m.trades {
		t := &m.trades[i]
		h, ok := byPosition[t.PositionID]
		if !ok {
			h = &half{}
			byPosition[t.PositionID] = h
			order = append(order, t.PositionID)
		}
		switch t.Side {
		case SideBuy:
			h.buy = t
		case SideSell:
			h.sell = t
		}
	}

	trips := make([]roundTrip, 0, len(order))
	for _, id := range order {
		h := byPosition[id]
		if h.buy == nil || h.sell == nil {
			continue
		}
		trips = append(trips, roundTrip{
			entryPrice: h.buy.ExecutionPrice,
			exitPrice:  h.sell.ExecutionPrice,
			quantity:   h.buy.Quantity,
		})
	}
	return trips
}

// maxDrawdown sweeps snapshots left to right maintaining a running peak
// and reports the maximum fractional decline from that peak.
func (m *MetricsCalculator) maxDrawdown() float64 {
	if len(m.snapshots) == 0 {
		return 0
	}

	peak := m.snapshots[0].TotalEquity
	maxDD := 0.0
	for _, s := range m.snapshots {
		if s.TotalEquity.GreaterThan(peak) {
			peak = s.TotalEquity
		}
		if peak.IsZero() {
			continue
		}
		dd, _ := peak.Sub(s.TotalEquity).Div(peak).Float64()
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// dailyReturns computes r_t = (eq_t - eq_(t-1)) / eq_(t-1) for t >= 1.
// Sharpe/Sortino are statistical summaries, so this is the one place the
// engine legitimately works in float64 rather than decimal.
func (m *MetricsCalculator) dailyReturns() []float64 {
	if len(m.snapshots) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(m.snapshots)-1)
	for i := 1; i < len(m.snapshots); i++ {
		prev := m.snapshots[i-1].TotalEquity
		if prev.IsZero() {
			continue
		}
		r, _ := m.snapshots[i].TotalEquity.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns
}

func profitFactor(grossProfit, grossLoss decimal.Decimal) float64 {
	if grossLoss.IsZero() {
		if grossProfit.IsPositive() {
			return profitFactorNoLosses
		}
		return 0
	}
	pf, _ := grossProfit.Div(grossLoss).Float64()
	return pf
}

// populationStdev divides by N, not N-1. This is the documented
// convention for this engine's Sharpe/Sortino math — sample tests assume
// it, so it is the one formula deliberately chosen over the more common
// sample-stdev convention.
func populationStdev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	avg := mean(returns)
	stdev := populationStdev(returns, avg)
	if stdev == 0 {
		return 0
	}
	return (avg / stdev) * math.Sqrt(tradingDaysPerYear)
}

func sortinoRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	avg := mean(returns)

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}

	downsideDev := populationStdev(downside, 0)
	if downsideDev == 0 {
		return 0
	}
	return (avg / downsideDev) * math.Sqrt(tradingDaysPerYear)
}

func calmarRatio(totalReturn decimal.Decimal, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	ret, _ := totalReturn.Float64()
	return ret / maxDrawdown
}
