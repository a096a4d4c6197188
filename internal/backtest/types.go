package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies which direction an order or trade moves a position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionStatus is the lifecycle state of a Position. It is monotonic:
// Open never transitions back from Closed.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// RunStatus describes how a backtest run terminated.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunCanceled  RunStatus = "canceled"
)

// Bar is one daily OHLCV+indicator record for a symbol. Bars are immutable
// and owned by the repository; the core never mutates one after it loads.
type Bar struct {
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	AdjustedClose decimal.Decimal `json:"adjustedClose"`
	Volume        int64           `json:"volume"`

	// Optional indicators. A nil pointer means "unknown", not zero.
	MACD          *decimal.Decimal `json:"macd,omitempty"`
	MACDSignal    *decimal.Decimal `json:"macdSignal,omitempty"`
	MACDHistogram *decimal.Decimal `json:"macdHistogram,omitempty"`
	SMA50         *decimal.Decimal `json:"sma50,omitempty"`
	SMA200        *decimal.Decimal `json:"sma200,omitempty"`
	VolMA20       *decimal.Decimal `json:"volMA20,omitempty"`
	RSI14         *decimal.Decimal `json:"rsi14,omitempty"`
}

// Account is the in-simulation cash ledger for one backtest run.
type Account struct {
	ID             int64
	Name           string
	InitialCapital decimal.Decimal
	CurrentCash    decimal.Decimal
	CreatedDate    time.Time
	IsActive       bool
}

// Position is an entry into a symbol, open or closed, for one account.
type Position struct {
	ID            int64
	AccountID     int64
	Symbol        string
	EntryDate     time.Time
	EntryPrice    decimal.Decimal
	Quantity      int64
	StopLossPrice *decimal.Decimal
	StopLossDays  *int
	Status        PositionStatus

	ExitDate   *time.Time
	ExitPrice  *decimal.Decimal
	RealizedPL *decimal.Decimal
	ExitReason string
}

// StopLoss describes an optional exit condition attached to an entry order.
type StopLoss struct {
	Price *decimal.Decimal
	Days  *int
}

// Order is a transient request to buy or sell. It is never persisted once
// executed — its effect is a Position mutation plus a Trade record.
type Order struct {
	AccountID   int64
	Symbol      string
	Side        Side
	Quantity    int64
	StopLoss    *StopLoss
	CloseReason string // set by the driver for stop-loss exits; empty for strategy orders, which the executor closes with reason "user"
}

// Signal is what a Strategy emits for one symbol on one day.
type Signal struct {
	Symbol   string
	Side     Side
	Quantity int64
	StopLoss *StopLoss
	Reason   string
}

// Trade is an append-only record of one fill. Trades never mutate after
// creation.
type Trade struct {
	Date           time.Time       `json:"date"`
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Quantity       int64           `json:"quantity"`
	ExecutionPrice decimal.Decimal `json:"price"`
	Commission     decimal.Decimal `json:"commission"`
	PositionID     int64           `json:"positionId"`
	ExitReason     string          `json:"exitReason,omitempty"`
}

// DailySnapshot is an append-only equity record, exactly one per simulated
// day processed.
type DailySnapshot struct {
	Date              time.Time       `json:"date"`
	Cash              decimal.Decimal `json:"cash"`
	PositionsValue    decimal.Decimal `json:"positionsValue"`
	TotalEquity       decimal.Decimal `json:"totalEquity"`
	OpenPositionCount int             `json:"openPositions"`
}

// RejectedOrder is a non-fatal record of an order the risk evaluator or
// execution engine refused. It never mutates state.
type RejectedOrder struct {
	Date   time.Time
	Symbol string
	Side   Side
	Reason RejectReason
}

// StrategyDescriptor names a strategy and its parameters, as received from
// the (out-of-scope) HTTP surface.
type StrategyDescriptor struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// CommissionModel prices the cost of one fill.
type CommissionModel func(quantity int64, executionPrice decimal.Decimal) decimal.Decimal

// FlatCommission returns a CommissionModel charging a fixed fee per order,
// the default model described in the execution contract.
func FlatCommission(fee decimal.Decimal) CommissionModel {
	return func(_ int64, _ decimal.Decimal) decimal.Decimal {
		return fee
	}
}

// Config is the input to one backtest run.
type Config struct {
	AccountID      int64
	InitialCapital decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	Symbols        []string
	Strategy       StrategyDescriptor
	Commission     CommissionModel
}

// Validate checks a Config for the preconditions the driver assumes.
func (c *Config) Validate() error {
	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidCapital
	}
	if c.StartDate.After(c.EndDate) {
		return ErrInvalidDateRange
	}
	for _, s := range c.Symbols {
		if s == "" {
			return ErrInvalidSymbol
		}
	}
	return nil
}

// Fault describes why a run aborted.
type Fault struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	Symbol string `json:"symbol,omitempty"`
	AsOf   string `json:"asOf,omitempty"`
}

// Result is the output record of one backtest run. Given an identical
// Config and identical repository contents, two runs produce identical
// values in every field except RunID: RunID is a fresh random UUID for
// each run, so it differs between otherwise identical runs.
type Result struct {
	RunID  string `json:"runId"`
	Config Config `json:"-"`

	Status RunStatus `json:"status"`
	Fault  *Fault    `json:"fault,omitempty"`

	InitialCapital decimal.Decimal `json:"initialCapital"`
	FinalEquity    decimal.Decimal `json:"finalEquity"`
	TotalReturn    decimal.Decimal `json:"totalReturn"`

	MaxDrawdown  float64 `json:"maxDrawdown"`
	SharpeRatio  float64 `json:"sharpeRatio"`
	SortinoRatio float64 `json:"sortinoRatio"`
	CalmarRatio  float64 `json:"calmarRatio"`

	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`
	ProfitFactor  float64 `json:"profitFactor"`

	Trades         []Trade         `json:"trades"`
	DailySnapshots []DailySnapshot `json:"dailySnapshots"`
	RejectedOrders []RejectedOrder `json:"-"`
}
