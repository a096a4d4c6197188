package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Strategy is the pluggable signal-generator contract. A strategy sees
// only the temporal provider — it has no direct access to the repository,
// account, or positions — and is stateless across days from the driver's
// perspective (it may keep its own internal cache keyed by currentDate).
type Strategy interface {
	GenerateSignals(provider *Provider, currentDate time.Time) ([]Signal, error)
}

// Driver owns the simulation clock for one backtest run and orchestrates
// the temporal provider, risk evaluator, executor, and strategy day by
// day. Each run constructs a fresh Driver — there is no process-wide
// mutable state, and nothing here is shared across runs.
type Driver struct {
	runID     string
	config    Config
	repo      PriceRepository
	strategy  Strategy
	logger    zerolog.Logger

	provider  *Provider
	accounts  *AccountStore
	positions *PositionStore
	risk      *RiskEvaluator
	executor  *Executor

	trades    []Trade
	snapshots []DailySnapshot
	rejected  []RejectedOrder
}

// NewDriver constructs a Driver with a fresh, run-scoped Account/Position
// store set and provider, isolated from any other run sharing the same
// (read-only) repository.
func NewDriver(config Config, repo PriceRepository, strategy Strategy, logger zerolog.Logger) *Driver {
	accounts := NewAccountStore(config.AccountID, config.InitialCapital, config.StartDate)
	positions := NewPositionStore()
	risk := NewRiskEvaluator(accounts, positions)
	commission := config.Commission
	if commission == nil {
		commission = FlatCommission(decimal.NewFromInt(5))
	}

	runID := uuid.New().String()

	return &Driver{
		runID:     runID,
		config:    config,
		repo:      repo,
		strategy:  strategy,
		logger:    logger.With().Str("component", "driver").Str("run_id", runID).Logger(),
		provider:  NewProvider(repo, config.StartDate),
		accounts:  accounts,
		positions: positions,
		risk:      risk,
		executor:  NewExecutor(accounts, positions, risk, commission),
	}
}

// Run replays config.StartDate through config.EndDate inclusive,
// advancing the clock one calendar day at a time. ctx is polled for
// cancellation at day boundaries only — there are no per-bar or per-order
// timeouts, matching the concurrency contract's suspension-point policy.
func (d *Driver) Run(ctx context.Context) *Result {
	if err := d.config.Validate(); err != nil {
		return d.abortedResult(newFault(FaultInvariantBreach, err, ""))
	}

	if err := d.provider.Preload(ctx, d.config.Symbols); err != nil {
		return d.abortedResult(err)
	}

	day := civilDate(d.config.StartDate)
	end := civilDate(d.config.EndDate)

	for !day.After(end) {
		select {
		case <-ctx.Done():
			return d.canceledResult()
		default:
		}

		if err := d.provider.AdvanceTime(day); err != nil {
			return d.abortedResult(err)
		}

		if err := d.processStopLosses(day); err != nil {
			return d.abortedResult(err)
		}

		if err := d.processSignals(day); err != nil {
			return d.abortedResult(err)
		}

		if err := d.recordSnapshot(day); err != nil {
			return d.abortedResult(err)
		}

		day = day.AddDate(0, 0, 1)
	}

	return d.completedResult()
}

// processStopLosses evaluates every Open position, ordered by position id
// ascending, before the strategy runs for the day. A trigger synthesizes a
// Sell order routed through the same executor path as any strategy signal.
func (d *Driver) processStopLosses(day time.Time) error {
	for _, pos := range d.positions.GetOpen(d.config.AccountID) {
		bar, err := d.provider.GetBar(pos.Symbol, day)
		if err != nil {
			return err
		}

		trigger := d.risk.EvaluateStopLoss(pos, bar, day)
		if trigger == StopNone {
			continue
		}

		order := Order{
			AccountID:   d.config.AccountID,
			Symbol:      pos.Symbol,
			Side:        SideSell,
			Quantity:    pos.Quantity,
			CloseReason: string(trigger),
		}
		if err := d.route(order, day); err != nil {
			return err
		}
	}
	return nil
}

// processSignals asks the strategy for today's signals and routes each,
// in emission order, through the executor.
func (d *Driver) processSignals(day time.Time) error {
	signals, err := d.strategy.GenerateSignals(d.provider, day)
	if err != nil {
		return err
	}

	for _, sig := range signals {
		order := Order{
			AccountID: d.config.AccountID,
			Symbol:    sig.Symbol,
			Side:      sig.Side,
			Quantity:  sig.Quantity,
			StopLoss:  sig.StopLoss,
		}
		if err := d.route(order, day); err != nil {
			return err
		}
	}
	return nil
}

// route executes one order and records its outcome: a Trade on success,
// a RejectedOrder (non-fatal, no state change) on rejection.
func (d *Driver) route(order Order, day time.Time) error {
	result, err := d.executor.Execute(order, d.provider, day)
	if err != nil {
		return err
	}

	if !result.Success {
		d.rejected = append(d.rejected, RejectedOrder{Date: day, Symbol: order.Symbol, Side: order.Side, Reason: result.Rejected})
		d.logger.Warn().Str("symbol", order.Symbol).Str("side", string(order.Side)).Str("reason", string(result.Rejected)).Msg("order rejected")
		return nil
	}

	d.trades = append(d.trades, Trade{
		Date:           day,
		Symbol:         order.Symbol,
		Side:           order.Side,
		Quantity:       order.Quantity,
		ExecutionPrice: result.ExecutionPrice,
		Commission:     result.Commission,
		PositionID:     result.PositionID,
		ExitReason:     order.CloseReason,
	})
	d.logger.Info().Str("symbol", order.Symbol).Str("side", string(order.Side)).Int64("position_id", result.PositionID).Msg("order filled")
	return nil
}

// recordSnapshot prices every Open position via the provider and appends
// one DailySnapshot. Days with no bar for a symbol still produce a valid
// snapshot — GetBar returns the last-known bar at or before day.
func (d *Driver) recordSnapshot(day time.Time) error {
	open := d.positions.GetOpen(d.config.AccountID)

	account, err := d.accounts.Get(d.config.AccountID)
	if err != nil {
		return err
	}

	positionsValue := decimal.Zero
	for _, pos := range open {
		bar, err := d.provider.GetBar(pos.Symbol, day)
		if err != nil {
			return err
		}
		positionsValue = positionsValue.Add(bar.Close.Mul(decimal.NewFromInt(pos.Quantity)))
	}

	d.snapshots = append(d.snapshots, DailySnapshot{
		Date:              day,
		Cash:              account.CurrentCash,
		PositionsValue:    positionsValue,
		TotalEquity:       account.CurrentCash.Add(positionsValue),
		OpenPositionCount: len(open),
	})
	return nil
}

func (d *Driver) completedResult() *Result {
	result := NewMetricsCalculator(d.trades, d.snapshots, d.config.InitialCapital).Calculate()
	result.RunID = d.runID
	result.Config = d.config
	result.Status = RunCompleted
	result.Trades = d.trades
	result.DailySnapshots = d.snapshots
	result.RejectedOrders = d.rejected
	return &result
}

func (d *Driver) canceledResult() *Result {
	result := NewMetricsCalculator(d.trades, d.snapshots, d.config.InitialCapital).Calculate()
	result.RunID = d.runID
	result.Config = d.config
	result.Status = RunCanceled
	result.Trades = d.trades
	result.DailySnapshots = d.snapshots
	result.RejectedOrders = d.rejected
	return &result
}

func (d *Driver) abortedResult(err error) *Result {
	d.logger.Error().Err(err).Msg("backtest aborted")
	result := NewMetricsCalculator(d.trades, d.snapshots, d.config.InitialCapital).Calculate()
	result.RunID = d.runID
	result.Config = d.config
	result.Status = RunAborted
	result.Fault = asFault(err)
	result.Trades = d.trades
	result.DailySnapshots = d.snapshots
	result.RejectedOrders = d.rejected
	return &result
}
