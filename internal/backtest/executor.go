package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderResult is what C6 returns: either a successful fill or a non-fatal
// rejection. Engine faults (future-data access, invariant breaches) are
// not represented here — they propagate as Go errors and abort the run.
type OrderResult struct {
	Success        bool
	Rejected       RejectReason
	ExecutionPrice decimal.Decimal
	Commission     decimal.Decimal
	PositionID     int64
}

// Executor turns a validated, priced, funded Order into a Position
// mutation and a Trade record. It is the sole place cash and positions
// change during a run.
type Executor struct {
	accounts   *AccountStore
	positions  *PositionStore
	risk       *RiskEvaluator
	commission CommissionModel
}

// NewExecutor wires an Executor to the run's stores, risk evaluator, and
// commission model.
func NewExecutor(accounts *AccountStore, positions *PositionStore, risk *RiskEvaluator, commission CommissionModel) *Executor {
	if commission == nil {
		commission = FlatCommission(decimal.NewFromInt(5))
	}
	return &Executor{accounts: accounts, positions: positions, risk: risk, commission: commission}
}

// Execute prices order against provider at currentDate, validates it, and
// on success mutates the account/position stores and returns a fill. A
// provider fault (future-data access, data-not-found, unknown symbol)
// propagates as an error and must abort the run; a risk rejection comes
// back as OrderResult{Success: false} with no state change.
func (e *Executor) Execute(order Order, provider *Provider, currentDate time.Time) (OrderResult, error) {
	account, err := e.accounts.Get(order.AccountID)
	if err != nil {
		return OrderResult{}, err
	}

	bar, err := provider.GetBar(order.Symbol, currentDate)
	if err != nil {
		return OrderResult{}, err
	}
	executionPrice := bar.Close
	commission := e.commission(order.Quantity, executionPrice)

	if err := e.risk.Validate(order, executionPrice, commission); err != nil {
		if reason, ok := rejectionReason(err); ok {
			return OrderResult{Success: false, Rejected: reason}, nil
		}
		return OrderResult{}, err
	}

	switch order.Side {
	case SideBuy:
		cost := executionPrice.Mul(decimal.NewFromInt(order.Quantity)).Add(commission)
		ok, err := e.accounts.ReserveFunds(account.ID, cost)
		if err != nil {
			return OrderResult{}, err
		}
		if !ok {
			// Validate already checked funds against the same cost, so
			// this should be unreachable under conformant inputs.
			return OrderResult{Success: false, Rejected: RejectInsufficientFunds}, nil
		}

		pos, err := e.positions.Open(order.AccountID, order.Symbol, executionPrice, order.Quantity, currentDate, order.StopLoss)
		if err != nil {
			if reason, ok := rejectionReason(err); ok {
				_ = e.accounts.ReleaseFunds(account.ID, cost)
				return OrderResult{Success: false, Rejected: reason}, nil
			}
			return OrderResult{}, err
		}

		return OrderResult{Success: true, ExecutionPrice: executionPrice, Commission: commission, PositionID: pos.ID}, nil

	case SideSell:
		existing, open := e.positions.FindOpen(order.AccountID, order.Symbol)
		if !open {
			return OrderResult{Success: false, Rejected: RejectNoPositionToClose}, nil
		}

		reason := order.CloseReason
		if reason == "" {
			reason = "user"
		}
		closed, err := e.positions.Close(existing.ID, executionPrice, currentDate, reason)
		if err != nil {
			return OrderResult{}, err
		}

		proceeds := executionPrice.Mul(decimal.NewFromInt(closed.Quantity)).Sub(commission)
		if err := e.accounts.ApplyTrade(account.ID, proceeds); err != nil {
			return OrderResult{}, err
		}

		return OrderResult{Success: true, ExecutionPrice: executionPrice, Commission: commission, PositionID: closed.ID}, nil

	default:
		return OrderResult{}, fmt.Errorf("%w: unknown order side %q", ErrInvariantBreach, order.Side)
	}
}
