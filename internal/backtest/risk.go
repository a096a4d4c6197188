package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// rejectionError wraps a RejectReason so it can flow through normal Go
// error returns and still be recovered with errors.As at the point that
// needs to record it as a non-fatal RejectedOrder rather than abort the
// run.
type rejectionError struct {
	reason RejectReason
}

func (e *rejectionError) Error() string { return string(e.reason) }

func errRejected(reason RejectReason) error {
	return &rejectionError{reason: reason}
}

// rejectionReason extracts the RejectReason from err, if it wraps one.
func rejectionReason(err error) (RejectReason, bool) {
	var re *rejectionError
	if errors.As(err, &re) {
		return re.reason, true
	}
	return "", false
}

// RiskEvaluator validates orders before execution and evaluates stop-loss
// triggers against open positions. It never mutates state — the execution
// engine (C6) applies the consequences of its decisions.
type RiskEvaluator struct {
	accounts  *AccountStore
	positions *PositionStore
}

// NewRiskEvaluator binds an evaluator to the run's account and position
// stores.
func NewRiskEvaluator(accounts *AccountStore, positions *PositionStore) *RiskEvaluator {
	return &RiskEvaluator{accounts: accounts, positions: positions}
}

// Validate checks an order against the account, any existing position, and
// a quoted execution price plus commission (a Buy needs cash for
// price*quantity + commission), returning a rejectionError if it should
// not proceed.
func (r *RiskEvaluator) Validate(order Order, executionPrice, commission decimal.Decimal) error {
	if order.Quantity <= 0 {
		return errRejected(RejectNonPositiveQuantity)
	}

	account, err := r.accounts.Get(order.AccountID)
	if err != nil {
		return err
	}
	if !account.IsActive {
		return errRejected(RejectAccountInactive)
	}

	switch order.Side {
	case SideBuy:
		if _, open := r.positions.FindOpen(order.AccountID, order.Symbol); open {
			return errRejected(RejectDuplicateOpenPosition)
		}
		cost := executionPrice.Mul(decimal.NewFromInt(order.Quantity)).Add(commission)
		if account.CurrentCash.LessThan(cost) {
			return errRejected(RejectInsufficientFunds)
		}
	case SideSell:
		if _, open := r.positions.FindOpen(order.AccountID, order.Symbol); !open {
			return errRejected(RejectNoPositionToClose)
		}
	default:
		return fmt.Errorf("%w: unknown order side %q", ErrInvariantBreach, order.Side)
	}

	return nil
}

// StopTrigger describes why a stop-loss fired.
type StopTrigger string

const (
	StopNone       StopTrigger = ""
	StopPriceStop  StopTrigger = "PriceStop"
	StopTimeStop   StopTrigger = "TimeStop"
)

// EvaluateStopLoss checks position against currentBar and currentDate,
// using only the bar's close — the engine operates on daily close, never
// intraday high/low. When both a price and a time stop would fire on the
// same day, PriceStop takes priority.
func (r *RiskEvaluator) EvaluateStopLoss(position Position, currentBar Bar, currentDate time.Time) StopTrigger {
	priceHit := position.StopLossPrice != nil && currentBar.Close.LessThanOrEqual(*position.StopLossPrice)
	if priceHit {
		return StopPriceStop
	}

	if position.StopLossDays != nil {
		daysHeld := int(civilDate(currentDate).Sub(position.EntryDate).Hours() / 24)
		if daysHeld >= *position.StopLossDays {
			return StopTimeStop
		}
	}

	return StopNone
}
