package backtest

import (
	"errors"
	"fmt"
)

// RejectReason enumerates why the risk evaluator or execution engine
// refused an order. Rejections are non-fatal: they record and skip rather
// than abort the run.
type RejectReason string

// An unknown symbol has no RejectReason: the executor resolves a bar via
// the provider before the risk evaluator ever sees the order, so an unknown
// symbol always surfaces as a DataNotFound engine fault, never a rejection.
const (
	RejectNonPositiveQuantity   RejectReason = "NonPositiveQuantity"
	RejectAccountInactive       RejectReason = "AccountInactive"
	RejectInsufficientFunds     RejectReason = "InsufficientFunds"
	RejectDuplicateOpenPosition RejectReason = "DuplicateOpenPosition"
	RejectNoPositionToClose     RejectReason = "NoPositionToClose"
)

var (
	// Configuration errors
	ErrInvalidCapital   = errors.New("initial capital must be positive")
	ErrInvalidDateRange = errors.New("start date must not be after end date")
	ErrInvalidSymbol    = errors.New("symbol cannot be empty")

	// Engine faults (C1/C2) — these abort the run, never recorded as
	// rejections.
	ErrClockRegression  = errors.New("clock regression: requested time precedes current simulation time")
	ErrFutureDataAccess = errors.New("future data access: requested date exceeds current simulation time")
	ErrDataNotFound     = errors.New("data not found: no bar at or before the requested date")
	ErrUnknownSymbol    = errors.New("unknown symbol: repository has no bars for this symbol")

	// Invariant breaches must never occur under conformant inputs; they
	// abort the run like any other engine fault.
	ErrInvariantBreach = errors.New("invariant breach")

	// ErrCanceled names a run stopped at a day boundary via its
	// cancellation signal. It is not a fault; the driver reports a
	// cancellation as a Result with status canceled and does not return
	// this error.
	ErrCanceled = errors.New("backtest canceled")
)

// FaultKind names the stable string used in a Result's Fault.Kind field.
type FaultKind string

const (
	FaultClockRegression  FaultKind = "ClockRegression"
	FaultFutureDataAccess FaultKind = "FutureDataAccess"
	FaultDataNotFound     FaultKind = "DataNotFound"
	FaultUnknownSymbol    FaultKind = "UnknownSymbol"
	FaultInvariantBreach  FaultKind = "InvariantBreach"
)

// engineFault wraps one of the FaultKind sentinels with the detail needed
// to populate a Result's Fault block. It implements error so it can
// propagate through normal Go error-handling paths up to the driver, which
// is the only place it is translated into an aborted Result.
type engineFault struct {
	kind   FaultKind
	err    error
	symbol string
	asOf   string
}

func (f *engineFault) Error() string {
	if f.symbol != "" {
		return fmt.Sprintf("%s: %s (symbol=%s)", f.kind, f.err, f.symbol)
	}
	return fmt.Sprintf("%s: %s", f.kind, f.err)
}

func (f *engineFault) Unwrap() error { return f.err }

func newFault(kind FaultKind, err error, symbol string) *engineFault {
	return &engineFault{kind: kind, err: err, symbol: symbol}
}

// asFault extracts the Fault descriptor from an engine error, if any.
func asFault(err error) *Fault {
	var ef *engineFault
	if errors.As(err, &ef) {
		return &Fault{Kind: string(ef.kind), Detail: ef.err.Error(), Symbol: ef.symbol}
	}
	return &Fault{Kind: string(FaultInvariantBreach), Detail: err.Error()}
}
