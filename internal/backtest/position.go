package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionStore tracks every Position (open and closed) opened during one
// backtest run, keyed by an arena-style integer id rather than in-object
// references, so serialization and lookup never have to navigate a
// pointer graph.
type PositionStore struct {
	nextID    int64
	positions map[int64]*Position
	openBySym map[string]int64 // (accountID, symbol) -> positionID, for the at-most-one-open invariant
}

// NewPositionStore creates an empty store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		positions: make(map[int64]*Position),
		openBySym: make(map[string]int64),
	}
}

func openKey(accountID int64, symbol string) string {
	return fmt.Sprintf("%d:%s", accountID, symbol)
}

// Open creates an Open position. It fails with PositionAlreadyOpen if an
// Open position already exists for (accountId, symbol).
func (s *PositionStore) Open(accountID int64, symbol string, price decimal.Decimal, qty int64, date time.Time, stop *StopLoss) (Position, error) {
	key := openKey(accountID, symbol)
	if _, exists := s.openBySym[key]; exists {
		return Position{}, fmt.Errorf("position already open: %w", errRejected(RejectDuplicateOpenPosition))
	}

	s.nextID++
	pos := &Position{
		ID:         s.nextID,
		AccountID:  accountID,
		Symbol:     symbol,
		EntryDate:  civilDate(date),
		EntryPrice: price,
		Quantity:   qty,
		Status:     PositionOpen,
	}
	if stop != nil {
		pos.StopLossPrice = stop.Price
		pos.StopLossDays = stop.Days
	}

	s.positions[pos.ID] = pos
	s.openBySym[key] = pos.ID
	return *pos, nil
}

// Close transitions positionId to Closed, computing realizedPL exactly
// once: (exitPrice - entryPrice) * quantity.
func (s *PositionStore) Close(positionID int64, exitPrice decimal.Decimal, date time.Time, reason string) (Position, error) {
	pos, ok := s.positions[positionID]
	if !ok {
		return Position{}, fmt.Errorf("%w: unknown position %d", ErrInvariantBreach, positionID)
	}
	if pos.Status != PositionOpen {
		return Position{}, fmt.Errorf("%w: position %d already closed", ErrInvariantBreach, positionID)
	}

	exitDate := civilDate(date)
	pl := exitPrice.Sub(pos.EntryPrice).Mul(decimal.NewFromInt(pos.Quantity))

	pos.Status = PositionClosed
	pos.ExitDate = &exitDate
	pos.ExitPrice = &exitPrice
	pos.RealizedPL = &pl
	pos.ExitReason = reason

	delete(s.openBySym, openKey(pos.AccountID, pos.Symbol))
	return *pos, nil
}

// GetOpen returns every Open position held by accountID.
func (s *PositionStore) GetOpen(accountID int64) []Position {
	var out []Position
	for _, id := range sortedIDs(s.openBySym) {
		pos := s.positions[id]
		if pos.AccountID == accountID && pos.Status == PositionOpen {
			out = append(out, *pos)
		}
	}
	return out
}

// FindOpen returns the Open position for (accountId, symbol), if any.
func (s *PositionStore) FindOpen(accountID int64, symbol string) (*Position, bool) {
	id, ok := s.openBySym[openKey(accountID, symbol)]
	if !ok {
		return nil, false
	}
	pos := *s.positions[id]
	return &pos, true
}

// All returns every position (open and closed) recorded during the run.
func (s *PositionStore) All() []Position {
	out := make([]Position, 0, len(s.positions))
	for _, id := range allIDsSorted(s.positions) {
		out = append(out, *s.positions[id])
	}
	return out
}

func sortedIDs(m map[string]int64) []int64 {
	ids := make([]int64, 0, len(m))
	for _, id := range m {
		ids = append(ids, id)
	}
	sortInt64s(ids)
	return ids
}

func allIDsSorted(m map[int64]*Position) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sortInt64s(ids)
	return ids
}

func sortInt64s(ids []int64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
