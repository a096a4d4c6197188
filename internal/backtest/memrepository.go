package backtest

import "sort"

// MemoryRepository is an in-process PriceRepository backed by a plain
// slice per symbol. It is used by tests and by callers that pre-load bars
// without a database; it performs the same sort-and-dedupe the Postgres
// repository performs, so both satisfy C2's contract identically.
type MemoryRepository struct {
	bars map[string][]Bar
}

// NewMemoryRepository builds an empty repository. Use Put to load bars.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bars: make(map[string][]Bar)}
}

// Put appends bars for symbol and re-sorts/deduplicates on (symbol, date),
// keeping the last write for any duplicated date.
func (r *MemoryRepository) Put(symbol string, bars ...Bar) {
	existing := append(r.bars[symbol], bars...)
	r.bars[symbol] = DedupeSortBars(existing)
}

// LoadAllBars implements PriceRepository.
func (r *MemoryRepository) LoadAllBars(symbol string) ([]Bar, error) {
	bars, ok := r.bars[symbol]
	if !ok {
		return nil, nil
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// DedupeSortBars sorts bars by date ascending and, for duplicate dates,
// keeps the last occurrence in the input order (last-writer-wins, per the
// repository contract). Every PriceRepository implementation — in-memory or
// Postgres-backed — runs its scan result through this before returning it,
// since nothing upstream of C2 can assume the storage layer enforces the
// (symbol, date) uniqueness itself.
func DedupeSortBars(bars []Bar) []Bar {
	byDate := make(map[int64]Bar, len(bars))
	order := make([]int64, 0, len(bars))
	for _, b := range bars {
		key := b.Date.Unix()
		if _, seen := byDate[key]; !seen {
			order = append(order, key)
		}
		byDate[key] = b
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]Bar, len(order))
	for i, key := range order {
		out[i] = byDate[key]
	}
	return out
}
