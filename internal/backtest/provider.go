package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PriceRepository is the sole contract the temporal provider consumes.
// Implementations own persistence; they perform no temporal gating — that
// is the provider's exclusive responsibility.
type PriceRepository interface {
	// LoadAllBars returns every bar for symbol, sorted by date ascending,
	// deduplicated on (symbol, date) using the last write.
	LoadAllBars(symbol string) ([]Bar, error)
}

// Provider is the temporal gate over a PriceRepository: the correctness
// heart of the engine. It owns a monotonically non-decreasing simulation
// clock and never returns a bar dated after that clock.
type Provider struct {
	repo  PriceRepository
	clock time.Time

	cache map[string][]Bar // per-symbol bars, sorted ascending, loaded lazily
}

// NewProvider binds a fresh Provider to repo with the clock at startTime.
func NewProvider(repo PriceRepository, startTime time.Time) *Provider {
	return &Provider{
		repo:  repo,
		clock: civilDate(startTime),
		cache: make(map[string][]Bar),
	}
}

// CurrentTime returns the simulation clock's current date.
func (p *Provider) CurrentTime() time.Time {
	return p.clock
}

// AdvanceTime moves the simulation clock forward to t. It fails with a
// ClockRegression fault if t precedes the current clock.
func (p *Provider) AdvanceTime(t time.Time) error {
	t = civilDate(t)
	if t.Before(p.clock) {
		return newFault(FaultClockRegression, fmt.Errorf("requested %s, current %s", t.Format(dateLayout), p.clock.Format(dateLayout)), "")
	}
	p.clock = t
	return nil
}

// IsSymbolAvailable reports whether the repository has any bar for symbol
// at or before asOf (and no later than the current clock).
func (p *Provider) IsSymbolAvailable(symbol string, asOf time.Time) bool {
	_, err := p.GetBar(symbol, asOf)
	return err == nil
}

// GetBar returns the most recent bar at date <= asOf. It fails with
// FutureDataAccess if asOf exceeds the current clock, and with
// DataNotFound if no bar exists at or before asOf, or the symbol is
// unknown to the repository.
func (p *Provider) GetBar(symbol string, asOf time.Time) (Bar, error) {
	asOf = civilDate(asOf)
	if asOf.After(p.clock) {
		return Bar{}, newFault(FaultFutureDataAccess, fmt.Errorf("requested %s, clock at %s", asOf.Format(dateLayout), p.clock.Format(dateLayout)), symbol)
	}

	bars, err := p.barsFor(symbol)
	if err != nil {
		var ef *engineFault
		if errors.As(err, &ef) && ef.kind == FaultUnknownSymbol {
			return Bar{}, newFault(FaultDataNotFound, fmt.Errorf("no bar at or before %s", asOf.Format(dateLayout)), symbol)
		}
		return Bar{}, err
	}

	// bars is sorted ascending; find the last bar with date <= asOf.
	idx := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(asOf) })
	if idx == 0 {
		return Bar{}, newFault(FaultDataNotFound, fmt.Errorf("no bar at or before %s", asOf.Format(dateLayout)), symbol)
	}
	return bars[idx-1], nil
}

// GetHistoricalBars returns bars with from <= date <= min(to, currentTime)
// in ascending date order. A to beyond the current clock is silently
// clamped — this is not an error, strategies routinely request a forward
// window. A from beyond the current clock yields an empty result.
func (p *Provider) GetHistoricalBars(symbol string, from, to time.Time) ([]Bar, error) {
	from, to = civilDate(from), civilDate(to)
	if to.After(p.clock) {
		to = p.clock
	}
	if from.After(p.clock) {
		return nil, nil
	}

	bars, err := p.barsFor(symbol)
	if err != nil {
		return nil, err
	}

	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Date.Before(from) })
	hi := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(to) })
	if lo >= hi {
		return nil, nil
	}

	out := make([]Bar, hi-lo)
	copy(out, bars[lo:hi])
	return out, nil
}

// Preload warms the per-symbol bar cache for every symbol concurrently, one
// goroutine per symbol, so a run's day loop never blocks on repository I/O
// after start. An unknown or empty symbol fails the whole preload — a run
// should abort at startup rather than mid-loop on a bad symbol list.
func (p *Provider) Preload(ctx context.Context, symbols []string) error {
	g, _ := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			bars, err := p.repo.LoadAllBars(symbol)
			if err != nil {
				return fmt.Errorf("preloading bars for %s: %w", symbol, err)
			}
			if len(bars) == 0 {
				return newFault(FaultUnknownSymbol, fmt.Errorf("no bars for symbol"), symbol)
			}

			mu.Lock()
			p.cache[symbol] = bars
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// barsFor returns a symbol's full bar history, populating the cache on
// first access. The cache holds the repository's complete history for the
// symbol; every read above filters by the current clock so invariant 1
// (no future bar is ever returned) holds regardless of when the symbol
// was first queried.
func (p *Provider) barsFor(symbol string) ([]Bar, error) {
	if bars, ok := p.cache[symbol]; ok {
		return bars, nil
	}

	bars, err := p.repo.LoadAllBars(symbol)
	if err != nil {
		return nil, fmt.Errorf("loading bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, newFault(FaultUnknownSymbol, fmt.Errorf("no bars for symbol"), symbol)
	}

	p.cache[symbol] = bars
	return bars, nil
}

const dateLayout = "2006-01-02"

// civilDate truncates t to a UTC calendar date, discarding any wall-clock
// component. No computation inside the core compares times at finer than
// day resolution.
func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
