// Package circuitbreaker wraps the repository's database calls with a
// gobreaker state machine, so a struggling Postgres instance fails fast
// instead of queuing up a backlog of timed-out queries across a run.
package circuitbreaker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

var (
	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "backtestengine",
		Subsystem: "circuitbreaker",
		Name:      "state",
		Help:      "Current breaker state: 0=closed, 1=half-open, 2=open.",
	}, []string{"breaker"})

	tripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backtestengine",
		Subsystem: "circuitbreaker",
		Name:      "trips_total",
		Help:      "Number of times a breaker has transitioned into the open state.",
	}, []string{"breaker"})
)

// Config holds the breaker's tuning knobs.
type Config struct {
	Name string

	// MaxFailures is the number of consecutive failures that trips the
	// breaker from closed to open.
	MaxFailures uint32

	// Timeout is how long the breaker stays open before allowing a
	// half-open probe.
	Timeout time.Duration

	// MaxRequests bounds how many probe requests are allowed through
	// while half-open.
	MaxRequests uint32

	Logger zerolog.Logger
}

// DefaultConfig returns the breaker's default tuning for a repository
// guarding a single Postgres instance.
func DefaultConfig(name string, logger zerolog.Logger) Config {
	return Config{
		Name:        name,
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 3,
		Logger:      logger,
	}
}

// Breaker wraps a gobreaker.CircuitBreaker, exporting its state transitions
// as Prometheus gauges/counters in addition to gobreaker's own bookkeeping.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// New builds a Breaker from config.
func New(config Config) *Breaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 3
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    0, // never reset failure counts while closed
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			stateGauge.WithLabelValues(name).Set(float64(to))
			if to == gobreaker.StateOpen {
				tripsTotal.WithLabelValues(name).Inc()
			}
			config.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), name: config.Name}
}

// Execute runs fn through the breaker. A fast-fail while open surfaces as
// gobreaker.ErrOpenState; a half-open request-limit surfaces as
// gobreaker.ErrTooManyRequests.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State reports the breaker's current gobreaker.State.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Counts returns the breaker's current request/failure counters.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
