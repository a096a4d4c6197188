// Package postgres implements backtest.PriceRepository against a
// TimescaleDB-backed daily_bars hypertable, following the same
// pgxpool-driven connection pattern as the live-trading TimescaleDB
// client this engine is descended from.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pi5trading/backtestengine/internal/backtest"
	"github.com/pi5trading/backtestengine/internal/circuitbreaker"
	"github.com/pi5trading/backtestengine/internal/config"
)

// Repository implements backtest.PriceRepository against Postgres.
type Repository struct {
	pool    *pgxpool.Pool
	logger  zerolog.Logger
	breaker *circuitbreaker.Breaker
}

// New creates a connection pool to the database described by cfg and
// verifies it with a ping before returning.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger zerolog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLife

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Int("max_conns", cfg.MaxConns).
		Msg("connecting to price database")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{
		pool:    pool,
		logger:  logger.With().Str("component", "postgres_repository").Logger(),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("price_repository", logger)),
	}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// LoadAllBars implements backtest.PriceRepository. It returns every row for
// symbol ordered by date ascending, then runs the scan through the same
// last-writer-wins (symbol, date) dedupe every repository implementation
// applies — the schema and its upsert constraint are out of this engine's
// scope, so a duplicate date from a bad backfill or a write path that
// bypasses InsertBars must not silently double a bar here.
func (r *Repository) LoadAllBars(symbol string) ([]backtest.Bar, error) {
	ctx := context.Background()

	query := `
		SELECT symbol, date, open, high, low, close, adjusted_close, volume,
		       macd, macd_signal, macd_histogram, sma_50, sma_200, vol_ma_20, rsi_14
		FROM daily_bars
		WHERE symbol = $1
		ORDER BY date ASC
	`

	var bars []backtest.Bar
	err := r.breaker.Execute(func() error {
		rows, err := r.pool.Query(ctx, query, symbol)
		if err != nil {
			return fmt.Errorf("failed to query daily bars: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var b backtest.Bar
			var open, high, low, close, adjClose string
			var macd, macdSignal, macdHist, sma50, sma200, volMA20, rsi14 *string

			if err := rows.Scan(
				&b.Symbol, &b.Date,
				&open, &high, &low, &close, &adjClose, &b.Volume,
				&macd, &macdSignal, &macdHist, &sma50, &sma200, &volMA20, &rsi14,
			); err != nil {
				return fmt.Errorf("failed to scan daily bar: %w", err)
			}

			b.Open, err = decimal.NewFromString(open)
			if err != nil {
				return fmt.Errorf("parsing open for %s: %w", symbol, err)
			}
			b.High, err = decimal.NewFromString(high)
			if err != nil {
				return fmt.Errorf("parsing high for %s: %w", symbol, err)
			}
			b.Low, err = decimal.NewFromString(low)
			if err != nil {
				return fmt.Errorf("parsing low for %s: %w", symbol, err)
			}
			b.Close, err = decimal.NewFromString(close)
			if err != nil {
				return fmt.Errorf("parsing close for %s: %w", symbol, err)
			}
			b.AdjustedClose, err = decimal.NewFromString(adjClose)
			if err != nil {
				return fmt.Errorf("parsing adjusted close for %s: %w", symbol, err)
			}

			b.MACD, err = optionalDecimal(macd)
			if err != nil {
				return err
			}
			b.MACDSignal, err = optionalDecimal(macdSignal)
			if err != nil {
				return err
			}
			b.MACDHistogram, err = optionalDecimal(macdHist)
			if err != nil {
				return err
			}
			b.SMA50, err = optionalDecimal(sma50)
			if err != nil {
				return err
			}
			b.SMA200, err = optionalDecimal(sma200)
			if err != nil {
				return err
			}
			b.VolMA20, err = optionalDecimal(volMA20)
			if err != nil {
				return err
			}
			b.RSI14, err = optionalDecimal(rsi14)
			if err != nil {
				return err
			}

			bars = append(bars, b)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	bars = backtest.DedupeSortBars(bars)

	r.logger.Debug().Str("symbol", symbol).Int("count", len(bars)).Msg("loaded daily bars")
	return bars, nil
}

func optionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parsing decimal value %q: %w", *s, err)
	}
	return &d, nil
}

// InsertBars upserts bars, keyed on each bar's (symbol, date); the last
// write for any given date wins, matching the repository's dedupe
// contract.
func (r *Repository) InsertBars(ctx context.Context, bars []backtest.Bar) error {
	query := `
		INSERT INTO daily_bars (symbol, date, open, high, low, close, adjusted_close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, date) DO UPDATE
		SET open = EXCLUDED.open,
		    high = EXCLUDED.high,
		    low = EXCLUDED.low,
		    close = EXCLUDED.close,
		    adjusted_close = EXCLUDED.adjusted_close,
		    volume = EXCLUDED.volume
	`

	return r.breaker.Execute(func() error {
		batch := &pgx.Batch{}
		for _, b := range bars {
			batch.Queue(query, b.Symbol, b.Date, b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.AdjustedClose.String(), b.Volume)
		}

		results := r.pool.SendBatch(ctx, batch)
		defer results.Close()

		for range bars {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to upsert daily bar: %w", err)
			}
		}
		return nil
	})
}
