package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/pi5trading/backtestengine/internal/backtest"
	"github.com/pi5trading/backtestengine/internal/config"
	"github.com/pi5trading/backtestengine/internal/data/postgres"
	"github.com/pi5trading/backtestengine/internal/strategy"
)

func main() {
	symbol := flag.String("symbol", "SPY", "Symbol to backtest")
	shortPeriod := flag.Int("short", 50, "Short moving-average period")
	longPeriod := flag.Int("long", 200, "Long moving-average period")
	positionSize := flag.Int64("size", 100, "Shares per position")
	startDate := flag.String("start", "", "Start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "End date (YYYY-MM-DD)")
	capital := flag.Float64("capital", 100000, "Initial capital")
	outputDir := flag.String("output", "", "Output directory for reports (defaults to config value)")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	logger := log.With().Str("component", "backtest").Logger()

	logger.Info().Msg("starting backtest engine")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	var start, end time.Time
	if *startDate != "" {
		start, err = time.Parse("2006-01-02", *startDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid start date format (use YYYY-MM-DD)")
		}
	} else {
		start = time.Now().AddDate(0, 0, -365)
	}

	if *endDate != "" {
		end, err = time.Parse("2006-01-02", *endDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid end date format (use YYYY-MM-DD)")
		}
	} else {
		end = time.Now().AddDate(0, 0, -1)
	}

	effectiveCapital := *capital
	if effectiveCapital <= 0 {
		effectiveCapital = cfg.Backtest.InitialCapital
	}

	effectiveOutput := *outputDir
	if effectiveOutput == "" {
		effectiveOutput = cfg.Backtest.OutputDir
	}

	backtestCfg := backtest.Config{
		AccountID:      1,
		InitialCapital: decimal.NewFromFloat(effectiveCapital),
		StartDate:      start,
		EndDate:        end,
		Symbols:        []string{*symbol},
		Strategy: backtest.StrategyDescriptor{
			Type: "ma_crossover",
			Params: map[string]interface{}{
				"short_period":  *shortPeriod,
				"long_period":   *longPeriod,
				"position_size": *positionSize,
			},
		},
		Commission: backtest.FlatCommission(decimal.NewFromFloat(cfg.Backtest.CommissionFlat)),
	}

	logger.Info().
		Str("symbol", *symbol).
		Time("start_date", backtestCfg.StartDate).
		Time("end_date", backtestCfg.EndDate).
		Str("capital", backtestCfg.InitialCapital.String()).
		Msg("backtest configuration")

	ctx := context.Background()

	repo, err := postgres.New(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to price database")
	}
	defer repo.Close()

	strat, err := strategy.NewMovingAverageCrossover(backtestCfg.Symbols, *shortPeriod, *longPeriod, *positionSize, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build strategy")
	}

	driver := backtest.NewDriver(backtestCfg, repo, strat, logger)
	result := driver.Run(ctx)

	reportGen := backtest.NewReportGenerator(result)
	fmt.Println(reportGen.GenerateConsoleReport())

	if err := reportGen.SaveToFile(effectiveOutput); err != nil {
		logger.Error().Err(err).Msg("failed to save report")
	} else {
		logger.Info().Str("directory", effectiveOutput).Msg("detailed report saved")
	}

	logger.Info().
		Str("status", string(result.Status)).
		Str("total_return", result.TotalReturn.String()).
		Float64("sharpe", result.SharpeRatio).
		Float64("max_drawdown", result.MaxDrawdown).
		Int("trades", result.TotalTrades).
		Float64("win_rate", result.WinRate).
		Msg("backtest run finished")

	if result.Status == backtest.RunAborted {
		os.Exit(1)
	}
}
