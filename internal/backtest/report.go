package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReportGenerator renders a Result the way an operator reads it: a console
// summary, a daily equity table, and a trade-by-trade log.
type ReportGenerator struct {
	result *Result
}

// NewReportGenerator binds a generator to one run's Result.
func NewReportGenerator(result *Result) *ReportGenerator {
	return &ReportGenerator{result: result}
}

// GenerateConsoleReport renders the summary view.
func (r *ReportGenerator) GenerateConsoleReport() string {
	var sb strings.Builder
	res := r.result

	sb.WriteString("\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("                           BACKTEST RESULTS                                     \n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Run ID: %s\n\n", res.RunID))

	if res.Status != RunCompleted {
		sb.WriteString(fmt.Sprintf("STATUS: %s\n", strings.ToUpper(string(res.Status))))
		if res.Fault != nil {
			sb.WriteString(fmt.Sprintf("Fault:  %s — %s\n", res.Fault.Kind, res.Fault.Detail))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("CONFIGURATION\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Account:          %d\n", res.Config.AccountID))
	sb.WriteString(fmt.Sprintf("Symbols:          %s\n", strings.Join(res.Config.Symbols, ", ")))
	sb.WriteString(fmt.Sprintf("Strategy:         %s\n", res.Config.Strategy.Type))
	sb.WriteString(fmt.Sprintf("Start Date:       %s\n", res.Config.StartDate.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("End Date:         %s\n", res.Config.EndDate.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Initial Capital:  $%s\n", res.InitialCapital.StringFixed(2)))
	sb.WriteString("\n")

	sb.WriteString("OVERALL PERFORMANCE\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Final Equity:     $%s\n", res.FinalEquity.StringFixed(2)))
	totalReturnPct, _ := res.TotalReturn.Mul(decimal.NewFromInt(100)).Float64()
	sb.WriteString(fmt.Sprintf("Total Return:     %.2f%%\n", totalReturnPct))
	sb.WriteString("\n")

	sb.WriteString("TRADE STATISTICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total Round-Trips: %d\n", res.TotalTrades))
	sb.WriteString(fmt.Sprintf("Winning:           %d (%.1f%%)\n", res.WinningTrades, res.WinRate*100))
	sb.WriteString(fmt.Sprintf("Losing:            %d\n", res.LosingTrades))
	sb.WriteString(fmt.Sprintf("Rejected Orders:   %d\n", len(res.RejectedOrders)))
	sb.WriteString("\n")

	sb.WriteString("RISK METRICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Max Drawdown:     %.2f%%\n", res.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:     %.2f\n", res.SharpeRatio))
	sb.WriteString(fmt.Sprintf("Sortino Ratio:    %.2f\n", res.SortinoRatio))
	sb.WriteString(fmt.Sprintf("Calmar Ratio:     %.2f\n", res.CalmarRatio))
	sb.WriteString(fmt.Sprintf("Profit Factor:    %.2f\n", res.ProfitFactor))
	sb.WriteString("\n")

	sb.WriteString("PERFORMANCE SUMMARY\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(r.performanceGrade())
	sb.WriteString("\n")

	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	return sb.String()
}

// GenerateTradeLog renders one block per recorded fill.
func (r *ReportGenerator) GenerateTradeLog() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("DETAILED TRADE LOG\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	if len(r.result.Trades) == 0 {
		sb.WriteString("No trades executed\n")
		return sb.String()
	}

	for i, t := range r.result.Trades {
		sb.WriteString(fmt.Sprintf("Trade #%d\n", i+1))
		sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("Date:        %s\n", t.Date.Format("2006-01-02")))
		sb.WriteString(fmt.Sprintf("Symbol:      %s\n", t.Symbol))
		sb.WriteString(fmt.Sprintf("Side:        %s\n", t.Side))
		sb.WriteString(fmt.Sprintf("Quantity:    %d\n", t.Quantity))
		sb.WriteString(fmt.Sprintf("Price:       $%s\n", t.ExecutionPrice.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("Commission:  $%s\n", t.Commission.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("Position ID: %d\n", t.PositionID))
		if t.ExitReason != "" {
			sb.WriteString(fmt.Sprintf("Exit Reason: %s\n", t.ExitReason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// GenerateDailyStats renders one row per recorded DailySnapshot.
func (r *ReportGenerator) GenerateDailyStats() string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("DAILY EQUITY\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("\n")

	if len(r.result.DailySnapshots) == 0 {
		sb.WriteString("No snapshots recorded\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-12s %14s %16s %14s %5s\n", "Date", "Cash", "Positions Value", "Total Equity", "Open"))
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	for _, s := range r.result.DailySnapshots {
		sb.WriteString(fmt.Sprintf("%-12s $%13s $%15s $%13s %5d\n",
			s.Date.Format("2006-01-02"),
			s.Cash.StringFixed(2),
			s.PositionsValue.StringFixed(2),
			s.TotalEquity.StringFixed(2),
			s.OpenPositionCount))
	}
	sb.WriteString("\n")
	return sb.String()
}

// SaveToFile writes the console report, daily stats, and trade log to a
// single timestamped file under outputDir.
func (r *ReportGenerator) SaveToFile(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	symbol := "multi"
	if len(r.result.Config.Symbols) == 1 {
		symbol = r.result.Config.Symbols[0]
	}
	name := fmt.Sprintf("backtest_%s_%s.txt", symbol, timestamp)
	path := filepath.Join(outputDir, name)

	var report strings.Builder
	report.WriteString(r.GenerateConsoleReport())
	report.WriteString(r.GenerateDailyStats())
	report.WriteString(r.GenerateTradeLog())

	if err := os.WriteFile(path, []byte(report.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

func (r *ReportGenerator) performanceGrade() string {
	var sb strings.Builder
	res := r.result

	switch {
	case res.ProfitFactor >= 2.0:
		sb.WriteString("✓ Profit Factor: EXCELLENT (>= 2.0)\n")
	case res.ProfitFactor >= 1.5:
		sb.WriteString("✓ Profit Factor: GOOD (>= 1.5)\n")
	case res.ProfitFactor >= 1.0:
		sb.WriteString("⚠ Profit Factor: BREAK-EVEN (>= 1.0)\n")
	default:
		sb.WriteString("✗ Profit Factor: POOR (< 1.0)\n")
	}

	switch winRatePct := res.WinRate * 100; {
	case winRatePct >= 60:
		sb.WriteString("✓ Win Rate: EXCELLENT (>= 60%)\n")
	case winRatePct >= 50:
		sb.WriteString("✓ Win Rate: GOOD (>= 50%)\n")
	case winRatePct >= 40:
		sb.WriteString("⚠ Win Rate: FAIR (>= 40%)\n")
	default:
		sb.WriteString("✗ Win Rate: POOR (< 40%)\n")
	}

	switch {
	case res.SharpeRatio >= 2.0:
		sb.WriteString("✓ Sharpe Ratio: EXCELLENT (>= 2.0)\n")
	case res.SharpeRatio >= 1.0:
		sb.WriteString("✓ Sharpe Ratio: GOOD (>= 1.0)\n")
	case res.SharpeRatio >= 0.5:
		sb.WriteString("⚠ Sharpe Ratio: FAIR (>= 0.5)\n")
	default:
		sb.WriteString("✗ Sharpe Ratio: POOR (< 0.5)\n")
	}

	switch ddPct := res.MaxDrawdown * 100; {
	case ddPct <= 10:
		sb.WriteString("✓ Max Drawdown: EXCELLENT (<= 10%)\n")
	case ddPct <= 20:
		sb.WriteString("✓ Max Drawdown: GOOD (<= 20%)\n")
	case ddPct <= 30:
		sb.WriteString("⚠ Max Drawdown: FAIR (<= 30%)\n")
	default:
		sb.WriteString("✗ Max Drawdown: POOR (> 30%)\n")
	}

	return sb.String()
}
