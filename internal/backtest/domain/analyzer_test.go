package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func snapshotSeries(values ...float64) []*PortfolioSnapshot {
	dates := []string{"2023-01-03", "2023-01-04", "2023-01-05", "2023-01-06", "2023-01-09", "2023-01-10"}
	initial := 1000000.0

	out := make([]*PortfolioSnapshot, 0, len(values))
	peak := initial
	prev := initial
	for i, v := range values {
		if v > peak {
			peak = v
		}
		out = append(out, &PortfolioSnapshot{
			Date:             td(dates[i]),
			TotalValue:       decimal.NewFromFloat(v),
			DailyReturn:      v/prev - 1,
			CumulativeReturn: v/initial - 1,
			Drawdown:         (peak - v) / peak,
		})
		prev = v
	}
	return out
}

func resultOf(finalCapital float64, snapshots []*PortfolioSnapshot, trades []*Trade) *BacktestResult {
	return &BacktestResult{
		State:        EngineStateCompleted,
		InitialCash:  decimal.NewFromInt(1000000),
		FinalCapital: decimal.NewFromFloat(finalCapital),
		TradingDays:  len(snapshots),
		Trades:       trades,
		Snapshots:    snapshots,
	}
}

func TestBasicMetrics(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	snaps := snapshotSeries(1010000, 1020000, 1000000, 1030000)
	m := a.BasicMetrics(resultOf(1030000, snaps, nil))

	if want := 0.03; math.Abs(m.TotalReturn-want) > 1e-9 {
		t.Errorf("total return = %f, want %f", m.TotalReturn, want)
	}
	if m.AnnualizedReturn <= m.TotalReturn {
		t.Errorf("annualized return %f should exceed 4-day total return %f", m.AnnualizedReturn, m.TotalReturn)
	}
	if m.Volatility <= 0 {
		t.Errorf("volatility = %f, want positive", m.Volatility)
	}
	if m.SharpeRatio == 0 {
		t.Error("sharpe ratio should be non-zero with positive volatility")
	}
	// 峰值 1020000 回落到 1000000：回撤 20000/1020000
	if want := 20000.0 / 1020000.0; math.Abs(m.MaxDrawdown-want) > 1e-9 {
		t.Errorf("max drawdown = %f, want %f", m.MaxDrawdown, want)
	}
	if m.CalmarRatio == 0 {
		t.Error("calmar ratio should be non-zero with positive drawdown")
	}
}

func TestBasicMetricsZeroVolatility(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	// 总资产恒定：波动率为 0，夏普与卡玛约定为 0
	snaps := snapshotSeries(1000000, 1000000, 1000000)
	m := a.BasicMetrics(resultOf(1000000, snaps, nil))

	if m.Volatility != 0 {
		t.Errorf("volatility = %f, want 0", m.Volatility)
	}
	if m.SharpeRatio != 0 {
		t.Errorf("sharpe = %f, want 0 when volatility is 0", m.SharpeRatio)
	}
	if m.MaxDrawdown != 0 || m.CalmarRatio != 0 {
		t.Errorf("drawdown/calmar = %f/%f, want 0/0", m.MaxDrawdown, m.CalmarRatio)
	}
}

func sellTradeWithFees(code string, qty int64, price, commission, stampTax float64, date string) *Trade {
	return &Trade{
		StockCode:  code,
		Side:       OrderSideSell,
		Quantity:   qty,
		Price:      decimal.NewFromFloat(price),
		Commission: decimal.NewFromFloat(commission),
		StampTax:   decimal.NewFromFloat(stampTax),
		TradeDate:  td(date),
	}
}

func TestTradeMetricsPairsSellsAgainstAvgCost(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	trades := []*Trade{
		// 买 1000@10，卖 1000@11：毛利 1000，费用 44 → 净利 956
		tradeOf(OrderSideBuy, "600519.SH", 1000, 10, -10030, "2023-01-03"),
		sellTradeWithFees("600519.SH", 1000, 11, 33, 11, "2023-01-04"),
		// 买 1000@20，卖 1000@19：毛亏 1000，费用 76 → 净亏 1076
		tradeOf(OrderSideBuy, "000001.SZ", 1000, 20, -20060, "2023-01-04"),
		sellTradeWithFees("000001.SZ", 1000, 19, 57, 19, "2023-01-05"),
	}

	m := a.TradeMetrics(trades)

	if m.TotalTrades != 2 {
		t.Fatalf("total trades = %d, want 2 (sell legs)", m.TotalTrades)
	}
	if m.WinningTrades != 1 || m.LosingTrades != 1 {
		t.Errorf("win/lose = %d/%d, want 1/1", m.WinningTrades, m.LosingTrades)
	}
	if want := 0.5; m.WinRate != want {
		t.Errorf("win rate = %f, want %f", m.WinRate, want)
	}
	if want := 956.0; math.Abs(m.AvgWin-want) > 1e-9 {
		t.Errorf("avg win = %f, want %f", m.AvgWin, want)
	}
	if want := 1076.0; math.Abs(m.AvgLoss-want) > 1e-9 {
		t.Errorf("avg loss = %f, want %f", m.AvgLoss, want)
	}
	if want := 956.0 / 1076.0; math.Abs(m.ProfitFactor-want) > 1e-9 {
		t.Errorf("profit factor = %f, want %f", m.ProfitFactor, want)
	}
}

func TestTradeMetricsProfitFactorInfWithoutLosses(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	trades := []*Trade{
		tradeOf(OrderSideBuy, "600519.SH", 1000, 10, -10030, "2023-01-03"),
		sellTradeWithFees("600519.SH", 1000, 11, 33, 11, "2023-01-04"),
	}

	m := a.TradeMetrics(trades)
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("profit factor = %f, want +Inf when no losing trades", m.ProfitFactor)
	}
}

func TestTradeMetricsUsesWeightedAvgCost(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	// 两笔买入均价 11，卖出 @11：毛利 0，费用使其成为亏损
	trades := []*Trade{
		tradeOf(OrderSideBuy, "600519.SH", 1000, 10, -10030, "2023-01-03"),
		tradeOf(OrderSideBuy, "600519.SH", 1000, 12, -12036, "2023-01-04"),
		sellTradeWithFees("600519.SH", 2000, 11, 66, 22, "2023-01-05"),
	}

	m := a.TradeMetrics(trades)
	if m.LosingTrades != 1 {
		t.Errorf("losing trades = %d, want 1", m.LosingTrades)
	}
	if want := -88.0; math.Abs(m.TotalPnL-want) > 1e-9 {
		t.Errorf("total pnl = %f, want %f", m.TotalPnL, want)
	}
}

func TestMonthlyReturns(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	snaps := []*PortfolioSnapshot{
		{Date: td("2023-01-30"), TotalValue: decimal.NewFromInt(1010000), DailyReturn: 0.01},
		{Date: td("2023-01-31"), TotalValue: decimal.NewFromInt(1020000), DailyReturn: 1020000.0/1010000.0 - 1},
		{Date: td("2023-02-27"), TotalValue: decimal.NewFromInt(1000000), DailyReturn: 1000000.0/1020000.0 - 1},
		{Date: td("2023-02-28"), TotalValue: decimal.NewFromInt(1050000), DailyReturn: 0.05},
	}

	monthly := a.MonthlyReturns(snaps)
	if len(monthly) != 2 {
		t.Fatalf("months = %d, want 2", len(monthly))
	}
	if monthly[0].Month != "2023-01" || monthly[1].Month != "2023-02" {
		t.Errorf("months = %s, %s; want 2023-01, 2023-02", monthly[0].Month, monthly[1].Month)
	}
	// 2 月：1020000 → 1050000
	if want := 1050000.0/1020000.0 - 1; math.Abs(monthly[1].Return-want) > 1e-9 {
		t.Errorf("feb return = %f, want %f", monthly[1].Return, want)
	}
}

func TestCompareBenchmark(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	snaps := snapshotSeries(1010000, 1020000, 1010000, 1030000)
	result := resultOf(1030000, snaps, nil)

	benchmark := []float64{3000, 3030, 3060, 3030, 3090}
	cmp := a.CompareBenchmark(result, benchmark)

	if want := 0.03; math.Abs(cmp.BenchmarkReturn-want) > 1e-9 {
		t.Errorf("benchmark return = %f, want %f", cmp.BenchmarkReturn, want)
	}
	if want := 0.0; math.Abs(cmp.ExcessReturn-want) > 1e-9 {
		t.Errorf("excess return = %f, want %f", cmp.ExcessReturn, want)
	}
	if cmp.Beta == 0 {
		t.Error("beta should be non-zero for correlated series")
	}
}

func TestAnalyzeSkipsBenchmarkWhenAbsent(t *testing.T) {
	a := NewPerformanceAnalyzer(0.03)

	snaps := snapshotSeries(1010000, 1020000)
	report := a.Analyze(resultOf(1020000, snaps, nil), nil)

	if report.Benchmark != nil {
		t.Error("benchmark section should be nil without benchmark data")
	}
	if report.Basic.TotalReturn <= 0 {
		t.Errorf("total return = %f, want positive", report.Basic.TotalReturn)
	}
}
