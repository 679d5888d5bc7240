package domain

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// 年化假设：A 股每年约 252 个交易日
const tradingDaysPerYear = 252.0

// BasicMetrics 收益与风险指标。
// 比率类指标使用 float64 计算，日收益序列来自日终快照。
type BasicMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	CalmarRatio      float64 `json:"calmar_ratio"`
}

// TradeMetrics 成交层面的统计指标。
// 盈亏按平仓配对计算：卖出相对持仓均价的差额，扣除卖出侧费用。
type TradeMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	// 总盈利 / 总亏损绝对值；无亏损时为 +Inf
	ProfitFactor float64 `json:"profit_factor"`
	TotalPnL     float64 `json:"total_pnl"`
}

// MonthlyReturn 单个自然月的收益率
type MonthlyReturn struct {
	Month  string  `json:"month"`
	Return float64 `json:"return"`
}

// BenchmarkComparison 策略相对基准的对比指标
type BenchmarkComparison struct {
	BenchmarkReturn float64 `json:"benchmark_return"`
	ExcessReturn    float64 `json:"excess_return"`
	Beta            float64 `json:"beta"`
	Alpha           float64 `json:"alpha"`
}

// PerformanceReport 完整绩效报告
type PerformanceReport struct {
	Basic     BasicMetrics         `json:"basic"`
	Trades    TradeMetrics         `json:"trades"`
	Monthly   []MonthlyReturn      `json:"monthly"`
	Benchmark *BenchmarkComparison `json:"benchmark,omitempty"`
}

// PerformanceAnalyzer 绩效分析器：从回测结果提取收益、风险与成交统计。
// 只读消费 BacktestResult，自身无状态。
type PerformanceAnalyzer struct {
	riskFreeRate float64
}

// NewPerformanceAnalyzer 创建绩效分析器，riskFreeRate 为年化无风险利率
func NewPerformanceAnalyzer(riskFreeRate float64) *PerformanceAnalyzer {
	return &PerformanceAnalyzer{riskFreeRate: riskFreeRate}
}

// Analyze 生成完整绩效报告。benchmark 为基准日收盘序列（可为 nil）。
func (a *PerformanceAnalyzer) Analyze(result *BacktestResult, benchmark []float64) *PerformanceReport {
	report := &PerformanceReport{
		Basic:   a.BasicMetrics(result),
		Trades:  a.TradeMetrics(result.Trades),
		Monthly: a.MonthlyReturns(result.Snapshots),
	}
	if len(benchmark) > 1 {
		cmp := a.CompareBenchmark(result, benchmark)
		report.Benchmark = &cmp
	}
	return report
}

// BasicMetrics 计算收益与风险指标
func (a *PerformanceAnalyzer) BasicMetrics(result *BacktestResult) BasicMetrics {
	var m BasicMetrics

	if !result.InitialCash.IsPositive() {
		return m
	}
	m.TotalReturn = result.FinalCapital.Sub(result.InitialCash).Div(result.InitialCash).InexactFloat64()

	returns := dailyReturns(result.Snapshots)
	days := len(result.Snapshots)
	if days > 0 {
		// 复利年化：(1+r)^(252/days) - 1
		base := 1 + m.TotalReturn
		if base > 0 {
			m.AnnualizedReturn = math.Pow(base, tradingDaysPerYear/float64(days)) - 1
		} else {
			m.AnnualizedReturn = -1
		}
	}

	m.Volatility = stddev(returns) * math.Sqrt(tradingDaysPerYear)
	if m.Volatility > 0 {
		m.SharpeRatio = (m.AnnualizedReturn - a.riskFreeRate) / m.Volatility
	}

	m.MaxDrawdown = maxDrawdown(result.Snapshots)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualizedReturn / m.MaxDrawdown
	}

	return m
}

// TradeMetrics 基于平仓配对计算成交统计。
// 每笔卖出视为一次平仓：盈亏 = (卖价 - 持仓均价) × 数量 - 卖出费用，
// 持仓均价按买入流水加权滚动维护，与组合的持仓均价口径一致。
func (a *PerformanceAnalyzer) TradeMetrics(trades []*Trade) TradeMetrics {
	var m TradeMetrics

	type costState struct {
		quantity int64
		avgCost  decimal.Decimal
	}
	book := make(map[string]*costState)

	var totalWin, totalLoss float64

	for _, trade := range trades {
		switch trade.Side {
		case OrderSideBuy:
			st, ok := book[trade.StockCode]
			if !ok {
				book[trade.StockCode] = &costState{quantity: trade.Quantity, avgCost: trade.Price}
				continue
			}
			oldQty := decimal.NewFromInt(st.quantity)
			addQty := decimal.NewFromInt(trade.Quantity)
			st.avgCost = st.avgCost.Mul(oldQty).Add(trade.Price.Mul(addQty)).Div(oldQty.Add(addQty))
			st.quantity += trade.Quantity

		case OrderSideSell:
			st, ok := book[trade.StockCode]
			if !ok {
				continue
			}
			qty := decimal.NewFromInt(trade.Quantity)
			gross := trade.Price.Sub(st.avgCost).Mul(qty)
			fees := trade.Commission.Add(trade.StampTax).Add(trade.Slippage)
			pnl := gross.Sub(fees).InexactFloat64()

			m.TotalTrades++
			m.TotalPnL += pnl
			if pnl > 0 {
				m.WinningTrades++
				totalWin += pnl
			} else {
				m.LosingTrades++
				totalLoss += -pnl
			}

			st.quantity -= trade.Quantity
			if st.quantity <= 0 {
				delete(book, trade.StockCode)
			}
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AvgWin = totalWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = totalLoss / float64(m.LosingTrades)
	}
	if totalLoss > 0 {
		m.ProfitFactor = totalWin / totalLoss
	} else if totalWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	return m
}

// MonthlyReturns 按自然月聚合收益率：月末总资产相对月初前值的变动
func (a *PerformanceAnalyzer) MonthlyReturns(snapshots []*PortfolioSnapshot) []MonthlyReturn {
	if len(snapshots) == 0 {
		return nil
	}

	// 每月最后一个快照的总资产
	lastOfMonth := make(map[string]decimal.Decimal)
	for _, snap := range snapshots {
		lastOfMonth[snap.Date.Format("2006-01")] = snap.TotalValue
	}

	months := make([]string, 0, len(lastOfMonth))
	for month := range lastOfMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	var out []MonthlyReturn
	prev := decimal.Zero
	for i, month := range months {
		end := lastOfMonth[month]
		if i == 0 {
			// 首月相对期初：用首个快照的前值近似（快照本身已含当日收益）
			first := snapshots[0]
			base := first.TotalValue
			if first.DailyReturn > -1 {
				base = first.TotalValue.Div(decimal.NewFromFloat(1 + first.DailyReturn))
			}
			prev = base
		}
		r := 0.0
		if prev.IsPositive() {
			r = end.Sub(prev).Div(prev).InexactFloat64()
		}
		out = append(out, MonthlyReturn{Month: month, Return: r})
		prev = end
	}
	return out
}

// CompareBenchmark 计算相对基准的超额收益、Beta 与 Alpha。
// benchmark 为与快照序列对齐的基准收盘价序列。
func (a *PerformanceAnalyzer) CompareBenchmark(result *BacktestResult, benchmark []float64) BenchmarkComparison {
	var cmp BenchmarkComparison
	if len(benchmark) < 2 || benchmark[0] <= 0 {
		return cmp
	}

	cmp.BenchmarkReturn = benchmark[len(benchmark)-1]/benchmark[0] - 1

	totalReturn := 0.0
	if result.InitialCash.IsPositive() {
		totalReturn = result.FinalCapital.Sub(result.InitialCash).Div(result.InitialCash).InexactFloat64()
	}
	cmp.ExcessReturn = totalReturn - cmp.BenchmarkReturn

	benchReturns := make([]float64, 0, len(benchmark)-1)
	for i := 1; i < len(benchmark); i++ {
		if benchmark[i-1] > 0 {
			benchReturns = append(benchReturns, benchmark[i]/benchmark[i-1]-1)
		}
	}
	stratReturns := dailyReturns(result.Snapshots)

	n := len(benchReturns)
	if len(stratReturns) < n {
		n = len(stratReturns)
	}
	if n < 2 {
		return cmp
	}
	stratReturns = stratReturns[:n]
	benchReturns = benchReturns[:n]

	varBench := variance(benchReturns)
	if varBench > 0 {
		cmp.Beta = covariance(stratReturns, benchReturns) / varBench
	}

	// Jensen's Alpha，按日均值年化
	meanStrat := mean(stratReturns) * tradingDaysPerYear
	meanBench := mean(benchReturns) * tradingDaysPerYear
	cmp.Alpha = meanStrat - a.riskFreeRate - cmp.Beta*(meanBench-a.riskFreeRate)

	return cmp
}

// dailyReturns 提取日收益率序列
func dailyReturns(snapshots []*PortfolioSnapshot) []float64 {
	out := make([]float64, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, snap.DailyReturn)
	}
	return out
}

// maxDrawdown 快照序列中的最大回撤
func maxDrawdown(snapshots []*PortfolioSnapshot) float64 {
	maxDD := 0.0
	for _, snap := range snapshots {
		if snap.Drawdown > maxDD {
			maxDD = snap.Drawdown
		}
	}
	return maxDD
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance 样本方差（n-1）
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}

func stddev(xs []float64) float64 {
	return math.Sqrt(variance(xs))
}

func covariance(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	sum := 0.0
	for i := range xs {
		sum += (xs[i] - mx) * (ys[i] - my)
	}
	return sum / float64(len(xs)-1)
}
