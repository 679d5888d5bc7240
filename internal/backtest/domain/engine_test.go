package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// scriptedStrategy 按日期返回预设信号
type scriptedStrategy struct {
	signals     map[string][]*Signal
	failOn      string
	initialized bool
	trades      []*Trade
}

func (s *scriptedStrategy) Initialize(ctx context.Context, sctx *StrategyContext) error {
	s.initialized = true
	return nil
}

func (s *scriptedStrategy) GenerateSignals(ctx context.Context, date time.Time, snapshot *MarketSnapshot, view *PortfolioView) ([]*Signal, error) {
	if s.failOn != "" && DateKey(date) == s.failOn {
		return nil, errors.New("scripted failure")
	}
	return s.signals[DateKey(date)], nil
}

func (s *scriptedStrategy) OnTradeExecuted(trade *Trade) {
	s.trades = append(s.trades, trade)
}

func (s *scriptedStrategy) StrategyInfo() StrategyInfo {
	return StrategyInfo{Name: "scripted"}
}

func engineConfig(initialCash float64, risk RiskConfig) EngineConfig {
	rule, _ := NewTradingRule(0.003, 0.001, 5, 0, 100, 0.01, 0.10)
	return EngineConfig{
		InitialCash:  decimal.NewFromFloat(initialCash),
		Rule:         rule,
		Risk:         risk,
		RiskFreeRate: 0.03,
	}
}

func datasetOf(quotes ...*DailyQuote) *MarketDataSet {
	byCode := make(map[string][]*DailyQuote)
	for _, q := range quotes {
		byCode[q.StockCode] = append(byCode[q.StockCode], q)
	}
	return NewMarketDataSet(byCode)
}

func TestNewBacktestEngineRequiresData(t *testing.T) {
	strat := &scriptedStrategy{}
	if _, err := NewBacktestEngine(engineConfig(1000000, RiskConfig{}), nil, strat); !errors.Is(err, ErrNoMarketData) {
		t.Errorf("nil dataset: err = %v, want ErrNoMarketData", err)
	}
	empty := NewMarketDataSet(map[string][]*DailyQuote{})
	if _, err := NewBacktestEngine(engineConfig(1000000, RiskConfig{}), empty, strat); !errors.Is(err, ErrNoMarketData) {
		t.Errorf("empty dataset: err = %v, want ErrNoMarketData", err)
	}
}

// 两日回测：首日买入，次日信号卖出（T+1 已满足），核对最终资金
func TestEngineRunBuySellRoundTrip(t *testing.T) {
	data := datasetOf(
		quoteOf("600519.SH", "2023-01-03", 10, 10),
		quoteOf("600519.SH", "2023-01-04", 11, 10),
	)

	strat := &scriptedStrategy{signals: map[string][]*Signal{
		"2023-01-03": {{Action: SignalActionBuy, StockCode: "600519.SH", Quantity: 1000, Price: decimal.NewFromInt(10)}},
		"2023-01-04": {{Action: SignalActionSell, StockCode: "600519.SH", Quantity: 1000, Price: decimal.NewFromInt(11)}},
	}}

	engine, err := NewBacktestEngine(engineConfig(1000000, RiskConfig{}), data, strat)
	if err != nil {
		t.Fatalf("NewBacktestEngine: %v", err)
	}

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.State != EngineStateCompleted || engine.State() != EngineStateCompleted {
		t.Errorf("state = %s, want COMPLETED", result.State)
	}
	if result.TradingDays != 2 {
		t.Errorf("trading days = %d, want 2", result.TradingDays)
	}
	if len(result.Trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(result.Trades))
	}
	if len(result.Snapshots) != 2 {
		t.Errorf("snapshots = %d, want one per trading day", len(result.Snapshots))
	}
	// 买入 -10030，卖出 +10956
	decEq(t, result.FinalCapital, "1000926", "final capital")
	if len(strat.trades) != 2 {
		t.Errorf("strategy trade callbacks = %d, want 2", len(strat.trades))
	}
}

// 当日买入当日卖出：卖出信号被 T+1 拒绝，持仓保留
func TestEngineEnforcesTPlusOne(t *testing.T) {
	data := datasetOf(
		quoteOf("600519.SH", "2023-01-03", 10, 10),
		quoteOf("600519.SH", "2023-01-04", 10, 10),
	)

	strat := &scriptedStrategy{signals: map[string][]*Signal{
		"2023-01-03": {
			{Action: SignalActionBuy, StockCode: "600519.SH", Quantity: 1000, Price: decimal.NewFromInt(10)},
			{Action: SignalActionSell, StockCode: "600519.SH", Quantity: 1000, Price: decimal.NewFromInt(10)},
		},
	}}

	engine, _ := NewBacktestEngine(engineConfig(1000000, RiskConfig{}), data, strat)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1 (sell rejected by T+1)", len(result.Trades))
	}
	if result.Trades[0].Side != OrderSideBuy {
		t.Errorf("executed trade side = %s, want BUY", result.Trades[0].Side)
	}
	if result.OrdersRejected != 1 {
		t.Errorf("rejected orders = %d, want 1", result.OrdersRejected)
	}
	if engine.Portfolio().PositionQuantity("600519.SH") != 1000 {
		t.Errorf("position must survive rejected same-day sell")
	}
}

// 数量缺省的买入信号由引擎按仓位限制推算
func TestEngineSizesOrderWhenQuantityOmitted(t *testing.T) {
	data := datasetOf(quoteOf("600519.SH", "2023-01-03", 10, 10))

	strat := &scriptedStrategy{signals: map[string][]*Signal{
		"2023-01-03": {{Action: SignalActionBuy, StockCode: "600519.SH", Strength: 1}},
	}}

	risk := RiskConfig{MaxSinglePositionPct: 0.10, MaxPositions: 10}
	engine, _ := NewBacktestEngine(engineConfig(1000000, risk), data, strat)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	// 10% × 1000000 = 100000 → 10000 股
	if got := result.Trades[0].Quantity; got != 10000 {
		t.Errorf("sized quantity = %d, want 10000", got)
	}
}

// 止损触发的风控卖单在同一交易日内执行
func TestEngineRiskControlSellSameDay(t *testing.T) {
	data := datasetOf(
		quoteOf("600519.SH", "2023-01-03", 10, 10),
		quoteOf("600519.SH", "2023-01-04", 9, 10),
	)

	strat := &scriptedStrategy{signals: map[string][]*Signal{
		"2023-01-03": {{Action: SignalActionBuy, StockCode: "600519.SH", Quantity: 1000, Price: decimal.NewFromInt(10)}},
	}}

	risk := RiskConfig{StopLossPct: 0.08}
	engine, _ := NewBacktestEngine(engineConfig(1000000, risk), data, strat)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 次日 -10% 触发止损，风控卖单次日成交
	if len(result.Trades) != 2 {
		t.Fatalf("trades = %d, want 2 (buy + risk sell)", len(result.Trades))
	}
	sell := result.Trades[1]
	if sell.Side != OrderSideSell || !SameTradeDate(sell.TradeDate, td("2023-01-04")) {
		t.Errorf("risk sell = %s on %s, want SELL on 2023-01-04", sell.Side, DateKey(sell.TradeDate))
	}
	if engine.Portfolio().PositionCount() != 0 {
		t.Errorf("position must be closed by stop loss")
	}
}

// 当日买入的持仓同日触发风控时，风控卖单也受 T+1 约束
func TestEngineRiskSellSubjectToTPlusOne(t *testing.T) {
	data := datasetOf(
		// 买入后当日即深跌触发止损
		quoteOf("600519.SH", "2023-01-03", 9.1, 10),
		quoteOf("600519.SH", "2023-01-04", 9.1, 9.1),
	)

	strat := &scriptedStrategy{signals: map[string][]*Signal{
		"2023-01-03": {{Action: SignalActionBuy, StockCode: "600519.SH", Quantity: 1000, Price: decimal.NewFromInt(10)}},
	}}

	risk := RiskConfig{StopLossPct: 0.08}
	engine, _ := NewBacktestEngine(engineConfig(1000000, risk), data, strat)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, trade := range result.Trades {
		if trade.Side == OrderSideSell && SameTradeDate(trade.TradeDate, td("2023-01-03")) {
			t.Fatal("risk sell executed on buy date, violating T+1")
		}
	}
	// 次日风控卖出
	last := result.Trades[len(result.Trades)-1]
	if last.Side != OrderSideSell || !SameTradeDate(last.TradeDate, td("2023-01-04")) {
		t.Errorf("expected risk sell on next day, got %s on %s", last.Side, DateKey(last.TradeDate))
	}
}

func TestEngineStrategyErrorIsFatal(t *testing.T) {
	data := datasetOf(
		quoteOf("600519.SH", "2023-01-03", 10, 10),
		quoteOf("600519.SH", "2023-01-04", 10, 10),
	)

	strat := &scriptedStrategy{failOn: "2023-01-04"}
	engine, _ := NewBacktestEngine(engineConfig(1000000, RiskConfig{}), data, strat)

	if _, err := engine.Run(context.Background()); err == nil {
		t.Fatal("expected error from failing strategy")
	}
	if engine.State() != EngineStateFailed {
		t.Errorf("state = %s, want FAILED", engine.State())
	}

	// 失败后不可重跑
	if _, err := engine.Run(context.Background()); !errors.Is(err, ErrEngineNotRunnable) {
		t.Errorf("rerun err = %v, want ErrEngineNotRunnable", err)
	}
}

func TestEngineCompletedRunNotRerunnable(t *testing.T) {
	data := datasetOf(quoteOf("600519.SH", "2023-01-03", 10, 10))
	strat := &scriptedStrategy{}
	engine, _ := NewBacktestEngine(engineConfig(1000000, RiskConfig{}), data, strat)

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := engine.Run(context.Background()); !errors.Is(err, ErrEngineNotRunnable) {
		t.Errorf("rerun err = %v, want ErrEngineNotRunnable", err)
	}
}
