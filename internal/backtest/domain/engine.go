package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/asharebacktest/pkg/logger"
)

// EngineState 引擎状态机：INITIALIZED → RUNNING → COMPLETED | FAILED
type EngineState string

const (
	EngineStateInitialized EngineState = "INITIALIZED"
	EngineStateRunning     EngineState = "RUNNING"
	EngineStateCompleted   EngineState = "COMPLETED"
	EngineStateFailed      EngineState = "FAILED"
)

// EngineConfig 引擎静态配置，构造时一次性校验
type EngineConfig struct {
	InitialCash  decimal.Decimal
	Rule         TradingRule
	Risk         RiskConfig
	RiskFreeRate float64
}

// BacktestResult 回测结果：最终资金、全量成交与日终快照历史。
// 纯数据结构，无行为，直接供绩效分析与 REST 层消费。
type BacktestResult struct {
	State        EngineState
	InitialCash  decimal.Decimal
	FinalCapital decimal.Decimal
	StartDate    time.Time
	EndDate      time.Time
	TradingDays  int
	Trades       []*Trade
	Snapshots    []*PortfolioSnapshot
	// 订单总数与拒单数（含风控订单）
	OrdersCreated  int
	OrdersRejected int
}

// BacktestEngine 回测引擎：驱动日步进循环。
// 单线程顺序执行，日内步骤顺序（估值 → 信号 → 订单 → 执行 → 风控 → 快照）
// 是正确性要求而非性能选择：后续步骤读取前序步骤修改的状态。
type BacktestEngine struct {
	cfg      EngineConfig
	data     *MarketDataSet
	strategy Strategy

	sim       *TradingSimulator
	orders    *OrderManager
	portfolio *PortfolioManager

	state  EngineState
	trades []*Trade
}

// NewBacktestEngine 创建回测引擎。组合聚合由引擎独占，
// OrderManager 仅持有只读视图。
func NewBacktestEngine(cfg EngineConfig, data *MarketDataSet, strategy Strategy) (*BacktestEngine, error) {
	if data == nil || data.StockCount() == 0 {
		return nil, ErrNoMarketData
	}

	pm, err := NewPortfolioManager(cfg.InitialCash, cfg.Risk, cfg.Rule)
	if err != nil {
		return nil, err
	}

	sim := NewTradingSimulator(cfg.Rule)

	return &BacktestEngine{
		cfg:       cfg,
		data:      data,
		strategy:  strategy,
		sim:       sim,
		orders:    NewOrderManager(sim, pm),
		portfolio: pm,
		state:     EngineStateInitialized,
	}, nil
}

// State 当前引擎状态
func (e *BacktestEngine) State() EngineState {
	return e.state
}

// Portfolio 组合管理器（回测结束后只读）
func (e *BacktestEngine) Portfolio() *PortfolioManager {
	return e.portfolio
}

// Run 执行完整回测。运行要么完成要么报错，不支持中途取消与断点续跑；
// 致命错误（策略异常等）置 FAILED 并且不返回部分结果。
func (e *BacktestEngine) Run(ctx context.Context) (*BacktestResult, error) {
	if e.state != EngineStateInitialized {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotRunnable, e.state)
	}

	dates := e.data.TradingDates()
	if len(dates) == 0 {
		e.state = EngineStateFailed
		return nil, ErrNoMarketData
	}

	sctx := &StrategyContext{
		StockCodes:  e.universe(),
		StartDate:   dates[0],
		EndDate:     dates[len(dates)-1],
		InitialCash: e.cfg.InitialCash,
	}
	if err := e.strategy.Initialize(ctx, sctx); err != nil {
		e.state = EngineStateFailed
		return nil, fmt.Errorf("strategy initialize failed: %w", err)
	}

	e.state = EngineStateRunning
	defer logger.LogDuration(ctx, "Backtest run finished",
		"strategy", e.strategy.StrategyInfo().Name,
		"trading_days", len(dates),
	)()

	for _, date := range dates {
		if err := e.stepDay(ctx, date); err != nil {
			e.state = EngineStateFailed
			return nil, fmt.Errorf("backtest failed on %s: %w", DateKey(date), err)
		}
	}

	e.state = EngineStateCompleted

	return &BacktestResult{
		State:          e.state,
		InitialCash:    e.cfg.InitialCash,
		FinalCapital:   e.portfolio.TotalValue(),
		StartDate:      dates[0],
		EndDate:        dates[len(dates)-1],
		TradingDays:    len(dates),
		Trades:         e.trades,
		Snapshots:      e.portfolio.Snapshots(),
		OrdersCreated:  len(e.orders.Orders()),
		OrdersRejected: e.orders.RejectedCount(),
	}, nil
}

// stepDay 单个交易日的严格步骤序列
func (e *BacktestEngine) stepDay(ctx context.Context, date time.Time) error {
	// 1. 当日市场快照；个股当日无记录即不在快照中
	snapshot, err := e.data.SnapshotFor(date)
	if err != nil {
		return err
	}

	// 2. 持仓估值
	e.portfolio.UpdatePositionsValue(snapshot, date)

	// 3. 策略信号（策略异常视为致命）
	view := e.portfolioView()
	signals, err := e.strategy.GenerateSignals(ctx, date, snapshot, view)
	if err != nil {
		return fmt.Errorf("strategy error: %w", err)
	}

	// 4. 信号转订单
	for _, sig := range signals {
		e.placeSignalOrder(ctx, sig, snapshot, date)
	}

	// 5-6. 执行订单并落账
	trades := e.orders.ExecutePendingOrders(ctx, snapshot, date)
	if err := e.settleTrades(ctx, trades); err != nil {
		return err
	}

	// 7. 风控信号转订单并立即执行（与策略订单同一校验路径，T+1 同样适用）
	riskSignals := e.portfolio.CheckRiskControl(date, snapshot)
	if len(riskSignals) > 0 {
		e.placeRiskOrders(ctx, riskSignals, date)
		riskTrades := e.orders.ExecutePendingOrders(ctx, snapshot, date)
		if err := e.settleTrades(ctx, riskTrades); err != nil {
			return err
		}
	}

	// 8. 日终快照
	e.portfolio.CreateSnapshot(date)

	return nil
}

// placeSignalOrder 将策略信号转换为订单。
// 数量缺省时按信号强度推算仓位；价格缺省时使用当日收盘价。
// 创建失败（数量非法等）按拒单处理：记日志并继续后续信号。
func (e *BacktestEngine) placeSignalOrder(ctx context.Context, sig *Signal, snapshot *MarketSnapshot, date time.Time) {
	quote, ok := snapshot.Quote(sig.StockCode)
	if !ok {
		logger.Debug(ctx, "Signal skipped: stock absent from snapshot",
			"stock_code", sig.StockCode, "date", DateKey(date))
		return
	}

	price := sig.Price
	if !price.IsPositive() {
		price = quote.Close
	}

	var side OrderSide
	quantity := sig.Quantity
	switch sig.Action {
	case SignalActionBuy:
		side = OrderSideBuy
		if quantity == 0 {
			strength := sig.Strength
			if strength <= 0 {
				strength = 1
			}
			quantity = e.portfolio.CalculatePositionSize(sig.StockCode, strength, snapshot)
		}
	case SignalActionSell:
		side = OrderSideSell
		if quantity == 0 {
			quantity = e.portfolio.PositionQuantity(sig.StockCode)
		}
	default:
		return
	}

	if quantity <= 0 {
		return
	}

	if _, err := e.orders.CreateOrder(sig.StockCode, side, quantity, price, date); err != nil {
		logger.Debug(ctx, "Signal order rejected at creation",
			"stock_code", sig.StockCode,
			"action", sig.Action,
			"quantity", quantity,
			"error", err,
		)
	}
}

// placeRiskOrders 将风控信号转换为平仓订单，按当日收盘价委托
func (e *BacktestEngine) placeRiskOrders(ctx context.Context, signals []RiskSignal, date time.Time) {
	// 同一股票可能同时触发多类信号；只下一笔平仓单
	placed := make(map[string]bool)

	for _, sig := range signals {
		if placed[sig.StockCode] {
			continue
		}

		held := e.portfolio.PositionQuantity(sig.StockCode)
		if held <= 0 {
			continue
		}

		pos := e.portfolio.Positions()[sig.StockCode]
		price := pos.MarketValue.Div(decimal.NewFromInt(pos.Quantity))
		if !price.IsPositive() {
			continue
		}

		if _, err := e.orders.CreateOrder(sig.StockCode, OrderSideSell, held, price, date); err != nil {
			logger.Warn(ctx, "Risk order rejected at creation",
				"stock_code", sig.StockCode,
				"priority", sig.Priority,
				"error", err,
			)
			continue
		}
		placed[sig.StockCode] = true

		logger.Info(ctx, "Risk control order placed",
			"stock_code", sig.StockCode,
			"priority", sig.Priority,
			"reason", sig.Reason,
		)
	}
}

// settleTrades 成交落账并回调策略
func (e *BacktestEngine) settleTrades(ctx context.Context, trades []*Trade) error {
	for _, trade := range trades {
		if err := e.portfolio.ProcessTrade(trade); err != nil {
			return fmt.Errorf("process trade %s: %w", trade.TradeID, err)
		}
		e.trades = append(e.trades, trade)
		e.strategy.OnTradeExecuted(trade)
	}
	return nil
}

// portfolioView 构造传递给策略的只读组合视图
func (e *BacktestEngine) portfolioView() *PortfolioView {
	return &PortfolioView{
		Cash:          e.portfolio.AvailableCash(),
		TotalValue:    e.portfolio.TotalValue(),
		PositionCount: e.portfolio.PositionCount(),
		Positions:     e.portfolio.Positions(),
	}
}

// universe 行情集合内的全部股票代码
func (e *BacktestEngine) universe() []string {
	codes := make([]string, 0, e.data.StockCount())
	seen := make(map[string]bool)
	for _, date := range e.data.TradingDates() {
		snap, err := e.data.SnapshotFor(date)
		if err != nil {
			continue
		}
		for _, code := range snap.Codes() {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	return codes
}
