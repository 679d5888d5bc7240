package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Position 单只股票的持仓。
// 均价只在买入时按加权重算；卖出只减少数量，不改变均价；
// 数量归零时持仓从组合中移除。
type Position struct {
	StockCode string
	// 数量（股），恒 ≥ 0
	Quantity int64
	// 加权平均成本（按成交价加权）
	AvgCost decimal.Decimal
	// 市值 = 数量 × 最近可得收盘价
	MarketValue decimal.Decimal
	// 浮动盈亏
	UnrealizedPnL decimal.Decimal
	// 浮动盈亏比例
	UnrealizedPnLPct float64
	// 建仓日期（首次买入）
	EntryDate time.Time
	// 最近一次买入日期（T+1 校验依据）
	LastBuyDate time.Time
	// 最近估值时间
	LastUpdate time.Time
}

// currentPrice 推算当前价：数量为正时用市值反推，用于行情缺失日的风控计算
func (p *Position) currentPrice() decimal.Decimal {
	if p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.MarketValue.Div(decimal.NewFromInt(p.Quantity))
}

// PortfolioSnapshot 组合的日终快照，创建后不可变，按日期有序，
// 构成绩效分析使用的 append-only 历史。
type PortfolioSnapshot struct {
	Date time.Time
	// 总资产 = 现金 + 持仓市值
	TotalValue decimal.Decimal
	// 现金
	Cash decimal.Decimal
	// 持仓市值
	PositionsValue decimal.Decimal
	// 持仓数量
	PositionCount int
	// 当日收益率
	DailyReturn float64
	// 相对初始资金的累计收益率
	CumulativeReturn float64
	// 相对历史峰值的回撤
	Drawdown float64
	// 持仓副本
	Positions map[string]Position
}

// RiskSignal 风控信号。信号只是建议，引擎必须将其转为订单、
// 经过与策略订单相同的校验路径后才会生效。
type RiskSignal struct {
	StockCode string
	Action    OrderSide
	// 卖出数量（全部持仓）
	Quantity int64
	Reason   string
	// 优先级：high（止损）/ medium（止盈）/ urgent（组合回撤）
	Priority string
	// 触发时的盈亏比例
	PnLRatio float64
}

// 风控信号优先级
const (
	RiskPriorityHigh   = "high"
	RiskPriorityMedium = "medium"
	RiskPriorityUrgent = "urgent"
)

// RiskConfig 组合风控参数
type RiskConfig struct {
	// 止损比例（如 0.08 表示 -8% 止损）
	StopLossPct float64
	// 止盈比例
	TakeProfitPct float64
	// 组合最大回撤限制
	MaxDrawdownLimit float64
	// 单一持仓最大市值占比
	MaxSinglePositionPct float64
	// 最大持仓数量
	MaxPositions int
}

// PortfolioManager 组合管理器，组合聚合的唯一所有者：
// 管理现金、持仓、估值、日终快照与风控信号。
// 回测循环单线程独占修改，循环结束后只读。
type PortfolioManager struct {
	initialCash decimal.Decimal
	cash        decimal.Decimal
	positions   map[string]*Position
	// 历史峰值总资产（回撤基准）
	peakValue decimal.Decimal
	snapshots []*PortfolioSnapshot
	risk      RiskConfig
	rule      TradingRule
}

// NewPortfolioManager 创建组合管理器
func NewPortfolioManager(initialCash decimal.Decimal, risk RiskConfig, rule TradingRule) (*PortfolioManager, error) {
	if !initialCash.IsPositive() {
		return nil, ErrInvalidInitialCash
	}
	return &PortfolioManager{
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]*Position),
		peakValue:   initialCash,
		risk:        risk,
		rule:        rule,
	}, nil
}

// InitialCash 初始资金
func (pm *PortfolioManager) InitialCash() decimal.Decimal {
	return pm.initialCash
}

// AvailableCash 可用资金
func (pm *PortfolioManager) AvailableCash() decimal.Decimal {
	return pm.cash
}

// PositionQuantity 某只股票的持仓数量
func (pm *PortfolioManager) PositionQuantity(stockCode string) int64 {
	if p, ok := pm.positions[stockCode]; ok {
		return p.Quantity
	}
	return 0
}

// HasBoughtOn 某只股票在指定交易日是否有买入成交
func (pm *PortfolioManager) HasBoughtOn(stockCode string, date time.Time) bool {
	p, ok := pm.positions[stockCode]
	return ok && SameTradeDate(p.LastBuyDate, date)
}

// PositionCount 当前持仓数量
func (pm *PortfolioManager) PositionCount() int {
	return len(pm.positions)
}

// PositionsValue 持仓总市值
func (pm *PortfolioManager) PositionsValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range pm.positions {
		total = total.Add(p.MarketValue)
	}
	return total
}

// TotalValue 总资产 = 现金 + 持仓市值
func (pm *PortfolioManager) TotalValue() decimal.Decimal {
	return pm.cash.Add(pm.PositionsValue())
}

// Positions 返回持仓副本（按代码升序遍历安全）
func (pm *PortfolioManager) Positions() map[string]Position {
	out := make(map[string]Position, len(pm.positions))
	for code, p := range pm.positions {
		out[code] = *p
	}
	return out
}

// Snapshots 返回日终快照历史（按日期有序）
func (pm *PortfolioManager) Snapshots() []*PortfolioSnapshot {
	return pm.snapshots
}

// UpdatePositionsValue 按当日快照重估全部持仓。
// 某只持仓股票当日无行情时，沿用最近一次市值（陈旧估值，不视为错误）。
func (pm *PortfolioManager) UpdatePositionsValue(snapshot *MarketSnapshot, date time.Time) {
	for _, p := range pm.positions {
		quote, ok := snapshot.Quote(p.StockCode)
		if !ok {
			continue
		}

		qty := decimal.NewFromInt(p.Quantity)
		p.MarketValue = quote.Close.Mul(qty)
		p.UnrealizedPnL = quote.Close.Sub(p.AvgCost).Mul(qty)
		if p.AvgCost.IsPositive() {
			p.UnrealizedPnLPct = quote.Close.Sub(p.AvgCost).Div(p.AvgCost).InexactFloat64()
		}
		p.LastUpdate = date
	}
}

// ProcessTrade 将一笔成交落入组合：
// 买入减少现金并新建/加权摊薄持仓；卖出增加现金并减少持仓，
// 数量归零时移除持仓（已平仓位不再需要均价）。
func (pm *PortfolioManager) ProcessTrade(trade *Trade) error {
	pm.cash = pm.cash.Add(trade.NetCashAmount)

	switch trade.Side {
	case OrderSideBuy:
		pm.applyBuy(trade)
	case OrderSideSell:
		return pm.applySell(trade)
	}
	return nil
}

func (pm *PortfolioManager) applyBuy(trade *Trade) {
	qty := decimal.NewFromInt(trade.Quantity)

	p, ok := pm.positions[trade.StockCode]
	if !ok {
		pm.positions[trade.StockCode] = &Position{
			StockCode:   trade.StockCode,
			Quantity:    trade.Quantity,
			AvgCost:     trade.Price,
			MarketValue: trade.Price.Mul(qty),
			EntryDate:   trade.TradeDate,
			LastBuyDate: trade.TradeDate,
			LastUpdate:  trade.TradeDate,
		}
		return
	}

	// 均价按成交价加权重算
	oldQty := decimal.NewFromInt(p.Quantity)
	newQty := oldQty.Add(qty)
	p.AvgCost = p.AvgCost.Mul(oldQty).Add(trade.Price.Mul(qty)).Div(newQty)
	p.Quantity += trade.Quantity
	p.MarketValue = trade.Price.Mul(decimal.NewFromInt(p.Quantity))
	p.LastBuyDate = trade.TradeDate
	p.LastUpdate = trade.TradeDate
}

func (pm *PortfolioManager) applySell(trade *Trade) error {
	p, ok := pm.positions[trade.StockCode]
	if !ok || p.Quantity < trade.Quantity {
		return fmt.Errorf("%w: %s", ErrInsufficientPosition, trade.StockCode)
	}

	p.Quantity -= trade.Quantity
	if p.Quantity == 0 {
		delete(pm.positions, trade.StockCode)
		return nil
	}

	// 卖出不改变均价
	p.MarketValue = trade.Price.Mul(decimal.NewFromInt(p.Quantity))
	p.LastUpdate = trade.TradeDate
	return nil
}

// CheckRiskControl 扫描全部持仓生成风控信号：
//   - 单票止损（high）/ 止盈（medium）；
//   - 组合回撤超限时对全部持仓发出 urgent 平仓信号。
//
// 回撤检查独立于单票检查，同一只股票可能同时触发两类信号。
// 信号仅为建议，不直接平仓。
func (pm *PortfolioManager) CheckRiskControl(date time.Time, snapshot *MarketSnapshot) []RiskSignal {
	var signals []RiskSignal

	codes := make([]string, 0, len(pm.positions))
	for code := range pm.positions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		p := pm.positions[code]

		price := p.currentPrice()
		if quote, ok := snapshot.Quote(code); ok {
			price = quote.Close
		}
		if !price.IsPositive() || !p.AvgCost.IsPositive() {
			continue
		}

		pnlRatio := price.Sub(p.AvgCost).Div(p.AvgCost).InexactFloat64()

		if pm.risk.StopLossPct > 0 && pnlRatio <= -pm.risk.StopLossPct {
			signals = append(signals, RiskSignal{
				StockCode: code,
				Action:    OrderSideSell,
				Quantity:  p.Quantity,
				Reason:    fmt.Sprintf("stop loss triggered: pnl %.2f%%", pnlRatio*100),
				Priority:  RiskPriorityHigh,
				PnLRatio:  pnlRatio,
			})
		} else if pm.risk.TakeProfitPct > 0 && pnlRatio >= pm.risk.TakeProfitPct {
			signals = append(signals, RiskSignal{
				StockCode: code,
				Action:    OrderSideSell,
				Quantity:  p.Quantity,
				Reason:    fmt.Sprintf("take profit triggered: pnl %.2f%%", pnlRatio*100),
				Priority:  RiskPriorityMedium,
				PnLRatio:  pnlRatio,
			})
		}
	}

	// 组合回撤独立评估，可能与单票信号叠加
	if pm.risk.MaxDrawdownLimit > 0 && pm.peakValue.IsPositive() {
		drawdown := pm.peakValue.Sub(pm.TotalValue()).Div(pm.peakValue).InexactFloat64()
		if drawdown >= pm.risk.MaxDrawdownLimit {
			for _, code := range codes {
				p := pm.positions[code]
				signals = append(signals, RiskSignal{
					StockCode: code,
					Action:    OrderSideSell,
					Quantity:  p.Quantity,
					Reason:    fmt.Sprintf("max drawdown breached: %.2f%%", drawdown*100),
					Priority:  RiskPriorityUrgent,
					PnLRatio:  p.UnrealizedPnLPct,
				})
			}
		}
	}

	return signals
}

// CalculatePositionSize 按信号强度计算开仓股数：
// 目标市值 = min(总资产×单票上限, 现金×0.95) × 信号强度，
// 向下取整到最小交易单位。持仓数已达上限或价格不可得/非正时返回 0。
func (pm *PortfolioManager) CalculatePositionSize(stockCode string, signalStrength float64, snapshot *MarketSnapshot) int64 {
	if pm.risk.MaxPositions > 0 && len(pm.positions) >= pm.risk.MaxPositions {
		return 0
	}

	quote, ok := snapshot.Quote(stockCode)
	if !ok || !quote.Close.IsPositive() {
		return 0
	}
	if signalStrength <= 0 {
		return 0
	}
	if signalStrength > 1 {
		signalStrength = 1
	}

	maxByPosition := pm.TotalValue().Mul(decimal.NewFromFloat(pm.risk.MaxSinglePositionPct))
	maxByCash := pm.cash.Mul(decimal.NewFromFloat(0.95))

	target := decimal.Min(maxByPosition, maxByCash).Mul(decimal.NewFromFloat(signalStrength))
	shares := target.Div(quote.Close).IntPart()

	return pm.rule.RoundToLot(shares)
}

// CreateSnapshot 创建日终快照并更新历史峰值。
// 快照创建后不可变，追加到按日期有序的历史列表。
func (pm *PortfolioManager) CreateSnapshot(date time.Time) *PortfolioSnapshot {
	total := pm.TotalValue()

	// 当日收益率：相对上一快照；首个快照相对初始资金
	prev := pm.initialCash
	if n := len(pm.snapshots); n > 0 {
		prev = pm.snapshots[n-1].TotalValue
	}
	dailyReturn := 0.0
	if prev.IsPositive() {
		dailyReturn = total.Sub(prev).Div(prev).InexactFloat64()
	}

	cumulativeReturn := total.Sub(pm.initialCash).Div(pm.initialCash).InexactFloat64()

	if total.GreaterThan(pm.peakValue) {
		pm.peakValue = total
	}
	drawdown := 0.0
	if pm.peakValue.IsPositive() {
		drawdown = pm.peakValue.Sub(total).Div(pm.peakValue).InexactFloat64()
	}

	snap := &PortfolioSnapshot{
		Date:             date,
		TotalValue:       total,
		Cash:             pm.cash,
		PositionsValue:   pm.PositionsValue(),
		PositionCount:    len(pm.positions),
		DailyReturn:      dailyReturn,
		CumulativeReturn: cumulativeReturn,
		Drawdown:         drawdown,
		Positions:        pm.Positions(),
	}

	pm.snapshots = append(pm.snapshots, snap)
	return snap
}
