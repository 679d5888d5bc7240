package domain

import (
	"github.com/shopspring/decimal"
)

// TradingSimulator 交易模拟器：基于交易规则计算订单执行成本，
// 并按涨跌停价带校验委托价。无内部状态。
type TradingSimulator struct {
	rule TradingRule
}

// NewTradingSimulator 创建交易模拟器
func NewTradingSimulator(rule TradingRule) *TradingSimulator {
	return &TradingSimulator{rule: rule}
}

// Rule 返回当前交易规则
func (s *TradingSimulator) Rule() TradingRule {
	return s.rule
}

// CalculateTradeCost 计算订单的执行成本
func (s *TradingSimulator) CalculateTradeCost(order *Order) TradeCost {
	return s.rule.CalculateTradeCost(order.Side, order.Price, order.Quantity)
}

// RequiredCash 买入订单需要冻结的资金：委托金额 + 全部执行成本。
// 按完整成本模型计算，保证校验通过的买单不会透支现金。
func (s *TradingSimulator) RequiredCash(order *Order) decimal.Decimal {
	cost := s.CalculateTradeCost(order)
	return order.Amount().Add(cost.TotalCost)
}

// ValidatePrice 校验委托价是否落在当日涨跌停价带内。
// 快照中缺少该股票的昨收价时返回 false：当日价带无从计算，订单不可执行。
func (s *TradingSimulator) ValidatePrice(stockCode string, price decimal.Decimal, snapshot *MarketSnapshot) bool {
	quote, ok := snapshot.Quote(stockCode)
	if !ok || !quote.PreClose.IsPositive() {
		return false
	}
	return s.rule.InLimitBand(price, quote.PreClose)
}

// BuildTrade 将已校验通过的订单转化为成交记录。
// 现金净流量带符号：买入为 -(金额+成本)，卖出为 +(金额-成本)。
func (s *TradingSimulator) BuildTrade(tradeID string, order *Order) *Trade {
	cost := s.CalculateTradeCost(order)
	amount := order.Amount()

	var netCash decimal.Decimal
	if order.Side == OrderSideBuy {
		netCash = amount.Add(cost.TotalCost).Neg()
	} else {
		netCash = amount.Sub(cost.TotalCost)
	}

	return &Trade{
		TradeID:       tradeID,
		OrderID:       order.OrderID,
		StockCode:     order.StockCode,
		Side:          order.Side,
		Quantity:      order.Quantity,
		Price:         order.Price,
		Commission:    cost.Commission,
		StampTax:      cost.StampTax,
		Slippage:      cost.Slippage,
		NetCashAmount: netCash,
		TradeDate:     order.TradeDate,
	}
}
