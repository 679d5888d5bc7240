package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradingRule A 股交易规则（不可变配置）：
// 双边佣金、仅卖出印花税、滑点、最小交易单位与日涨跌幅限制。
// 所有费率在构造时一次性校验。
type TradingRule struct {
	// 佣金费率（买卖双边）
	CommissionRate decimal.Decimal
	// 印花税率（仅卖出）
	StampTaxRate decimal.Decimal
	// 最低佣金（元）
	MinCommission decimal.Decimal
	// 滑点率
	SlippageRate decimal.Decimal
	// 最小交易单位（股），A 股一手 100 股
	MinTradeUnit int64
	// 最小报价单位
	PriceTick decimal.Decimal
	// 日涨跌幅限制（如 0.10 表示 ±10%）
	DailyLimitPct decimal.Decimal
}

// NewTradingRule 构造交易规则并校验参数
func NewTradingRule(commissionRate, stampTaxRate, minCommission, slippageRate float64, minTradeUnit int64, priceTick, dailyLimitPct float64) (TradingRule, error) {
	r := TradingRule{
		CommissionRate: decimal.NewFromFloat(commissionRate),
		StampTaxRate:   decimal.NewFromFloat(stampTaxRate),
		MinCommission:  decimal.NewFromFloat(minCommission),
		SlippageRate:   decimal.NewFromFloat(slippageRate),
		MinTradeUnit:   minTradeUnit,
		PriceTick:      decimal.NewFromFloat(priceTick),
		DailyLimitPct:  decimal.NewFromFloat(dailyLimitPct),
	}

	if r.CommissionRate.IsNegative() || r.StampTaxRate.IsNegative() ||
		r.MinCommission.IsNegative() || r.SlippageRate.IsNegative() {
		return TradingRule{}, fmt.Errorf("%w: rates must be non-negative", ErrInvalidRule)
	}
	if r.MinTradeUnit <= 0 {
		return TradingRule{}, fmt.Errorf("%w: min trade unit must be positive", ErrInvalidRule)
	}
	if !r.DailyLimitPct.IsPositive() {
		return TradingRule{}, fmt.Errorf("%w: daily limit pct must be positive", ErrInvalidRule)
	}

	return r, nil
}

// DefaultTradingRule A 股默认交易规则：
// 佣金万三（最低 5 元）、印花税千一、滑点千一、一手 100 股、±10% 涨跌停
func DefaultTradingRule() TradingRule {
	rule, _ := NewTradingRule(0.0003, 0.001, 5, 0.001, 100, 0.01, 0.10)
	return rule
}

// TradeCost 一笔订单的执行成本拆分
type TradeCost struct {
	// 佣金，max(金额×费率, 最低佣金)
	Commission decimal.Decimal
	// 印花税，仅卖出
	StampTax decimal.Decimal
	// 滑点成本
	Slippage decimal.Decimal
	// 总成本 = 佣金 + 印花税 + 滑点
	TotalCost decimal.Decimal
}

// CalculateTradeCost 计算成交成本。纯函数，无副作用。
// 佣金双边收取并有最低值兜底；印花税仅对卖出收取；滑点计入总成本。
func (r TradingRule) CalculateTradeCost(side OrderSide, price decimal.Decimal, quantity int64) TradeCost {
	amount := price.Mul(decimal.NewFromInt(quantity))

	commission := decimal.Max(amount.Mul(r.CommissionRate), r.MinCommission)

	stampTax := decimal.Zero
	if side == OrderSideSell {
		stampTax = amount.Mul(r.StampTaxRate)
	}

	slippage := amount.Mul(r.SlippageRate)

	return TradeCost{
		Commission: commission,
		StampTax:   stampTax,
		Slippage:   slippage,
		TotalCost:  commission.Add(stampTax).Add(slippage),
	}
}

// LimitBand 基于昨收价计算当日涨跌停价带 [下限, 上限]
func (r TradingRule) LimitBand(preClose decimal.Decimal) (lower, upper decimal.Decimal) {
	one := decimal.NewFromInt(1)
	lower = preClose.Mul(one.Sub(r.DailyLimitPct))
	upper = preClose.Mul(one.Add(r.DailyLimitPct))
	return lower, upper
}

// InLimitBand 判断价格是否落在价带内（边界价有效）
func (r TradingRule) InLimitBand(price, preClose decimal.Decimal) bool {
	lower, upper := r.LimitBand(preClose)
	return price.GreaterThanOrEqual(lower) && price.LessThanOrEqual(upper)
}

// IsValidQuantity 判断数量是否为最小交易单位的正整数倍
func (r TradingRule) IsValidQuantity(quantity int64) bool {
	return quantity > 0 && quantity%r.MinTradeUnit == 0
}

// RoundToLot 将股数向下取整到最小交易单位的整数倍
func (r TradingRule) RoundToLot(quantity int64) int64 {
	if quantity <= 0 {
		return 0
	}
	return quantity / r.MinTradeUnit * r.MinTradeUnit
}
