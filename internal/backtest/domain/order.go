package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态，单向流转：PENDING → EXECUTED | REJECTED | CANCELLED
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal 是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusExecuted || s == OrderStatusRejected || s == OrderStatusCancelled
}

// OrderSide 买卖方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Order 回测中的模拟订单。
// 每个订单在执行前恰好被校验一次；校验失败直接进入 REJECTED，
// 校验通过则全量按委托价成交（不拆单、不部分成交）。
type Order struct {
	// 订单 ID
	OrderID string
	// 股票代码
	StockCode string
	// 买卖方向
	Side OrderSide
	// 数量（股），必须为最小交易单位的正整数倍
	Quantity int64
	// 委托价
	Price decimal.Decimal
	// 订单状态
	Status OrderStatus
	// 拒单原因（仅 REJECTED 时有值）
	RejectReason string
	// 创建时间
	CreatedAt time.Time
	// 所属交易日
	TradeDate time.Time
}

// Amount 委托金额 = 价格 × 数量
func (o *Order) Amount() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Quantity))
}

// markExecuted 标记订单成交
func (o *Order) markExecuted() {
	o.Status = OrderStatusExecuted
}

// markRejected 标记订单被拒并记录原因
func (o *Order) markRejected(reason string) {
	o.Status = OrderStatusRejected
	o.RejectReason = reason
}

// Trade 成交记录，由一笔 EXECUTED 订单派生，创建后不可变
type Trade struct {
	// 成交 ID
	TradeID string
	// 来源订单 ID
	OrderID string
	// 股票代码
	StockCode string
	// 买卖方向
	Side OrderSide
	// 成交数量（股）
	Quantity int64
	// 成交价
	Price decimal.Decimal
	// 佣金
	Commission decimal.Decimal
	// 印花税
	StampTax decimal.Decimal
	// 滑点成本
	Slippage decimal.Decimal
	// 现金净流量（含成本）：买入为负，卖出为正
	NetCashAmount decimal.Decimal
	// 成交日期
	TradeDate time.Time
}

// Amount 成交金额（不含成本）
func (t *Trade) Amount() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
