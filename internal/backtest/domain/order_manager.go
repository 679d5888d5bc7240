package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/asharebacktest/pkg/logger"
	"github.com/wyfcoding/asharebacktest/pkg/utils"
)

// PortfolioReader 订单校验所需的组合只读视图。
// OrderManager 只读组合状态，变更始终由引擎通过 PortfolioManager 完成。
type PortfolioReader interface {
	// AvailableCash 可用资金
	AvailableCash() decimal.Decimal
	// PositionQuantity 某只股票的持仓数量，未持仓返回 0
	PositionQuantity(stockCode string) int64
	// HasBoughtOn 某只股票在指定交易日是否有买入成交（T+1 校验依据）
	HasBoughtOn(stockCode string, date time.Time) bool
}

// 进程内共享的 ID 生成器：并发运行的回测各自持有订单管理器，
// 订单号与成交号落库时有唯一索引，必须全局唯一。
var orderIDGen = utils.NewSnowflakeID(1)

// OrderManager 订单管理器：负责订单创建、校验与按日执行。
// 订单状态机：PENDING →(校验)→ EXECUTED | REJECTED；
// 每笔 EXECUTED 订单恰好产生一笔 Trade。
type OrderManager struct {
	sim       *TradingSimulator
	portfolio PortfolioReader
	idgen     *utils.SnowflakeID

	// 全部订单，插入序
	orders []*Order
	byID   map[string]*Order
}

// NewOrderManager 创建订单管理器
func NewOrderManager(sim *TradingSimulator, portfolio PortfolioReader) *OrderManager {
	return &OrderManager{
		sim:       sim,
		portfolio: portfolio,
		idgen:     orderIDGen,
		byID:      make(map[string]*Order),
	}
}

// CreateOrder 创建订单。数量必须为最小交易单位的正整数倍，
// 否则在创建阶段即失败，订单不会进入 PENDING。
func (m *OrderManager) CreateOrder(stockCode string, side OrderSide, quantity int64, price decimal.Decimal, tradeDate time.Time) (*Order, error) {
	if !m.sim.Rule().IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: %d (min trade unit %d)", ErrInvalidQuantity, quantity, m.sim.Rule().MinTradeUnit)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}

	order := &Order{
		OrderID:   fmt.Sprintf("ORD-%d", m.idgen.Generate()),
		StockCode: stockCode,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Status:    OrderStatusPending,
		CreatedAt: time.Now(),
		TradeDate: tradeDate,
	}

	m.orders = append(m.orders, order)
	m.byID[order.OrderID] = order
	return order, nil
}

// CancelOrder 取消 PENDING 订单。终态订单不可回退。
func (m *OrderManager) CancelOrder(orderID string) error {
	order, ok := m.byID[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Status != OrderStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrOrderNotPending, orderID, order.Status)
	}
	order.Status = OrderStatusCancelled
	return nil
}

// validateOrder 执行前校验，每笔订单恰好校验一次：
//   - 买入：所需资金（委托金额 + 完整成本）不得超过可用资金；
//   - 卖出：持仓数量充足，且遵守 T+1 —— 当日买入的股票当日不可卖出；
//   - 双边：委托价必须落在当日涨跌停价带内（昨收缺失视为价带校验失败）。
func (m *OrderManager) validateOrder(order *Order, snapshot *MarketSnapshot) error {
	switch order.Side {
	case OrderSideBuy:
		required := m.sim.RequiredCash(order)
		if required.GreaterThan(m.portfolio.AvailableCash()) {
			return fmt.Errorf("%w: required %s, available %s",
				ErrInsufficientFunds, required, m.portfolio.AvailableCash())
		}
	case OrderSideSell:
		held := m.portfolio.PositionQuantity(order.StockCode)
		if held < order.Quantity {
			return fmt.Errorf("%w: held %d, selling %d", ErrInsufficientPosition, held, order.Quantity)
		}
		if m.portfolio.HasBoughtOn(order.StockCode, order.TradeDate) {
			return fmt.Errorf("%w: %s bought on %s", ErrSameDaySell, order.StockCode, DateKey(order.TradeDate))
		}
	}

	quote, ok := snapshot.Quote(order.StockCode)
	if !ok || !quote.PreClose.IsPositive() {
		return fmt.Errorf("%w: %s", ErrMissingPreClose, order.StockCode)
	}
	if !m.sim.Rule().InLimitBand(order.Price, quote.PreClose) {
		lower, upper := m.sim.Rule().LimitBand(quote.PreClose)
		return fmt.Errorf("%w: price %s outside [%s, %s]", ErrPriceOutOfBand, order.Price, lower, upper)
	}

	return nil
}

// ExecutePendingOrders 执行指定交易日的全部 PENDING 订单。
// 按插入序独立校验，单笔拒单不影响其他订单；
// 校验通过的订单按委托价全量成交，否则标记 REJECTED。
func (m *OrderManager) ExecutePendingOrders(ctx context.Context, snapshot *MarketSnapshot, tradeDate time.Time) []*Trade {
	var trades []*Trade

	for _, order := range m.orders {
		if order.Status != OrderStatusPending || !SameTradeDate(order.TradeDate, tradeDate) {
			continue
		}

		if err := m.validateOrder(order, snapshot); err != nil {
			order.markRejected(err.Error())
			logger.Debug(ctx, "Order rejected",
				"order_id", order.OrderID,
				"stock_code", order.StockCode,
				"side", order.Side,
				"reason", err.Error(),
			)
			continue
		}

		trade := m.sim.BuildTrade(fmt.Sprintf("TRD-%d", m.idgen.Generate()), order)
		order.markExecuted()
		trades = append(trades, trade)

		logger.Debug(ctx, "Order executed",
			"order_id", order.OrderID,
			"trade_id", trade.TradeID,
			"stock_code", order.StockCode,
			"side", order.Side,
			"quantity", order.Quantity,
			"price", order.Price.String(),
		)
	}

	return trades
}

// Orders 返回全部订单（插入序）
func (m *OrderManager) Orders() []*Order {
	return m.orders
}

// RejectedCount 统计被拒订单数
func (m *OrderManager) RejectedCount() int {
	n := 0
	for _, o := range m.orders {
		if o.Status == OrderStatusRejected {
			n++
		}
	}
	return n
}
