package domain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// 费率便于手算：佣金千三无滑点，印花税千一
func scenarioRule(t *testing.T) TradingRule {
	t.Helper()
	return mustRule(t, 0.003, 0.001, 5, 0)
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	rule := scenarioRule(t)
	pm := portfolioOf(t, 1000000, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	if _, err := om.CreateOrder("600519.SH", OrderSideBuy, 150, decimal.NewFromInt(10), td("2023-01-03")); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("odd lot: err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := om.CreateOrder("600519.SH", OrderSideBuy, 0, decimal.NewFromInt(10), td("2023-01-03")); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("zero quantity: err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := om.CreateOrder("600519.SH", OrderSideBuy, 100, decimal.Zero, td("2023-01-03")); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero price: err = %v, want ErrInvalidPrice", err)
	}
	if len(om.Orders()) != 0 {
		t.Errorf("invalid orders must not be recorded, got %d", len(om.Orders()))
	}
}

// 买入 → 当日卖出被拒（T+1）→ 次日卖出成交的完整流水
func TestBuyThenSellAcrossDays(t *testing.T) {
	ctx := context.Background()
	rule := scenarioRule(t)
	pm := portfolioOf(t, 1000000, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	day1 := snapshotOf(t, "2023-01-03", quoteOf("600519.SH", "2023-01-03", 10, 10))

	// 买入 1000 股 @10：金额 10000，佣金 30
	buy, err := om.CreateOrder("600519.SH", OrderSideBuy, 1000, decimal.NewFromInt(10), td("2023-01-03"))
	if err != nil {
		t.Fatalf("create buy order: %v", err)
	}

	trades := om.ExecutePendingOrders(ctx, day1, td("2023-01-03"))
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if buy.Status != OrderStatusExecuted {
		t.Errorf("buy order status = %s, want EXECUTED", buy.Status)
	}
	decEq(t, trades[0].NetCashAmount, "-10030", "buy net cash")

	if err := pm.ProcessTrade(trades[0]); err != nil {
		t.Fatalf("process buy trade: %v", err)
	}
	decEq(t, pm.AvailableCash(), "989970", "cash after buy")
	if got := pm.PositionQuantity("600519.SH"); got != 1000 {
		t.Errorf("position = %d, want 1000", got)
	}

	// 当日卖出违反 T+1
	sameDay, err := om.CreateOrder("600519.SH", OrderSideSell, 1000, decimal.NewFromInt(10), td("2023-01-03"))
	if err != nil {
		t.Fatalf("create same-day sell order: %v", err)
	}
	if got := om.ExecutePendingOrders(ctx, day1, td("2023-01-03")); len(got) != 0 {
		t.Fatalf("same-day sell must not execute, got %d trades", len(got))
	}
	if sameDay.Status != OrderStatusRejected {
		t.Errorf("same-day sell status = %s, want REJECTED", sameDay.Status)
	}
	if !strings.Contains(sameDay.RejectReason, ErrSameDaySell.Error()) {
		t.Errorf("reject reason %q does not mention same-day rule", sameDay.RejectReason)
	}

	// 次日卖出 @11：金额 11000，佣金 33，印花税 11，净回款 10956
	day2 := snapshotOf(t, "2023-01-04", quoteOf("600519.SH", "2023-01-04", 11, 10))
	if _, err := om.CreateOrder("600519.SH", OrderSideSell, 1000, decimal.NewFromInt(11), td("2023-01-04")); err != nil {
		t.Fatalf("create sell order: %v", err)
	}
	sellTrades := om.ExecutePendingOrders(ctx, day2, td("2023-01-04"))
	if len(sellTrades) != 1 {
		t.Fatalf("expected 1 sell trade, got %d", len(sellTrades))
	}
	decEq(t, sellTrades[0].Commission, "33", "sell commission")
	decEq(t, sellTrades[0].StampTax, "11", "sell stamp tax")
	decEq(t, sellTrades[0].NetCashAmount, "10956", "sell net cash")

	if err := pm.ProcessTrade(sellTrades[0]); err != nil {
		t.Fatalf("process sell trade: %v", err)
	}
	decEq(t, pm.AvailableCash(), "1000926", "cash after round trip")
	if got := pm.PositionQuantity("600519.SH"); got != 0 {
		t.Errorf("position after full sell = %d, want 0", got)
	}
}

func TestBuyRejectedWhenFundsInsufficient(t *testing.T) {
	ctx := context.Background()
	rule := scenarioRule(t)
	// 现金刚好不够金额+佣金
	pm := portfolioOf(t, 10029, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	snap := snapshotOf(t, "2023-01-03", quoteOf("600519.SH", "2023-01-03", 10, 10))
	order, err := om.CreateOrder("600519.SH", OrderSideBuy, 1000, decimal.NewFromInt(10), td("2023-01-03"))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if got := om.ExecutePendingOrders(ctx, snap, td("2023-01-03")); len(got) != 0 {
		t.Fatalf("underfunded buy must not execute")
	}
	if order.Status != OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", order.Status)
	}
	decEq(t, pm.AvailableCash(), "10029", "cash untouched after rejection")
}

func TestSellRejectedWithoutPosition(t *testing.T) {
	ctx := context.Background()
	rule := scenarioRule(t)
	pm := portfolioOf(t, 1000000, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	snap := snapshotOf(t, "2023-01-03", quoteOf("600519.SH", "2023-01-03", 10, 10))
	order, _ := om.CreateOrder("600519.SH", OrderSideSell, 100, decimal.NewFromInt(10), td("2023-01-03"))

	om.ExecutePendingOrders(ctx, snap, td("2023-01-03"))
	if order.Status != OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", order.Status)
	}
	if !strings.Contains(order.RejectReason, ErrInsufficientPosition.Error()) {
		t.Errorf("reject reason %q does not mention insufficient position", order.RejectReason)
	}
}

func TestPriceOutsideLimitBandRejected(t *testing.T) {
	ctx := context.Background()
	rule := scenarioRule(t)
	pm := portfolioOf(t, 1000000, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	// 昨收 10，价带 [9, 11]
	snap := snapshotOf(t, "2023-01-03", quoteOf("600519.SH", "2023-01-03", 10, 10))

	atLimit, _ := om.CreateOrder("600519.SH", OrderSideBuy, 100, decimal.NewFromFloat(11.00), td("2023-01-03"))
	overLimit, _ := om.CreateOrder("600519.SH", OrderSideBuy, 100, decimal.NewFromFloat(11.01), td("2023-01-03"))

	trades := om.ExecutePendingOrders(ctx, snap, td("2023-01-03"))
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade (limit price), got %d", len(trades))
	}
	if atLimit.Status != OrderStatusExecuted {
		t.Errorf("order at limit price = %s, want EXECUTED", atLimit.Status)
	}
	if overLimit.Status != OrderStatusRejected {
		t.Errorf("order above limit = %s, want REJECTED", overLimit.Status)
	}
	if !strings.Contains(overLimit.RejectReason, ErrPriceOutOfBand.Error()) {
		t.Errorf("reject reason %q does not mention price band", overLimit.RejectReason)
	}
}

func TestOrderForStockAbsentFromSnapshotRejected(t *testing.T) {
	ctx := context.Background()
	rule := scenarioRule(t)
	pm := portfolioOf(t, 1000000, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	snap := snapshotOf(t, "2023-01-03", quoteOf("600519.SH", "2023-01-03", 10, 10))
	order, _ := om.CreateOrder("000001.SZ", OrderSideBuy, 100, decimal.NewFromInt(10), td("2023-01-03"))

	om.ExecutePendingOrders(ctx, snap, td("2023-01-03"))
	if order.Status != OrderStatusRejected {
		t.Errorf("status = %s, want REJECTED", order.Status)
	}
	if !strings.Contains(order.RejectReason, ErrMissingPreClose.Error()) {
		t.Errorf("reject reason %q does not mention missing pre-close", order.RejectReason)
	}
}

// 单笔拒单不影响其他订单
func TestRejectionIsIndependent(t *testing.T) {
	ctx := context.Background()
	rule := scenarioRule(t)
	pm := portfolioOf(t, 1000000, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	snap := snapshotOf(t, "2023-01-03",
		quoteOf("600519.SH", "2023-01-03", 10, 10),
		quoteOf("000001.SZ", "2023-01-03", 20, 20),
	)

	bad, _ := om.CreateOrder("600519.SH", OrderSideBuy, 100, decimal.NewFromFloat(11.50), td("2023-01-03"))
	good, _ := om.CreateOrder("000001.SZ", OrderSideBuy, 100, decimal.NewFromInt(20), td("2023-01-03"))

	trades := om.ExecutePendingOrders(ctx, snap, td("2023-01-03"))
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if bad.Status != OrderStatusRejected || good.Status != OrderStatusExecuted {
		t.Errorf("bad = %s, good = %s; want REJECTED / EXECUTED", bad.Status, good.Status)
	}
	if om.RejectedCount() != 1 {
		t.Errorf("rejected count = %d, want 1", om.RejectedCount())
	}
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	rule := scenarioRule(t)
	pm := portfolioOf(t, 1000000, RiskConfig{}, rule)
	om := NewOrderManager(NewTradingSimulator(rule), pm)

	order, _ := om.CreateOrder("600519.SH", OrderSideBuy, 100, decimal.NewFromInt(10), td("2023-01-03"))
	if err := om.CancelOrder(order.OrderID); err != nil {
		t.Fatalf("cancel pending order: %v", err)
	}
	if order.Status != OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", order.Status)
	}

	// 已取消的订单不再执行
	snap := snapshotOf(t, "2023-01-03", quoteOf("600519.SH", "2023-01-03", 10, 10))
	if got := om.ExecutePendingOrders(ctx, snap, td("2023-01-03")); len(got) != 0 {
		t.Errorf("cancelled order must not execute")
	}

	if err := om.CancelOrder(order.OrderID); !errors.Is(err, ErrOrderNotPending) {
		t.Errorf("cancel terminal order: err = %v, want ErrOrderNotPending", err)
	}
	if err := om.CancelOrder("ORD-missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("cancel unknown order: err = %v, want ErrOrderNotFound", err)
	}
}

// 并发运行的回测各自持有订单管理器，订单号仍须全局唯一
func TestOrderIDsUniqueAcrossConcurrentManagers(t *testing.T) {
	const perManager = 2000
	rule := scenarioRule(t)

	newManager := func() *OrderManager {
		pm := portfolioOf(t, 1e12, RiskConfig{}, rule)
		return NewOrderManager(NewTradingSimulator(rule), pm)
	}

	ids := make([][]string, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		om := newManager()
		wg.Add(1)
		go func(i int, om *OrderManager) {
			defer wg.Done()
			out := make([]string, 0, perManager)
			for j := 0; j < perManager; j++ {
				order, err := om.CreateOrder("600519.SH", OrderSideBuy, 100, decimal.NewFromInt(10), td("2023-01-03"))
				if err != nil {
					t.Errorf("create order: %v", err)
					return
				}
				out = append(out, order.OrderID)
			}
			ids[i] = out
		}(i, om)
	}
	wg.Wait()

	seen := make(map[string]bool, 2*perManager)
	for _, batch := range ids {
		for _, id := range batch {
			if seen[id] {
				t.Fatalf("duplicate order ID across managers: %s", id)
			}
			seen[id] = true
		}
	}
}
