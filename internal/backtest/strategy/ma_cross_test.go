package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/asharebacktest/internal/backtest/domain"
)

func daySnapshot(t *testing.T, code string, day int, price float64) (time.Time, *domain.MarketSnapshot) {
	t.Helper()
	date := time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC)
	p := decimal.NewFromFloat(price)
	snap, err := domain.NewMarketSnapshot(date, []*domain.DailyQuote{{
		StockCode: code,
		TradeDate: date,
		Open:      p,
		High:      p,
		Low:       p,
		Close:     p,
		PreClose:  p,
	}})
	if err != nil {
		t.Fatalf("NewMarketSnapshot: %v", err)
	}
	return date, snap
}

func emptyView() *domain.PortfolioView {
	return &domain.PortfolioView{Positions: map[string]domain.Position{}}
}

func heldView(code string) *domain.PortfolioView {
	return &domain.PortfolioView{Positions: map[string]domain.Position{code: {StockCode: code}}}
}

func feed(t *testing.T, s domain.Strategy, code string, day int, price float64, view *domain.PortfolioView) []*domain.Signal {
	t.Helper()
	date, snap := daySnapshot(t, code, day, price)
	signals, err := s.GenerateSignals(context.Background(), date, snap, view)
	if err != nil {
		t.Fatalf("GenerateSignals: %v", err)
	}
	return signals
}

func TestNewMACrossStrategyValidatesPeriods(t *testing.T) {
	if _, err := NewMACrossStrategy(0, 20); err == nil {
		t.Error("expected error for zero short period")
	}
	if _, err := NewMACrossStrategy(20, 5); err == nil {
		t.Error("expected error for long <= short")
	}
}

func TestMACrossGoldenAndDeathCross(t *testing.T) {
	s, err := NewMACrossStrategy(2, 3)
	if err != nil {
		t.Fatalf("NewMACrossStrategy: %v", err)
	}
	if err := s.Initialize(context.Background(), &domain.StrategyContext{StockCodes: []string{"600519.SH"}}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// 预热：均线样本不足或首个均线差，不产生信号
	warmup := []struct {
		day   int
		price float64
	}{{3, 10}, {4, 9}, {5, 8}}
	for _, w := range warmup {
		if got := feed(t, s, "600519.SH", w.day, w.price, emptyView()); len(got) != 0 {
			t.Fatalf("day %d: expected no signals during warmup, got %d", w.day, len(got))
		}
	}

	// 价格反弹：短均线上穿长均线 → 金叉买入
	signals := feed(t, s, "600519.SH", 6, 12, emptyView())
	if len(signals) != 1 || signals[0].Action != domain.SignalActionBuy {
		t.Fatalf("expected 1 buy signal on golden cross, got %v", signals)
	}

	// 已持仓时继续上行不再重复买入
	if got := feed(t, s, "600519.SH", 9, 13, heldView("600519.SH")); len(got) != 0 {
		t.Fatalf("expected no signal without new cross, got %d", len(got))
	}

	// 深跌：短均线下穿长均线 → 死叉卖出
	signals = feed(t, s, "600519.SH", 10, 5, heldView("600519.SH"))
	if len(signals) != 1 || signals[0].Action != domain.SignalActionSell {
		t.Fatalf("expected 1 sell signal on death cross, got %v", signals)
	}
}

func TestMACrossNoBuyWhenAlreadyHeld(t *testing.T) {
	s, _ := NewMACrossStrategy(2, 3)
	s.Initialize(context.Background(), &domain.StrategyContext{})

	feed(t, s, "600519.SH", 3, 10, heldView("600519.SH"))
	feed(t, s, "600519.SH", 4, 9, heldView("600519.SH"))
	feed(t, s, "600519.SH", 5, 8, heldView("600519.SH"))

	// 金叉但已持仓：不重复开仓
	if got := feed(t, s, "600519.SH", 6, 12, heldView("600519.SH")); len(got) != 0 {
		t.Fatalf("expected no buy when already held, got %d", len(got))
	}
}
