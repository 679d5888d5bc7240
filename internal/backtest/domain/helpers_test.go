package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func td(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func quoteOf(code, date string, closePrice, preClose float64) *DailyQuote {
	c := decimal.NewFromFloat(closePrice)
	return &DailyQuote{
		StockCode: code,
		TradeDate: td(date),
		Open:      c,
		High:      c,
		Low:       c,
		Close:     c,
		PreClose:  decimal.NewFromFloat(preClose),
		Volume:    1000000,
		Amount:    c.Mul(decimal.NewFromInt(1000000)),
	}
}

func snapshotOf(t *testing.T, date string, quotes ...*DailyQuote) *MarketSnapshot {
	t.Helper()
	snap, err := NewMarketSnapshot(td(date), quotes)
	if err != nil {
		t.Fatalf("NewMarketSnapshot: %v", err)
	}
	return snap
}

func portfolioOf(t *testing.T, initialCash float64, risk RiskConfig, rule TradingRule) *PortfolioManager {
	t.Helper()
	pm, err := NewPortfolioManager(decimal.NewFromFloat(initialCash), risk, rule)
	if err != nil {
		t.Fatalf("NewPortfolioManager: %v", err)
	}
	return pm
}

func decEq(t *testing.T, got decimal.Decimal, want string, label string) {
	t.Helper()
	w, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("bad expected value %q: %v", want, err)
	}
	if !got.Equal(w) {
		t.Errorf("%s = %s, want %s", label, got, want)
	}
}
