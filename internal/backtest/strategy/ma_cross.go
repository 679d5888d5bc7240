package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/asharebacktest/internal/backtest/domain"
)

// MACrossStrategy 双均线交叉策略：
// 短期均线上穿长期均线（金叉）买入，下穿（死叉）清仓。
// 价格历史按交易日滚动维护，均线样本不足时不产生信号。
type MACrossStrategy struct {
	shortPeriod int
	longPeriod  int

	indicators IndicatorLogic
	// 各股票的收盘价历史，按日追加
	history map[string][]float64
	// 上一交易日的均线差（短-长），用于判定穿越
	prevDiff map[string]float64
}

// NewMACrossStrategy 创建双均线策略
func NewMACrossStrategy(shortPeriod, longPeriod int) (*MACrossStrategy, error) {
	if shortPeriod <= 0 || longPeriod <= shortPeriod {
		return nil, fmt.Errorf("invalid ma periods: short=%d long=%d", shortPeriod, longPeriod)
	}
	return &MACrossStrategy{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		history:     make(map[string][]float64),
		prevDiff:    make(map[string]float64),
	}, nil
}

// Initialize 回测开始前重置内部状态
func (s *MACrossStrategy) Initialize(ctx context.Context, sctx *domain.StrategyContext) error {
	s.history = make(map[string][]float64, len(sctx.StockCodes))
	s.prevDiff = make(map[string]float64, len(sctx.StockCodes))
	return nil
}

// GenerateSignals 追加当日收盘价并检测均线穿越
func (s *MACrossStrategy) GenerateSignals(ctx context.Context, date time.Time, snapshot *domain.MarketSnapshot, view *domain.PortfolioView) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for _, code := range snapshot.Codes() {
		quote, ok := snapshot.Quote(code)
		if !ok {
			continue
		}
		s.history[code] = append(s.history[code], quote.Close.InexactFloat64())

		prices := s.history[code]
		if len(prices) < s.longPeriod {
			continue
		}

		shortMA := s.indicators.CalculateSMA(prices, s.shortPeriod)
		longMA := s.indicators.CalculateSMA(prices, s.longPeriod)
		diff := shortMA - longMA

		prev, seen := s.prevDiff[code]
		s.prevDiff[code] = diff
		if !seen {
			continue
		}

		_, held := view.Positions[code]
		switch {
		case prev <= 0 && diff > 0 && !held:
			signals = append(signals, &domain.Signal{
				Action:    domain.SignalActionBuy,
				StockCode: code,
				Reason:    fmt.Sprintf("golden cross: ma%d %.2f > ma%d %.2f", s.shortPeriod, shortMA, s.longPeriod, longMA),
				Strength:  1,
			})
		case prev >= 0 && diff < 0 && held:
			signals = append(signals, &domain.Signal{
				Action:    domain.SignalActionSell,
				StockCode: code,
				Reason:    fmt.Sprintf("death cross: ma%d %.2f < ma%d %.2f", s.shortPeriod, shortMA, s.longPeriod, longMA),
				Strength:  1,
			})
		}
	}

	return signals, nil
}

// OnTradeExecuted 本策略不跟踪成交
func (s *MACrossStrategy) OnTradeExecuted(trade *domain.Trade) {}

// StrategyInfo 策略描述
func (s *MACrossStrategy) StrategyInfo() domain.StrategyInfo {
	return domain.StrategyInfo{
		Name:        "ma_cross",
		Description: "双均线交叉策略，金叉买入死叉卖出",
		Params: map[string]string{
			"short_period": fmt.Sprintf("%d", s.shortPeriod),
			"long_period":  fmt.Sprintf("%d", s.longPeriod),
		},
	}
}
