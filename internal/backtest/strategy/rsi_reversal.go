package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/asharebacktest/internal/backtest/domain"
)

// RSIReversalStrategy RSI 超买超卖反转策略：
// RSI 跌破超卖线买入，升破超买线清仓。
type RSIReversalStrategy struct {
	period     int
	oversold   float64
	overbought float64

	indicators IndicatorLogic
	history    map[string][]float64
}

// NewRSIReversalStrategy 创建 RSI 反转策略
func NewRSIReversalStrategy(period int, oversold, overbought float64) (*RSIReversalStrategy, error) {
	if period <= 1 {
		return nil, fmt.Errorf("invalid rsi period: %d", period)
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("invalid rsi thresholds: oversold=%.1f overbought=%.1f", oversold, overbought)
	}
	return &RSIReversalStrategy{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		history:    make(map[string][]float64),
	}, nil
}

// Initialize 回测开始前重置内部状态
func (s *RSIReversalStrategy) Initialize(ctx context.Context, sctx *domain.StrategyContext) error {
	s.history = make(map[string][]float64, len(sctx.StockCodes))
	return nil
}

// GenerateSignals 追加当日收盘价并检测 RSI 超买超卖
func (s *RSIReversalStrategy) GenerateSignals(ctx context.Context, date time.Time, snapshot *domain.MarketSnapshot, view *domain.PortfolioView) ([]*domain.Signal, error) {
	var signals []*domain.Signal

	for _, code := range snapshot.Codes() {
		quote, ok := snapshot.Quote(code)
		if !ok {
			continue
		}
		s.history[code] = append(s.history[code], quote.Close.InexactFloat64())

		prices := s.history[code]
		if len(prices) < s.period+1 {
			continue
		}

		rsi := s.indicators.CalculateRSI(prices, s.period)
		_, held := view.Positions[code]

		switch {
		case rsi <= s.oversold && !held:
			signals = append(signals, &domain.Signal{
				Action:    domain.SignalActionBuy,
				StockCode: code,
				Reason:    fmt.Sprintf("rsi oversold: %.1f <= %.1f", rsi, s.oversold),
				Strength:  1,
			})
		case rsi >= s.overbought && held:
			signals = append(signals, &domain.Signal{
				Action:    domain.SignalActionSell,
				StockCode: code,
				Reason:    fmt.Sprintf("rsi overbought: %.1f >= %.1f", rsi, s.overbought),
				Strength:  1,
			})
		}
	}

	return signals, nil
}

// OnTradeExecuted 本策略不跟踪成交
func (s *RSIReversalStrategy) OnTradeExecuted(trade *domain.Trade) {}

// StrategyInfo 策略描述
func (s *RSIReversalStrategy) StrategyInfo() domain.StrategyInfo {
	return domain.StrategyInfo{
		Name:        "rsi_reversal",
		Description: "RSI 超买超卖反转策略",
		Params: map[string]string{
			"period":     fmt.Sprintf("%d", s.period),
			"oversold":   fmt.Sprintf("%.1f", s.oversold),
			"overbought": fmt.Sprintf("%.1f", s.overbought),
		},
	}
}
