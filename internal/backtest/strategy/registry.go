package strategy

import (
	"fmt"
	"strconv"

	"github.com/wyfcoding/asharebacktest/internal/backtest/domain"
)

// 内置策略名
const (
	NameMACross     = "ma_cross"
	NameRSIReversal = "rsi_reversal"
)

// Build 按名称构造内置策略，params 缺省时使用默认参数
func Build(name string, params map[string]string) (domain.Strategy, error) {
	switch name {
	case NameMACross:
		short := paramInt(params, "short_period", 5)
		long := paramInt(params, "long_period", 20)
		return NewMACrossStrategy(short, long)
	case NameRSIReversal:
		period := paramInt(params, "period", 14)
		oversold := paramFloat(params, "oversold", 30)
		overbought := paramFloat(params, "overbought", 70)
		return NewRSIReversalStrategy(period, oversold, overbought)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
}

// Names 全部内置策略名
func Names() []string {
	return []string{NameMACross, NameRSIReversal}
}

func paramInt(params map[string]string, key string, def int) int {
	if v, ok := params[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func paramFloat(params map[string]string, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
