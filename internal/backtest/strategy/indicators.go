// Package strategy 提供内置回测策略与技术指标计算。
package strategy

// IndicatorLogic 纯指标计算逻辑，无状态
type IndicatorLogic struct{}

// CalculateSMA 简单移动平均。样本不足时返回 0。
func (l *IndicatorLogic) CalculateSMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	sum := 0.0
	subset := prices[len(prices)-period:]
	for _, p := range subset {
		sum += p
	}
	return sum / float64(period)
}

// CalculateRSI 相对强弱指标（简化算法，等权平均涨跌幅）。
// 样本不足时返回 0；区间内无下跌时返回 100。
func (l *IndicatorLogic) CalculateRSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 0
	}
	gains := 0.0
	losses := 0.0

	subset := prices[len(prices)-period-1:]
	for i := 1; i < len(subset); i++ {
		change := subset[i] - subset[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
