package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SignalAction 策略信号动作
type SignalAction string

const (
	SignalActionBuy  SignalAction = "BUY"
	SignalActionSell SignalAction = "SELL"
)

// Signal 策略产生的交易信号
type Signal struct {
	Action    SignalAction
	StockCode string
	// 股数。为 0 时由引擎按信号强度和仓位限制计算
	Quantity int64
	// 委托价。为零值时引擎使用当日收盘价
	Price decimal.Decimal
	// 信号原因（便于复盘）
	Reason string
	// 信号强度 (0, 1]，影响开仓市值
	Strength float64
}

// PortfolioView 传递给策略的组合只读信息
type PortfolioView struct {
	Cash          decimal.Decimal
	TotalValue    decimal.Decimal
	PositionCount int
	Positions     map[string]Position
}

// StrategyContext 策略初始化上下文
type StrategyContext struct {
	// 股票池
	StockCodes []string
	// 回测起止
	StartDate time.Time
	EndDate   time.Time
	// 初始资金
	InitialCash decimal.Decimal
}

// StrategyInfo 策略描述信息
type StrategyInfo struct {
	Name        string
	Description string
	Params      map[string]string
}

// Strategy 策略契约。引擎将其视为不透明协作者，
// 每个交易日同步调用一次 GenerateSignals，每笔成交回调一次 OnTradeExecuted。
// GenerateSignals 返回错误视为致命，整个回测以 FAILED 终止。
type Strategy interface {
	// Initialize 回测开始前调用一次
	Initialize(ctx context.Context, sctx *StrategyContext) error
	// GenerateSignals 基于当日快照与组合信息产生信号
	GenerateSignals(ctx context.Context, date time.Time, snapshot *MarketSnapshot, view *PortfolioView) ([]*Signal, error)
	// OnTradeExecuted 成交回调
	OnTradeExecuted(trade *Trade)
	// StrategyInfo 返回策略描述
	StrategyInfo() StrategyInfo
}
