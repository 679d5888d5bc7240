// Package domain 定义行情数据的领域模型与仓储契约。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DailyBar 单只股票的日线行情。
// Volume 单位为手（1 手 = 100 股），Amount 可能以千元计，
// 由应用层按数据源配置统一归一化。
type DailyBar struct {
	StockCode string
	TradeDate time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	PreClose  decimal.Decimal
	// 成交量（手）
	Volume int64
	// 成交额
	Amount decimal.Decimal
}

// IndexConstituent 指数成分股
type IndexConstituent struct {
	IndexCode string
	StockCode string
	// 成分权重（百分比）
	Weight float64
	// 纳入日期
	TradeDate time.Time
}

// MarketDataRepository 行情仓储接口。
// GetConstituents 按纳入日期降序返回，便于应用层取最新一期成分。
type MarketDataRepository interface {
	GetConstituents(ctx context.Context, indexCode string) ([]*IndexConstituent, error)
	GetDailyBars(ctx context.Context, stockCode string, start, end time.Time) ([]*DailyBar, error)
	GetIndexDailyBars(ctx context.Context, indexCode string, start, end time.Time) ([]*DailyBar, error)
}
