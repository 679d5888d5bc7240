// Package domain 实现 A 股回测引擎的核心领域模型：
// 交易规则、订单生命周期、组合核算、日步进撮合循环与绩效分析。
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DailyQuote 单只股票单个交易日的行情记录（已归一化：股数、元）
type DailyQuote struct {
	StockCode string
	TradeDate time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	// 昨收价，涨跌停价带的基准
	PreClose decimal.Decimal
	// 成交量（股）
	Volume int64
	// 成交额（元）
	Amount decimal.Decimal
}

// Valid 校验必填字段。close 与 pre_close 缺失的记录在快照构造边界被拒绝，
// 不允许进入引擎内部。
func (q *DailyQuote) Valid() bool {
	return q != nil && q.Close.IsPositive() && q.PreClose.IsPositive()
}

// MarketSnapshot 某一交易日的市场快照：stock_code → 行情记录。
// 某只股票当日无记录时视为不在快照中，而不是价格为零。
type MarketSnapshot struct {
	Date   time.Time
	quotes map[string]*DailyQuote
}

// NewMarketSnapshot 构造快照，拒绝缺少 close/pre_close 的记录
func NewMarketSnapshot(date time.Time, quotes []*DailyQuote) (*MarketSnapshot, error) {
	m := make(map[string]*DailyQuote, len(quotes))
	for _, q := range quotes {
		if !q.Valid() {
			return nil, fmt.Errorf("%w: %s @ %s", ErrInvalidQuote, q.StockCode, date.Format(DateLayout))
		}
		m[q.StockCode] = q
	}
	return &MarketSnapshot{Date: date, quotes: m}, nil
}

// Quote 返回某只股票的行情记录
func (s *MarketSnapshot) Quote(stockCode string) (*DailyQuote, bool) {
	q, ok := s.quotes[stockCode]
	return q, ok
}

// Has 判断某只股票当日是否有行情
func (s *MarketSnapshot) Has(stockCode string) bool {
	_, ok := s.quotes[stockCode]
	return ok
}

// Codes 返回快照内的股票代码（升序）
func (s *MarketSnapshot) Codes() []string {
	codes := make([]string, 0, len(s.quotes))
	for code := range s.quotes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Size 快照内股票数量
func (s *MarketSnapshot) Size() int {
	return len(s.quotes)
}

// DateLayout 交易日的规范化格式
const DateLayout = "2006-01-02"

// DateKey 将时间归一化为交易日键
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// SameTradeDate 判断两个时间是否为同一交易日
func SameTradeDate(a, b time.Time) bool {
	return DateKey(a) == DateKey(b)
}

// MarketDataSet 回测加载完成后的全量行情：stock_code → 按日期升序的行情序列。
// 数据加载必须在日期循环开始前全部完成，循环过程中只读。
type MarketDataSet struct {
	bars   map[string][]*DailyQuote
	byDate map[string][]*DailyQuote
	dates  []time.Time
}

// NewMarketDataSet 构造行情集合并建立日期索引
func NewMarketDataSet(bars map[string][]*DailyQuote) *MarketDataSet {
	ds := &MarketDataSet{
		bars:   bars,
		byDate: make(map[string][]*DailyQuote),
	}

	seen := make(map[string]time.Time)
	for _, series := range bars {
		for _, q := range series {
			key := DateKey(q.TradeDate)
			ds.byDate[key] = append(ds.byDate[key], q)
			if _, ok := seen[key]; !ok {
				seen[key] = q.TradeDate
			}
		}
	}

	ds.dates = make([]time.Time, 0, len(seen))
	for _, d := range seen {
		ds.dates = append(ds.dates, d)
	}
	sort.Slice(ds.dates, func(i, j int) bool { return ds.dates[i].Before(ds.dates[j]) })

	return ds
}

// StockCount 行情集合内的股票数量
func (ds *MarketDataSet) StockCount() int {
	return len(ds.bars)
}

// TradingDates 全部交易日（升序，为所有个股日期的并集）
func (ds *MarketDataSet) TradingDates() []time.Time {
	return ds.dates
}

// SnapshotFor 构造某一交易日的市场快照
func (ds *MarketDataSet) SnapshotFor(date time.Time) (*MarketSnapshot, error) {
	return NewMarketSnapshot(date, ds.byDate[DateKey(date)])
}

// Bars 返回某只股票的全量行情序列
func (ds *MarketDataSet) Bars(stockCode string) []*DailyQuote {
	return ds.bars[stockCode]
}
