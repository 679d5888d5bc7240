// Package application 实现行情数据的加载与清洗服务。
package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/asharebacktest/internal/marketdata/domain"
	"github.com/wyfcoding/asharebacktest/pkg/config"
	"github.com/wyfcoding/asharebacktest/pkg/logger"
)

// 单位换算：1 手 = 100 股；千元转元
var (
	sharesPerLot   = int64(100)
	thousandFactor = decimal.NewFromInt(1000)
)

// DataManager 行情数据管理器：从仓储加载指数成分与日线行情，
// 做单位归一化和质量过滤后交给回测引擎。
type DataManager struct {
	repo domain.MarketDataRepository
	cfg  config.DataConfig
}

// NewDataManager 创建行情数据管理器
func NewDataManager(repo domain.MarketDataRepository, cfg config.DataConfig) *DataManager {
	return &DataManager{repo: repo, cfg: cfg}
}

// LoadStockUniverse 加载股票池：取指数最新一期成分股，去重后按代码排序。
// 成分记录按纳入日期降序返回，遇到日期变化即停止，只保留最新一期。
func (m *DataManager) LoadStockUniverse(ctx context.Context) ([]string, error) {
	constituents, err := m.repo.GetConstituents(ctx, m.cfg.IndexCode)
	if err != nil {
		return nil, fmt.Errorf("load constituents of %s: %w", m.cfg.IndexCode, err)
	}
	if len(constituents) == 0 {
		return nil, fmt.Errorf("index %s has no constituents", m.cfg.IndexCode)
	}

	latest := constituents[0].TradeDate
	seen := make(map[string]bool)
	var codes []string
	for _, c := range constituents {
		if !c.TradeDate.Equal(latest) {
			break
		}
		if seen[c.StockCode] {
			continue
		}
		seen[c.StockCode] = true
		codes = append(codes, c.StockCode)
	}
	sort.Strings(codes)

	logger.Info(ctx, "Stock universe loaded",
		"index_code", m.cfg.IndexCode,
		"constituent_date", latest.Format("2006-01-02"),
		"stocks", len(codes),
	)
	return codes, nil
}

// LoadResult 行情加载结果
type LoadResult struct {
	// 各股票的归一化日线序列，按日期升序
	Bars map[string][]*domain.DailyBar
	// 因交易日数不足被剔除的股票数
	Skipped int
}

// LoadMarketData 加载股票池的日线行情。
// 单只股票加载失败或交易日数不足 MinTradingDays 时跳过并记录，不中断整体加载；
// 成功加载的股票数达到 MaxStocks 即停止；
// 成交量从手归一化为股，成交额按配置从千元归一化为元。
func (m *DataManager) LoadMarketData(ctx context.Context, codes []string, start, end time.Time) (*LoadResult, error) {
	result := &LoadResult{Bars: make(map[string][]*domain.DailyBar, len(codes))}

	for _, code := range codes {
		if m.cfg.MaxStocks > 0 && len(result.Bars) >= m.cfg.MaxStocks {
			break
		}

		bars, err := m.repo.GetDailyBars(ctx, code, start, end)
		if err != nil {
			result.Skipped++
			logger.Warn(ctx, "Stock skipped: load failed",
				"stock_code", code,
				"error", err,
			)
			continue
		}
		if len(bars) < m.cfg.MinTradingDays {
			result.Skipped++
			logger.Debug(ctx, "Stock skipped: insufficient trading days",
				"stock_code", code,
				"days", len(bars),
				"min_days", m.cfg.MinTradingDays,
			)
			continue
		}

		sort.Slice(bars, func(i, j int) bool { return bars[i].TradeDate.Before(bars[j].TradeDate) })
		for _, bar := range bars {
			m.normalize(bar)
		}
		result.Bars[code] = bars
	}

	if len(result.Bars) == 0 {
		return nil, fmt.Errorf("no stock has enough trading days in [%s, %s]",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	logger.Info(ctx, "Market data loaded",
		"stocks", len(result.Bars),
		"skipped", result.Skipped,
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)
	return result, nil
}

// LoadBenchmark 加载基准指数的日收盘序列，按日期升序
func (m *DataManager) LoadBenchmark(ctx context.Context, start, end time.Time) ([]float64, error) {
	if m.cfg.BenchmarkCode == "" {
		return nil, nil
	}
	bars, err := m.repo.GetIndexDailyBars(ctx, m.cfg.BenchmarkCode, start, end)
	if err != nil {
		return nil, fmt.Errorf("load benchmark %s: %w", m.cfg.BenchmarkCode, err)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TradeDate.Before(bars[j].TradeDate) })

	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		closes = append(closes, bar.Close.InexactFloat64())
	}
	return closes, nil
}

// normalize 原地归一化单位
func (m *DataManager) normalize(bar *domain.DailyBar) {
	bar.Volume *= sharesPerLot
	if m.cfg.AmountInThousands {
		bar.Amount = bar.Amount.Mul(thousandFactor)
	}
}
