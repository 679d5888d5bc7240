package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/asharebacktest/internal/marketdata/domain"
)

type marketDataRepository struct {
	db *gorm.DB
}

// NewMarketDataRepository 创建行情仓储
func NewMarketDataRepository(db *gorm.DB) domain.MarketDataRepository {
	return &marketDataRepository{db: db}
}

func (r *marketDataRepository) GetConstituents(ctx context.Context, indexCode string) ([]*domain.IndexConstituent, error) {
	var pos []*IndexConstituentPO
	err := r.db.WithContext(ctx).
		Where("index_code = ?", indexCode).
		Order("trade_date desc").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.IndexConstituent, 0, len(pos))
	for _, po := range pos {
		out = append(out, po.ToDomain())
	}
	return out, nil
}

func (r *marketDataRepository) GetDailyBars(ctx context.Context, stockCode string, start, end time.Time) ([]*domain.DailyBar, error) {
	var pos []*DailyBarPO
	err := r.db.WithContext(ctx).
		Where("ts_code = ?", stockCode).
		Where("trade_date BETWEEN ? AND ?", start, end).
		Order("trade_date asc").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.DailyBar, 0, len(pos))
	for _, po := range pos {
		out = append(out, po.ToDomain())
	}
	return out, nil
}

func (r *marketDataRepository) GetIndexDailyBars(ctx context.Context, indexCode string, start, end time.Time) ([]*domain.DailyBar, error) {
	var pos []*IndexDailyPO
	err := r.db.WithContext(ctx).
		Where("ts_code = ?", indexCode).
		Where("trade_date BETWEEN ? AND ?", start, end).
		Order("trade_date asc").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.DailyBar, 0, len(pos))
	for _, po := range pos {
		out = append(out, po.ToDomain())
	}
	return out, nil
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&DailyBarPO{}, &IndexConstituentPO{}, &IndexDailyPO{})
}
