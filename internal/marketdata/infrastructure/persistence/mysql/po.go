// Package mysql 提供行情数据的 MySQL 持久化实现。
package mysql

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/asharebacktest/internal/marketdata/domain"
)

// DailyBarPO 日线行情表，列名保持数据源原始命名
type DailyBarPO struct {
	ID        uint            `gorm:"primarykey"`
	TsCode    string          `gorm:"column:ts_code;type:varchar(20);index:idx_code_date;not null"`
	TradeDate time.Time       `gorm:"column:trade_date;index:idx_code_date;not null"`
	Open      decimal.Decimal `gorm:"column:open;type:decimal(20,4);not null"`
	High      decimal.Decimal `gorm:"column:high;type:decimal(20,4);not null"`
	Low       decimal.Decimal `gorm:"column:low;type:decimal(20,4);not null"`
	Close     decimal.Decimal `gorm:"column:close;type:decimal(20,4);not null"`
	PreClose  decimal.Decimal `gorm:"column:pre_close;type:decimal(20,4)"`
	Vol       int64           `gorm:"column:vol;not null"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(24,4)"`
	CreatedAt time.Time
}

func (DailyBarPO) TableName() string { return "daily_bars" }

func (po *DailyBarPO) ToDomain() *domain.DailyBar {
	return &domain.DailyBar{
		StockCode: po.TsCode,
		TradeDate: po.TradeDate,
		Open:      po.Open,
		High:      po.High,
		Low:       po.Low,
		Close:     po.Close,
		PreClose:  po.PreClose,
		Volume:    po.Vol,
		Amount:    po.Amount,
	}
}

// IndexConstituentPO 指数成分股表
type IndexConstituentPO struct {
	ID        uint      `gorm:"primarykey"`
	IndexCode string    `gorm:"column:index_code;type:varchar(20);index:idx_index_date;not null"`
	ConCode   string    `gorm:"column:con_code;type:varchar(20);not null"`
	Weight    float64   `gorm:"column:weight;type:decimal(10,4)"`
	TradeDate time.Time `gorm:"column:trade_date;index:idx_index_date;not null"`
	CreatedAt time.Time
}

func (IndexConstituentPO) TableName() string { return "index_constituents" }

func (po *IndexConstituentPO) ToDomain() *domain.IndexConstituent {
	return &domain.IndexConstituent{
		IndexCode: po.IndexCode,
		StockCode: po.ConCode,
		Weight:    po.Weight,
		TradeDate: po.TradeDate,
	}
}

// IndexDailyPO 指数日线表（基准对比用）
type IndexDailyPO struct {
	ID        uint            `gorm:"primarykey"`
	TsCode    string          `gorm:"column:ts_code;type:varchar(20);index:idx_index_code_date;not null"`
	TradeDate time.Time       `gorm:"column:trade_date;index:idx_index_code_date;not null"`
	Open      decimal.Decimal `gorm:"column:open;type:decimal(20,4)"`
	High      decimal.Decimal `gorm:"column:high;type:decimal(20,4)"`
	Low       decimal.Decimal `gorm:"column:low;type:decimal(20,4)"`
	Close    decimal.Decimal `gorm:"column:close;type:decimal(20,4);not null"`
	PreClose decimal.Decimal `gorm:"column:pre_close;type:decimal(20,4)"`
	Vol      int64           `gorm:"column:vol"`
	Amount   decimal.Decimal `gorm:"column:amount;type:decimal(24,4)"`
	CreatedAt time.Time
}

func (IndexDailyPO) TableName() string { return "index_daily" }

func (po *IndexDailyPO) ToDomain() *domain.DailyBar {
	return &domain.DailyBar{
		StockCode: po.TsCode,
		TradeDate: po.TradeDate,
		Open:      po.Open,
		High:      po.High,
		Low:       po.Low,
		Close:     po.Close,
		PreClose:  po.PreClose,
		Volume:    po.Vol,
		Amount:    po.Amount,
	}
}
