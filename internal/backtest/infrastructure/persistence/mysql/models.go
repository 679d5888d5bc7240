// Package mysql 提供回测任务与结果的 MySQL 持久化实现。
package mysql

import (
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/asharebacktest/internal/backtest/domain"
)

// BacktestTaskPO 回测任务表
type BacktestTaskPO struct {
	gorm.Model
	TaskID         string    `gorm:"column:task_id;type:varchar(40);uniqueIndex;not null"`
	StrategyName   string    `gorm:"column:strategy_name;type:varchar(40);index;not null"`
	StrategyParams string    `gorm:"column:strategy_params;type:text"`
	StartDate      time.Time `gorm:"column:start_date;not null"`
	EndDate        time.Time `gorm:"column:end_date;not null"`
	InitialCash    float64   `gorm:"column:initial_cash;type:decimal(20,2);not null"`
	Status         string    `gorm:"column:status;type:varchar(20);index;not null"`
	ErrorMessage   string    `gorm:"column:error_message;type:text"`
	FinishedAt     time.Time `gorm:"column:finished_at"`
}

func (BacktestTaskPO) TableName() string { return "backtest_tasks" }

func (po *BacktestTaskPO) ToDomain() *domain.BacktestTask {
	return &domain.BacktestTask{
		TaskID:         po.TaskID,
		StrategyName:   po.StrategyName,
		StrategyParams: po.StrategyParams,
		StartDate:      po.StartDate,
		EndDate:        po.EndDate,
		InitialCash:    po.InitialCash,
		Status:         po.Status,
		ErrorMessage:   po.ErrorMessage,
		CreatedAt:      po.CreatedAt,
		FinishedAt:     po.FinishedAt,
	}
}

func (po *BacktestTaskPO) FromDomain(task *domain.BacktestTask) {
	po.TaskID = task.TaskID
	po.StrategyName = task.StrategyName
	po.StrategyParams = task.StrategyParams
	po.StartDate = task.StartDate
	po.EndDate = task.EndDate
	po.InitialCash = task.InitialCash
	po.Status = task.Status
	po.ErrorMessage = task.ErrorMessage
	po.FinishedAt = task.FinishedAt
}

// BacktestReportPO 回测报告表，完整绩效报告存 JSON 列
type BacktestReportPO struct {
	gorm.Model
	TaskID       string  `gorm:"column:task_id;type:varchar(40);uniqueIndex;not null"`
	FinalCapital float64 `gorm:"column:final_capital;type:decimal(20,2);not null"`
	TotalReturn  float64 `gorm:"column:total_return;type:decimal(12,6)"`
	SharpeRatio  float64 `gorm:"column:sharpe_ratio;type:decimal(12,6)"`
	MaxDrawdown  float64 `gorm:"column:max_drawdown;type:decimal(12,6)"`
	TotalTrades  int     `gorm:"column:total_trades"`
	WinRate      float64 `gorm:"column:win_rate;type:decimal(12,6)"`
	ReportJSON   string  `gorm:"column:report_json;type:longtext"`
}

func (BacktestReportPO) TableName() string { return "backtest_reports" }

func (po *BacktestReportPO) ToDomain() *domain.BacktestReportRecord {
	return &domain.BacktestReportRecord{
		TaskID:       po.TaskID,
		FinalCapital: po.FinalCapital,
		TotalReturn:  po.TotalReturn,
		SharpeRatio:  po.SharpeRatio,
		MaxDrawdown:  po.MaxDrawdown,
		TotalTrades:  po.TotalTrades,
		WinRate:      po.WinRate,
		ReportJSON:   po.ReportJSON,
		CreatedAt:    po.CreatedAt,
	}
}

func (po *BacktestReportPO) FromDomain(report *domain.BacktestReportRecord) {
	po.TaskID = report.TaskID
	po.FinalCapital = report.FinalCapital
	po.TotalReturn = report.TotalReturn
	po.SharpeRatio = report.SharpeRatio
	po.MaxDrawdown = report.MaxDrawdown
	po.TotalTrades = report.TotalTrades
	po.WinRate = report.WinRate
	po.ReportJSON = report.ReportJSON
}

// TradeRecordPO 成交明细表
type TradeRecordPO struct {
	gorm.Model
	TaskID     string    `gorm:"column:task_id;type:varchar(40);index;not null"`
	TradeID    string    `gorm:"column:trade_id;type:varchar(40);uniqueIndex;not null"`
	OrderID    string    `gorm:"column:order_id;type:varchar(40);not null"`
	StockCode  string    `gorm:"column:stock_code;type:varchar(20);index;not null"`
	Side       string    `gorm:"column:side;type:varchar(10);not null"`
	Quantity   int64     `gorm:"column:quantity;not null"`
	Price      float64   `gorm:"column:price;type:decimal(20,4);not null"`
	Commission float64   `gorm:"column:commission;type:decimal(20,4)"`
	StampTax   float64   `gorm:"column:stamp_tax;type:decimal(20,4)"`
	TradeDate  time.Time `gorm:"column:trade_date;index;not null"`
}

func (TradeRecordPO) TableName() string { return "backtest_trades" }

func (po *TradeRecordPO) FromDomain(record *domain.TradeRecord) {
	po.TaskID = record.TaskID
	po.TradeID = record.TradeID
	po.OrderID = record.OrderID
	po.StockCode = record.StockCode
	po.Side = record.Side
	po.Quantity = record.Quantity
	po.Price = record.Price
	po.Commission = record.Commission
	po.StampTax = record.StampTax
	po.TradeDate = record.TradeDate
}
