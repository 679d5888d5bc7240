package domain

import (
	"context"
	"time"
)

// 任务状态
const (
	TaskStatusPending   = "PENDING"
	TaskStatusRunning   = "RUNNING"
	TaskStatusCompleted = "COMPLETED"
	TaskStatusFailed    = "FAILED"
)

// BacktestTask 一次回测任务
type BacktestTask struct {
	TaskID       string
	StrategyName string
	// 策略参数（JSON 编码）
	StrategyParams string
	StartDate      time.Time
	EndDate        time.Time
	InitialCash    float64
	Status         string
	ErrorMessage   string
	CreatedAt      time.Time
	FinishedAt     time.Time
}

// BacktestReportRecord 回测报告的持久化表示。
// 绩效指标与成交明细以 JSON 存储，便于直接返回给接口层。
type BacktestReportRecord struct {
	TaskID       string
	FinalCapital float64
	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	TotalTrades  int
	WinRate      float64
	// 完整绩效报告（JSON）
	ReportJSON string
	CreatedAt  time.Time
}

// TradeRecord 成交明细的持久化表示
type TradeRecord struct {
	TaskID     string
	TradeID    string
	OrderID    string
	StockCode  string
	Side       string
	Quantity   int64
	Price      float64
	Commission float64
	StampTax   float64
	TradeDate  time.Time
}

// BacktestRepository 回测仓储接口
type BacktestRepository interface {
	SaveTask(ctx context.Context, task *BacktestTask) error
	UpdateTask(ctx context.Context, task *BacktestTask) error
	FindTaskByID(ctx context.Context, taskID string) (*BacktestTask, error)
	ListTasks(ctx context.Context, limit, offset int) ([]*BacktestTask, error)
	// SaveResult 在同一事务内写入报告与成交明细
	SaveResult(ctx context.Context, report *BacktestReportRecord, trades []*TradeRecord) error
	FindReportByTaskID(ctx context.Context, taskID string) (*BacktestReportRecord, error)
}
