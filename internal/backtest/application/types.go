// Package application 编排回测流程：数据加载、引擎运行、绩效分析与结果持久化。
package application

import (
	"time"

	"github.com/wyfcoding/asharebacktest/internal/backtest/domain"
)

// RunBacktestCommand 运行回测命令
type RunBacktestCommand struct {
	StrategyName   string            `json:"strategy_name"`
	StrategyParams map[string]string `json:"strategy_params"`
	StartDate      time.Time         `json:"start_date"`
	EndDate        time.Time         `json:"end_date"`
	// 为 0 时使用配置的默认初始资金
	InitialCash float64 `json:"initial_cash"`
}

// TaskDTO 任务查询结果
type TaskDTO struct {
	TaskID       string    `json:"task_id"`
	StrategyName string    `json:"strategy_name"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	InitialCash  float64   `json:"initial_cash"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReportDTO 报告查询结果
type ReportDTO struct {
	TaskID       string                    `json:"task_id"`
	FinalCapital float64                   `json:"final_capital"`
	Report       *domain.PerformanceReport `json:"report"`
}

func taskToDTO(task *domain.BacktestTask) *TaskDTO {
	return &TaskDTO{
		TaskID:       task.TaskID,
		StrategyName: task.StrategyName,
		StartDate:    task.StartDate,
		EndDate:      task.EndDate,
		InitialCash:  task.InitialCash,
		Status:       task.Status,
		ErrorMessage: task.ErrorMessage,
		CreatedAt:    task.CreatedAt,
	}
}
