package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/asharebacktest/internal/backtest/domain"
	"github.com/wyfcoding/asharebacktest/pkg/db"
)

type backtestRepository struct {
	db *db.DB
}

// NewBacktestRepository 创建回测仓储
func NewBacktestRepository(database *db.DB) domain.BacktestRepository {
	return &backtestRepository{db: database}
}

func (r *backtestRepository) SaveTask(ctx context.Context, task *domain.BacktestTask) error {
	var po BacktestTaskPO
	po.FromDomain(task)
	return r.db.WithContext(ctx).Create(&po).Error
}

func (r *backtestRepository) UpdateTask(ctx context.Context, task *domain.BacktestTask) error {
	updates := map[string]interface{}{
		"status":        task.Status,
		"error_message": task.ErrorMessage,
		"finished_at":   task.FinishedAt,
	}
	result := r.db.WithContext(ctx).
		Model(&BacktestTaskPO{}).
		Where("task_id = ?", task.TaskID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task %s not found", task.TaskID)
	}
	return nil
}

func (r *backtestRepository) FindTaskByID(ctx context.Context, taskID string) (*domain.BacktestTask, error) {
	var po BacktestTaskPO
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %s not found", taskID)
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

func (r *backtestRepository) ListTasks(ctx context.Context, limit, offset int) ([]*domain.BacktestTask, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var pos []*BacktestTaskPO
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.BacktestTask, 0, len(pos))
	for _, po := range pos {
		out = append(out, po.ToDomain())
	}
	return out, nil
}

// SaveResult 报告与成交明细同事务写入，避免报告落库而明细缺失
func (r *backtestRepository) SaveResult(ctx context.Context, report *domain.BacktestReportRecord, trades []*domain.TradeRecord) error {
	var reportPO BacktestReportPO
	reportPO.FromDomain(report)

	tradePOs := make([]*TradeRecordPO, 0, len(trades))
	for _, t := range trades {
		var po TradeRecordPO
		po.FromDomain(t)
		tradePOs = append(tradePOs, &po)
	}

	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&reportPO).Error; err != nil {
			return err
		}
		if len(tradePOs) == 0 {
			return nil
		}
		return tx.CreateInBatches(tradePOs, 200).Error
	})
}

func (r *backtestRepository) FindReportByTaskID(ctx context.Context, taskID string) (*domain.BacktestReportRecord, error) {
	var po BacktestReportPO
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&po).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("report of task %s not found", taskID)
		}
		return nil, err
	}
	return po.ToDomain(), nil
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&BacktestTaskPO{}, &BacktestReportPO{}, &TradeRecordPO{})
}
