package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	btdomain "github.com/wyfcoding/asharebacktest/internal/backtest/domain"
	"github.com/wyfcoding/asharebacktest/internal/backtest/strategy"
	mdapp "github.com/wyfcoding/asharebacktest/internal/marketdata/application"
	mddomain "github.com/wyfcoding/asharebacktest/internal/marketdata/domain"
	"github.com/wyfcoding/asharebacktest/pkg/config"
	"github.com/wyfcoding/asharebacktest/pkg/logger"
	"github.com/wyfcoding/asharebacktest/pkg/metrics"
	"github.com/wyfcoding/asharebacktest/pkg/mq"
	"github.com/wyfcoding/asharebacktest/pkg/utils"
)

// 回测完成事件的默认 Kafka 主题
const DefaultReportTopic = "backtest.completed"

// BacktestCompletedEvent 回测完成事件
type BacktestCompletedEvent struct {
	TaskID       string    `json:"task_id"`
	StrategyName string    `json:"strategy_name"`
	Status       string    `json:"status"`
	TotalReturn  float64   `json:"total_return"`
	FinishedAt   time.Time `json:"finished_at"`
}

// BacktestService 回测应用服务：接收回测命令，异步完成
// 数据加载 → 引擎运行 → 绩效分析 → 持久化 → 事件发布。
type BacktestService struct {
	repo     btdomain.BacktestRepository
	dataMgr  *mdapp.DataManager
	cfg      config.BacktestConfig
	metrics  *metrics.Metrics
	producer *mq.KafkaProducer
	topic    string
	idgen    *utils.SnowflakeID
}

// NewBacktestService 创建回测应用服务。producer 可为 nil（不发布事件）。
func NewBacktestService(
	repo btdomain.BacktestRepository,
	dataMgr *mdapp.DataManager,
	cfg config.BacktestConfig,
	m *metrics.Metrics,
	producer *mq.KafkaProducer,
	topic string,
) *BacktestService {
	if topic == "" {
		topic = DefaultReportTopic
	}
	return &BacktestService{
		repo:     repo,
		dataMgr:  dataMgr,
		cfg:      cfg,
		metrics:  m,
		producer: producer,
		topic:    topic,
		idgen:    utils.NewSnowflakeID(2),
	}
}

// RunBacktest 创建回测任务并异步执行，立即返回任务 ID
func (s *BacktestService) RunBacktest(ctx context.Context, cmd RunBacktestCommand) (string, error) {
	if _, err := strategy.Build(cmd.StrategyName, cmd.StrategyParams); err != nil {
		return "", err
	}
	if !cmd.EndDate.After(cmd.StartDate) {
		return "", fmt.Errorf("invalid date range: start %s, end %s",
			cmd.StartDate.Format("2006-01-02"), cmd.EndDate.Format("2006-01-02"))
	}

	initialCash := cmd.InitialCash
	if initialCash <= 0 {
		initialCash = s.cfg.InitialCash
	}

	task := &btdomain.BacktestTask{
		TaskID:         fmt.Sprintf("BT-%d", s.idgen.Generate()),
		StrategyName:   cmd.StrategyName,
		StrategyParams: utils.ToJSON(cmd.StrategyParams),
		StartDate:      cmd.StartDate,
		EndDate:        cmd.EndDate,
		InitialCash:    initialCash,
		Status:         btdomain.TaskStatusPending,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.SaveTask(ctx, task); err != nil {
		return "", fmt.Errorf("save task: %w", err)
	}

	logger.Info(ctx, "Backtest task created",
		"task_id", task.TaskID,
		"strategy", cmd.StrategyName,
		"initial_cash", initialCash,
	)

	go s.execute(logger.WithTraceID(context.Background(), task.TaskID), task, cmd)

	return task.TaskID, nil
}

// execute 完整回测流水线，失败只影响本任务
func (s *BacktestService) execute(ctx context.Context, task *btdomain.BacktestTask, cmd RunBacktestCommand) {
	s.metrics.BacktestRunsTotal.Inc()
	s.metrics.BacktestRunsActive.Inc()
	started := time.Now()
	defer func() {
		s.metrics.BacktestRunsActive.Dec()
		s.metrics.BacktestRunDuration.Observe(time.Since(started).Seconds())
	}()

	task.Status = btdomain.TaskStatusRunning
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		logger.Error(ctx, "Failed to mark task running", "task_id", task.TaskID, "error", err)
	}

	report, result, err := s.runPipeline(ctx, task, cmd)
	if err == nil {
		// 结果先落库再置 COMPLETED：COMPLETED 的任务必须能查到报告
		if perr := s.persistResult(ctx, task, report, result); perr != nil {
			err = fmt.Errorf("persist result: %w", perr)
		}
	}
	task.FinishedAt = time.Now()
	if err != nil {
		s.metrics.BacktestFailuresTotal.Inc()
		task.Status = btdomain.TaskStatusFailed
		task.ErrorMessage = err.Error()
		if uerr := s.repo.UpdateTask(ctx, task); uerr != nil {
			logger.Error(ctx, "Failed to mark task failed", "task_id", task.TaskID, "error", uerr)
		}
		logger.Error(ctx, "Backtest task failed", "task_id", task.TaskID, "error", err)
		s.publishCompleted(ctx, task, 0)
		return
	}

	task.Status = btdomain.TaskStatusCompleted
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		logger.Error(ctx, "Failed to mark task completed", "task_id", task.TaskID, "error", err)
	}

	logger.Info(ctx, "Backtest task completed",
		"task_id", task.TaskID,
		"total_return", report.Basic.TotalReturn,
		"sharpe", report.Basic.SharpeRatio,
		"max_drawdown", report.Basic.MaxDrawdown,
		"trades", report.Trades.TotalTrades,
	)
	s.publishCompleted(ctx, task, report.Basic.TotalReturn)
}

// runPipeline 数据加载 → 引擎运行 → 绩效分析
func (s *BacktestService) runPipeline(ctx context.Context, task *btdomain.BacktestTask, cmd RunBacktestCommand) (*btdomain.PerformanceReport, *btdomain.BacktestResult, error) {
	codes, err := s.dataMgr.LoadStockUniverse(ctx)
	if err != nil {
		return nil, nil, err
	}

	loaded, err := s.dataMgr.LoadMarketData(ctx, codes, task.StartDate, task.EndDate)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.StocksLoadedTotal.Add(float64(len(loaded.Bars)))
	s.metrics.StocksSkippedTotal.Add(float64(loaded.Skipped))

	dataset := btdomain.NewMarketDataSet(toQuotes(loaded.Bars))

	strat, err := strategy.Build(cmd.StrategyName, cmd.StrategyParams)
	if err != nil {
		return nil, nil, err
	}

	rule, err := btdomain.NewTradingRule(
		s.cfg.CommissionRate, s.cfg.StampTaxRate, s.cfg.MinCommission,
		s.cfg.SlippageRate, s.cfg.MinTradeUnit, s.cfg.PriceTick, s.cfg.DailyLimitPct,
	)
	if err != nil {
		return nil, nil, err
	}

	engine, err := btdomain.NewBacktestEngine(btdomain.EngineConfig{
		InitialCash: decimal.NewFromFloat(task.InitialCash),
		Rule:        rule,
		Risk: btdomain.RiskConfig{
			StopLossPct:          s.cfg.StopLossPct,
			TakeProfitPct:        s.cfg.TakeProfitPct,
			MaxDrawdownLimit:     s.cfg.MaxDrawdownLimit,
			MaxSinglePositionPct: s.cfg.MaxSinglePositionPct,
			MaxPositions:         s.cfg.MaxPositions,
		},
		RiskFreeRate: s.cfg.RiskFreeRate,
	}, dataset, strat)
	if err != nil {
		return nil, nil, err
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.TradingDaysTotal.Add(float64(result.TradingDays))
	s.metrics.OrdersSimulatedTotal.Add(float64(result.OrdersCreated))
	s.metrics.OrdersRejectedTotal.Add(float64(result.OrdersRejected))
	s.metrics.TradesFilledTotal.Add(float64(len(result.Trades)))

	benchmark, err := s.dataMgr.LoadBenchmark(ctx, task.StartDate, task.EndDate)
	if err != nil {
		// 基准缺失不影响回测结果
		logger.Warn(ctx, "Benchmark load failed", "task_id", task.TaskID, "error", err)
		benchmark = nil
	}

	analyzer := btdomain.NewPerformanceAnalyzer(s.cfg.RiskFreeRate)
	report := analyzer.Analyze(result, benchmark)
	return report, result, nil
}

// persistResult 报告与成交明细落库
func (s *BacktestService) persistResult(ctx context.Context, task *btdomain.BacktestTask, report *btdomain.PerformanceReport, result *btdomain.BacktestResult) error {
	record := &btdomain.BacktestReportRecord{
		TaskID:       task.TaskID,
		FinalCapital: result.FinalCapital.InexactFloat64(),
		TotalReturn:  report.Basic.TotalReturn,
		SharpeRatio:  report.Basic.SharpeRatio,
		MaxDrawdown:  report.Basic.MaxDrawdown,
		TotalTrades:  report.Trades.TotalTrades,
		WinRate:      report.Trades.WinRate,
		ReportJSON:   utils.ToJSON(report),
		CreatedAt:    time.Now(),
	}
	records := make([]*btdomain.TradeRecord, 0, len(result.Trades))
	for _, t := range result.Trades {
		records = append(records, &btdomain.TradeRecord{
			TaskID:     task.TaskID,
			TradeID:    t.TradeID,
			OrderID:    t.OrderID,
			StockCode:  t.StockCode,
			Side:       string(t.Side),
			Quantity:   t.Quantity,
			Price:      t.Price.InexactFloat64(),
			Commission: t.Commission.InexactFloat64(),
			StampTax:   t.StampTax.InexactFloat64(),
			TradeDate:  t.TradeDate,
		})
	}
	return s.repo.SaveResult(ctx, record, records)
}

func (s *BacktestService) publishCompleted(ctx context.Context, task *btdomain.BacktestTask, totalReturn float64) {
	if s.producer == nil {
		return
	}
	event := BacktestCompletedEvent{
		TaskID:       task.TaskID,
		StrategyName: task.StrategyName,
		Status:       task.Status,
		TotalReturn:  totalReturn,
		FinishedAt:   task.FinishedAt,
	}
	// Kafka 瞬时不可用时重试，仍失败则只记日志，不影响任务状态
	err := utils.Retry(3, 500*time.Millisecond, func() error {
		return s.producer.SendMessage(ctx, s.topic, task.TaskID, event)
	})
	if err != nil {
		logger.Warn(ctx, "Failed to publish backtest event", "task_id", task.TaskID, "error", err)
	}
}

// GetTask 查询任务
func (s *BacktestService) GetTask(ctx context.Context, taskID string) (*TaskDTO, error) {
	task, err := s.repo.FindTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return taskToDTO(task), nil
}

// ListTasks 分页查询任务
func (s *BacktestService) ListTasks(ctx context.Context, limit, offset int) ([]*TaskDTO, error) {
	tasks, err := s.repo.ListTasks(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToDTO(t))
	}
	return out, nil
}

// GetReport 查询回测报告，存储的报告 JSON 解码后返回结构化 DTO
func (s *BacktestService) GetReport(ctx context.Context, taskID string) (*ReportDTO, error) {
	record, err := s.repo.FindReportByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	report := &btdomain.PerformanceReport{}
	if err := utils.FromJSON(record.ReportJSON, report); err != nil {
		return nil, fmt.Errorf("decode report of task %s: %w", taskID, err)
	}
	return &ReportDTO{
		TaskID:       record.TaskID,
		FinalCapital: record.FinalCapital,
		Report:       report,
	}, nil
}

// Strategies 可用策略列表
func (s *BacktestService) Strategies() []string {
	return strategy.Names()
}

// toQuotes 行情日线转换为引擎行情
func toQuotes(bars map[string][]*mddomain.DailyBar) map[string][]*btdomain.DailyQuote {
	out := make(map[string][]*btdomain.DailyQuote, len(bars))
	for code, series := range bars {
		quotes := make([]*btdomain.DailyQuote, 0, len(series))
		for _, bar := range series {
			quotes = append(quotes, &btdomain.DailyQuote{
				StockCode: bar.StockCode,
				TradeDate: bar.TradeDate,
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
				PreClose:  bar.PreClose,
				Volume:    bar.Volume,
				Amount:    bar.Amount,
			})
		}
		out[code] = quotes
	}
	return out
}
