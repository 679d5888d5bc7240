// Package metrics 提供 Prometheus helper，覆盖回测运行、订单模拟与数据加载指标
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/asharebacktest/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 回测运行计数
	BacktestRunsTotal prometheus.Counter
	// 回测失败计数
	BacktestFailuresTotal prometheus.Counter
	// 正在运行的回测数
	BacktestRunsActive prometheus.Gauge
	// 回测运行耗时
	BacktestRunDuration prometheus.Histogram

	// 模拟订单计数
	OrdersSimulatedTotal prometheus.Counter
	// 拒单计数
	OrdersRejectedTotal prometheus.Counter
	// 成交计数
	TradesFilledTotal prometheus.Counter
	// 已处理交易日计数
	TradingDaysTotal prometheus.Counter

	// 加载行情的股票数
	StocksLoadedTotal prometheus.Counter
	// 加载失败/跳过的股票数
	StocksSkippedTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		BacktestRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "runs_total",
			Help:      "Total backtest runs started",
		}),
		BacktestFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "run_failures_total",
			Help:      "Total backtest runs that ended in FAILED state",
		}),
		BacktestRunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "runs_active",
			Help:      "Number of backtest runs in progress",
		}),
		BacktestRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		OrdersSimulatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "orders_simulated_total",
			Help:      "Total orders created by strategies and risk control",
		}),
		OrdersRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "orders_rejected_total",
			Help:      "Total orders rejected during validation",
		}),
		TradesFilledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "trades_filled_total",
			Help:      "Total trades executed",
		}),
		TradingDaysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "trading_days_total",
			Help:      "Total trading days stepped through",
		}),

		StocksLoadedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "stocks_loaded_total",
			Help:      "Total stocks with market data successfully loaded",
		}),
		StocksSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: serviceName,
			Name:      "stocks_skipped_total",
			Help:      "Total stocks skipped during data loading",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BacktestRunsTotal,
		m.BacktestFailuresTotal,
		m.BacktestRunsActive,
		m.BacktestRunDuration,
		m.OrdersSimulatedTotal,
		m.OrdersRejectedTotal,
		m.TradesFilledTotal,
		m.TradingDaysTotal,
		m.StocksLoadedTotal,
		m.StocksSkippedTotal,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
