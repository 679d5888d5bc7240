package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	btapp "github.com/wyfcoding/asharebacktest/internal/backtest/application"
	btmysql "github.com/wyfcoding/asharebacktest/internal/backtest/infrastructure/persistence/mysql"
	bthttp "github.com/wyfcoding/asharebacktest/internal/backtest/interfaces/http"
	mdapp "github.com/wyfcoding/asharebacktest/internal/marketdata/application"
	mdmysql "github.com/wyfcoding/asharebacktest/internal/marketdata/infrastructure/persistence/mysql"
	"github.com/wyfcoding/asharebacktest/pkg/config"
	"github.com/wyfcoding/asharebacktest/pkg/db"
	"github.com/wyfcoding/asharebacktest/pkg/logger"
	"github.com/wyfcoding/asharebacktest/pkg/metrics"
	"github.com/wyfcoding/asharebacktest/pkg/middleware"
	"github.com/wyfcoding/asharebacktest/pkg/mq"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "service bootstrap failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. 配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. 日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting backtest service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 指标
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := m.Register(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	// 4. 数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		ConnTimeout:        cfg.Database.ConnTimeout,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer database.Close()

	if err := btmysql.AutoMigrate(database.DB); err != nil {
		return fmt.Errorf("migrate backtest tables: %w", err)
	}
	if err := mdmysql.AutoMigrate(database.DB); err != nil {
		return fmt.Errorf("migrate marketdata tables: %w", err)
	}

	// 5. Kafka（可选）
	var producer *mq.KafkaProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			return fmt.Errorf("init kafka producer: %w", err)
		}
		defer producer.Close()
	} else {
		logger.Warn(ctx, "Kafka brokers not configured, event publishing disabled")
	}

	// 6. 依赖装配
	mdRepo := mdmysql.NewMarketDataRepository(database.DB)
	dataMgr := mdapp.NewDataManager(mdRepo, cfg.Data)
	btRepo := btmysql.NewBacktestRepository(database)
	svc := btapp.NewBacktestService(btRepo, dataMgr, cfg.Backtest, m, producer, cfg.Kafka.ReportTopic)
	handler := bthttp.NewBacktestHandler(svc)

	// 7. HTTP 服务
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})
	handler.RegisterRoutes(&router.RouterGroup)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 8. 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info(ctx, "Shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info(ctx, "Service stopped")
	return nil
}
