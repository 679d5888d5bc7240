// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 回测参数配置
	Backtest BacktestConfig `mapstructure:"backtest"`
	// 行情数据配置
	Data DataConfig `mapstructure:"data"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 连接超时（秒），仅作用于底层连接，不约束回测循环
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 是否启用日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表，为空时禁用事件发布
	Brokers []string `mapstructure:"brokers"`
	// 回测完成事件 Topic
	ReportTopic string `mapstructure:"report_topic"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// BacktestConfig 回测引擎参数
// A 股交易规则与风控参数，作为静态输入传入各组件，构造时一次性校验
type BacktestConfig struct {
	// 初始资金
	InitialCash float64 `mapstructure:"initial_cash"`
	// 佣金费率（双边）
	CommissionRate float64 `mapstructure:"commission_rate"`
	// 印花税率（仅卖出）
	StampTaxRate float64 `mapstructure:"stamp_tax_rate"`
	// 最低佣金（元）
	MinCommission float64 `mapstructure:"min_commission"`
	// 滑点率
	SlippageRate float64 `mapstructure:"slippage_rate"`
	// 最小交易单位（股）
	MinTradeUnit int64 `mapstructure:"min_trade_unit"`
	// 最小报价单位
	PriceTick float64 `mapstructure:"price_tick"`
	// 日涨跌幅限制
	DailyLimitPct float64 `mapstructure:"daily_limit_pct"`
	// 止损比例
	StopLossPct float64 `mapstructure:"stop_loss_pct"`
	// 止盈比例
	TakeProfitPct float64 `mapstructure:"take_profit_pct"`
	// 最大回撤限制
	MaxDrawdownLimit float64 `mapstructure:"max_drawdown_limit"`
	// 单一持仓最大占比
	MaxSinglePositionPct float64 `mapstructure:"max_single_position_pct"`
	// 最大持仓数量
	MaxPositions int `mapstructure:"max_positions"`
	// 无风险利率（年化）
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
}

// DataConfig 行情数据加载配置
type DataConfig struct {
	// 指数代码（股票池来源）
	IndexCode string `mapstructure:"index_code"`
	// 最大加载股票数
	MaxStocks int `mapstructure:"max_stocks"`
	// 最小有效交易日数，低于该值的个股被跳过
	MinTradingDays int `mapstructure:"min_trading_days"`
	// 成交额单位是否为千元（需要 ×1000 归一化）
	AmountInThousands bool `mapstructure:"amount_in_thousands"`
	// 基准指数代码（用于业绩对比）
	BenchmarkCode string `mapstructure:"benchmark_code"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Backtest.InitialCash <= 0 {
		return fmt.Errorf("backtest.initial_cash must be positive")
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.StampTaxRate < 0 || c.Backtest.SlippageRate < 0 {
		return fmt.Errorf("backtest fee rates must be non-negative")
	}
	if c.Backtest.MinTradeUnit <= 0 {
		return fmt.Errorf("backtest.min_trade_unit must be positive")
	}
	if c.Backtest.DailyLimitPct <= 0 {
		return fmt.Errorf("backtest.daily_limit_pct must be positive")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.conn_timeout", 5)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("kafka.report_topic", "backtest.completed")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/backtest.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("backtest.initial_cash", 1000000)
	v.SetDefault("backtest.commission_rate", 0.0003)
	v.SetDefault("backtest.stamp_tax_rate", 0.001)
	v.SetDefault("backtest.min_commission", 5)
	v.SetDefault("backtest.slippage_rate", 0.001)
	v.SetDefault("backtest.min_trade_unit", 100)
	v.SetDefault("backtest.price_tick", 0.01)
	v.SetDefault("backtest.daily_limit_pct", 0.10)
	v.SetDefault("backtest.stop_loss_pct", 0.08)
	v.SetDefault("backtest.take_profit_pct", 0.20)
	v.SetDefault("backtest.max_drawdown_limit", 0.15)
	v.SetDefault("backtest.max_single_position_pct", 0.20)
	v.SetDefault("backtest.max_positions", 10)
	v.SetDefault("backtest.risk_free_rate", 0.03)

	v.SetDefault("data.index_code", "000300.SH")
	v.SetDefault("data.max_stocks", 50)
	v.SetDefault("data.min_trading_days", 20)
	v.SetDefault("data.amount_in_thousands", true)
}
