package domain

import "errors"

// 错误定义
var (
	// ErrInvalidQuantity 订单数量非法（非正数或不是最小交易单位的整数倍）
	ErrInvalidQuantity = errors.New("invalid order quantity")
	// ErrInvalidPrice 订单价格非法
	ErrInvalidPrice = errors.New("invalid order price")
	// ErrInsufficientFunds 可用资金不足
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientPosition 持仓数量不足
	ErrInsufficientPosition = errors.New("insufficient position")
	// ErrSameDaySell T+1 限制：当日买入的股票当日不可卖出
	ErrSameDaySell = errors.New("T+1 rule: cannot sell shares bought on the same trade date")
	// ErrPriceOutOfBand 价格超出当日涨跌停价带
	ErrPriceOutOfBand = errors.New("price outside daily limit band")
	// ErrMissingPreClose 快照中缺少昨收价，无法校验价带
	ErrMissingPreClose = errors.New("missing pre-close price in snapshot")
	// ErrInvalidQuote 行情记录缺少必填字段（close/pre_close）
	ErrInvalidQuote = errors.New("invalid quote: missing close or pre-close")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotPending 订单已处于终态，状态不可回退
	ErrOrderNotPending = errors.New("order is not pending")
	// ErrNoMarketData 未加载到任何行情数据，回测无法启动
	ErrNoMarketData = errors.New("no market data loaded")
	// ErrInvalidRule 交易规则参数非法
	ErrInvalidRule = errors.New("invalid trading rule")
	// ErrInvalidInitialCash 初始资金非法
	ErrInvalidInitialCash = errors.New("initial cash must be positive")
	// ErrEngineNotRunnable 引擎状态不允许再次运行
	ErrEngineNotRunnable = errors.New("engine is not in a runnable state")
)
