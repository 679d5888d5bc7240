// Package http 提供回测服务的 REST 接口。
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/asharebacktest/internal/backtest/application"
	"github.com/wyfcoding/asharebacktest/pkg/response"
)

// BacktestHandler HTTP 处理器
type BacktestHandler struct {
	svc *application.BacktestService
}

// NewBacktestHandler 创建 HTTP 处理器实例
func NewBacktestHandler(svc *application.BacktestService) *BacktestHandler {
	return &BacktestHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *BacktestHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/backtests")
	{
		api.POST("", h.RunBacktest)           // 创建并运行回测
		api.GET("", h.ListTasks)              // 任务列表
		api.GET("/:id", h.GetTask)            // 任务详情
		api.GET("/:id/report", h.GetReport)   // 回测报告
		api.GET("/strategies", h.ListStrategies) // 可用策略
	}
}

// RunBacktestRequest 创建回测请求
type RunBacktestRequest struct {
	StrategyName   string            `json:"strategy_name" binding:"required"`
	StrategyParams map[string]string `json:"strategy_params"`
	StartDate      string            `json:"start_date" binding:"required"`
	EndDate        string            `json:"end_date" binding:"required"`
	InitialCash    float64           `json:"initial_cash"`
}

// RunBacktest 创建并异步运行回测
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req RunBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid start_date: "+req.StartDate, nil)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid end_date: "+req.EndDate, nil)
		return
	}

	taskID, err := h.svc.RunBacktest(c.Request.Context(), application.RunBacktestCommand{
		StrategyName:   req.StrategyName,
		StrategyParams: req.StrategyParams,
		StartDate:      start,
		EndDate:        end,
		InitialCash:    req.InitialCash,
	})
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	response.SuccessWithStatus(c, http.StatusAccepted, gin.H{"task_id": taskID})
}

// GetTask 任务详情
func (h *BacktestHandler) GetTask(c *gin.Context) {
	task, err := h.svc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	response.Success(c, task)
}

// ListTasks 任务列表
func (h *BacktestHandler) ListTasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tasks, err := h.svc.ListTasks(c.Request.Context(), limit, offset)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	response.Success(c, tasks)
}

// GetReport 回测报告
func (h *BacktestHandler) GetReport(c *gin.Context) {
	report, err := h.svc.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	response.Success(c, report)
}

// ListStrategies 可用策略列表
func (h *BacktestHandler) ListStrategies(c *gin.Context) {
	response.Success(c, h.svc.Strategies())
}
