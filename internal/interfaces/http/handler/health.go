// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/infrastructure/persistence/redis"
)

// HealthChecker 可探活的依赖
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	driver string
	store  HealthChecker
	redis  *redis.Client
}

// NewHealthHandler 创建健康检查处理器；redisClient 为空表示未启用 Redis
func NewHealthHandler(driver string, store HealthChecker, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		driver: driver,
		store:  store,
		redis:  redisClient,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Description 存储必须可用；Redis 只影响后台任务与缓存，故障时标记为 degraded
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeName := "store"
	if h != nil && h.driver != "" {
		storeName = h.driver
	}
	checks := map[string]*readinessCheck{
		storeName: {Status: "unknown"},
		"redis":   {Status: "disabled"},
	}

	ready := true

	// 小说存储（必需）
	if h == nil || h.store == nil {
		checks[storeName].Status = "missing"
		checks[storeName].Error = "novel store not configured"
		ready = false
	} else {
		start := time.Now()
		err := h.store.HealthCheck(ctx)
		checks[storeName].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks[storeName].Status = "error"
			checks[storeName].Error = err.Error()
			ready = false
		} else {
			checks[storeName].Status = "ok"
		}
	}

	// Redis（可选，不影响就绪态）
	if h != nil && h.redis != nil {
		start := time.Now()
		err := h.redis.HealthCheck(ctx)
		checks["redis"].LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			checks["redis"].Status = "degraded"
			checks["redis"].Error = err.Error()
		} else {
			checks["redis"].Status = "ok"
		}
	}

	resp := readinessResponse{
		Status: "ok",
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Description 检查服务是否存活
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
