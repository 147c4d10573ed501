package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 依赖的健康检查
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingFunc 适配函数为 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// HealthHandler 健康检查处理器
type HealthHandler struct {
	assets Pinger
	redis  Pinger
}

// NewHealthHandler 创建健康检查处理器；redis 可为 nil
func NewHealthHandler(assets Pinger, redis Pinger) *HealthHandler {
	return &HealthHandler{assets: assets, redis: redis}
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

func runCheck(ctx context.Context, p Pinger, failStatus string) *readinessCheck {
	start := time.Now()
	err := p.HealthCheck(ctx)
	check := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = failStatus
		check.Error = err.Error()
	}
	return check
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready 就绪检查：图片目录必需，Redis 可选（失败只标记 degraded）
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"assets": {Status: "missing", Error: "asset store not configured"},
		"redis":  {Status: "disabled"},
	}
	ready := false
	if h.assets != nil {
		checks["assets"] = runCheck(ctx, h.assets, "error")
		ready = checks["assets"].Status == "ok"
	}
	if h.redis != nil {
		checks["redis"] = runCheck(ctx, h.redis, "degraded")
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
