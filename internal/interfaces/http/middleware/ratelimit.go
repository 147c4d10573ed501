package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	// Limit 窗口内允许的请求数
	Limit  int
	Window time.Duration
	// KeyPrefix Redis Key 前缀
	KeyPrefix string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由限流；限流器故障时放行
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.Limit <= 0 {
		cfg.Limit = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := cfg.KeyPrefix + ":" + c.ClientIP() + ":" + route

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.Limit, cfg.Window)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable, allowing request", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":    "rate limit exceeded",
				"code":     errors.CodeTooManyRequests,
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
