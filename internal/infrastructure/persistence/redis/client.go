// Package redis 提供 Redis 客户端、大纲缓存、任务状态存储与限流器
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"deckgen-api/internal/config"
)

var tracer = otel.Tracer("redis")

// Client Redis 客户端
type Client struct {
	rdb *redis.Client
}

// NewClient 创建 Redis 客户端并验证连接
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Wrap 包装已有连接（测试与 worker 共用连接时使用）
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Redis 获取底层 Redis 客户端
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != "PONG" {
		return fmt.Errorf("unexpected ping response: %s", result)
	}
	return nil
}
