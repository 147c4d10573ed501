package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"deckgen-api/internal/domain/entity"
)

const defaultOutlineTTL = 24 * time.Hour

// OutlineCache 以请求指纹为键缓存已校验的大纲
type OutlineCache struct {
	client *Client
	ttl    time.Duration
}

// NewOutlineCache 创建大纲缓存
func NewOutlineCache(client *Client, ttl time.Duration) *OutlineCache {
	if ttl <= 0 {
		ttl = defaultOutlineTTL
	}
	return &OutlineCache{client: client, ttl: ttl}
}

// GetOutline 未命中返回 ok=false 且 err=nil
func (c *OutlineCache) GetOutline(ctx context.Context, key string) (*entity.Outline, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.GetOutline",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, err
	}

	var outline entity.Outline
	if err := json.Unmarshal(val, &outline); err != nil {
		// 损坏的条目直接丢弃
		span.RecordError(err)
		_ = c.client.rdb.Del(ctx, key).Err()
		return nil, false, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &outline, true, nil
}

// SetOutline 写入大纲
func (c *OutlineCache) SetOutline(ctx context.Context, key string, outline *entity.Outline) error {
	ctx, span := tracer.Start(ctx, "cache.SetOutline",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", c.ttl.Milliseconds()),
		))
	defer span.End()

	data, err := json.Marshal(outline)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal outline: %w", err)
	}
	if err := c.client.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
