package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"deckgen-api/pkg/logger"
	"deckgen-api/pkg/metrics"
)

var errMaxRetries = errors.New("message exceeded max retries")

// MessageHandler 消息处理函数；返回错误时消息留在 pending 中等待退避重投
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer 消费组中的单个消费者
type Consumer struct {
	client        *redis.Client
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   max(5*time.Minute, cfg.Backoff.Max*2),
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		handlers:      make(map[string]MessageHandler),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 确保消费组存在并在后台开始消费
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费并等待当前消息处理结束
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	c.running = false
	c.mu.Unlock()
	<-c.doneCh
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)

	log := logger.FromContext(ctx)
	log.Info("consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumerName,
	)

	lastClaim := time.Now().Add(-c.claimInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped due to context cancellation")
			return
		case <-c.stopCh:
			log.Info("consumer stopped")
			return
		default:
		}

		c.processDuePending(ctx)
		if time.Since(lastClaim) >= c.claimInterval {
			c.reclaimStale(ctx)
			lastClaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    10,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.processMessage(ctx, xmsg)
			}
		}
	}
}

func decodeMessage(xmsg redis.XMessage) (*Message, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no data field", xmsg.ID)
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// processMessage 处理单条消息；无法解析或无处理器的消息直接 ack 丢弃
func (c *Consumer) processMessage(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.processMessage",
		trace.WithAttributes(
			attribute.String("stream", string(c.stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, err := decodeMessage(xmsg)
	if err != nil {
		logger.FromContext(ctx).Error("invalid message format", "error", err, "message_id", xmsg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "invalid").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	log := logger.FromContext(ctx)

	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
	)

	c.mu.RLock()
	handler, exists := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !exists {
		log.Warn("no handler for message type", "type", msg.Type)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "unhandled").Inc()
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		log.Error("handler failed", "error", err, "message_id", msg.ID)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "failed").Inc()
		c.handleFailure(ctx, xmsg, msg, err)
		return
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "success").Inc()
	c.ack(ctx, xmsg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to ack message", "error", err, "message_id", id)
	}
}

func (c *Consumer) handleFailure(ctx context.Context, xmsg redis.XMessage, msg *Message, err error) {
	log := logger.FromContext(ctx)

	retryCount := c.getRetryCount(ctx, xmsg.ID)
	if retryCount >= c.retryLimit {
		log.Warn("message moved to DLQ after max retries",
			"message_id", msg.ID,
			"retry_count", retryCount,
		)
		c.moveToDLQ(ctx, msg, err)
		c.ack(ctx, xmsg.ID)
		return
	}
	log.Info("message left pending for retry",
		"message_id", msg.ID,
		"retry_count", retryCount,
	)
}

// getRetryCount 通过 XPENDING 获取投递次数
func (c *Consumer) getRetryCount(ctx context.Context, messageID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

func (c *Consumer) moveToDLQ(ctx context.Context, msg *Message, cause error) {
	dlqMsg := map[string]any{
		"original_stream": string(c.stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	}
	data, _ := json.Marshal(dlqMsg)
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to write DLQ", "error", err, "message_id", msg.ID)
		return
	}
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "dead_lettered").Inc()
}

// claim 认领 pending 消息；超过重试上限的直接转入死信队列，其余重新处理
func (c *Consumer) claim(ctx context.Context, p redis.XPendingExt, minIdle time.Duration) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Messages: []string{p.ID},
	}).Result()
	if err != nil {
		logger.FromContext(ctx).Error("failed to claim pending message", "error", err, "message_id", p.ID)
		return
	}

	for _, xmsg := range claimed {
		if int(p.RetryCount) < c.retryLimit {
			c.processMessage(ctx, xmsg)
			continue
		}
		if msg, decodeErr := decodeMessage(xmsg); decodeErr == nil {
			c.moveToDLQ(ctx, msg, errMaxRetries)
		}
		c.ack(ctx, xmsg.ID)
	}
}

func (c *Consumer) pending(ctx context.Context, consumer string) []redis.XPendingExt {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Start:    "-",
		End:      "+",
		Count:    20,
		Consumer: consumer,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Error("failed to query pending messages", "error", err)
		}
		return nil
	}
	return pending
}

// processDuePending 重投本消费者名下已过退避时间的消息
func (c *Consumer) processDuePending(ctx context.Context) {
	for _, p := range c.pending(ctx, c.consumerName) {
		if int(p.RetryCount) >= c.retryLimit {
			c.claim(ctx, p, 0)
			continue
		}
		backoff := c.backoff.CalculateBackoff(int(p.RetryCount))
		if p.Idle < backoff {
			continue
		}
		c.claim(ctx, p, backoff)
	}
}

// reclaimStale 接管其他消费者长时间未确认的消息（消费者崩溃场景）
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.consumerName || p.Idle < c.reclaimIdle {
			continue
		}
		c.claim(ctx, p, c.reclaimIdle)
	}
}

// MonitorDLQ 死信队列积压超过阈值时告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			dlqStream := c.stream.DLQStream()
			length, err := c.client.XLen(ctx, dlqStream).Result()
			if err != nil {
				continue
			}
			if length > alertThreshold {
				log.Warn("DLQ has pending messages",
					"stream", dlqStream,
					"count", length,
				)
			}
		}
	}
}
