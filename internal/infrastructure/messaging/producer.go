package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"deckgen-api/internal/domain/entity"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PresentationJobMessage 演示文稿生成任务消息
type PresentationJobMessage struct {
	JobID   string                   `json:"job_id"`
	Request entity.GenerationRequest `json:"request"`
}

// PublishPresentationJob 发布生成任务，request_id / trace_id 写入元数据以串联日志
func (p *Producer) PublishPresentationJob(ctx context.Context, job *PresentationJobMessage, requestID, traceID string) (string, error) {
	msg, err := NewMessage(job.JobID, MessageTypePresentationGen, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("request_id", requestID)
	msg.SetMetadata("trace_id", traceID)

	return p.Publish(ctx, StreamPresentationGen, msg)
}
