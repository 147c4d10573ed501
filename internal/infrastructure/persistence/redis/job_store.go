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
	apperrors "deckgen-api/pkg/errors"
)

const defaultJobTTL = 24 * time.Hour

// JobStore 异步生成任务的状态快照
type JobStore struct {
	client *Client
	ttl    time.Duration
}

// NewJobStore 创建任务存储
func NewJobStore(client *Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &JobStore{client: client, ttl: ttl}
}

func jobKey(id string) string {
	return "job:presentation:" + id
}

// Save 覆盖写入任务快照并刷新 TTL
func (s *JobStore) Save(ctx context.Context, job *entity.PresentationJob) error {
	ctx, span := tracer.Start(ctx, "jobstore.Save",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.status", string(job.Status)),
		))
	defer span.End()

	data, err := json.Marshal(job)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.client.rdb.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to save job")
	}
	return nil
}

// Get 读取任务，不存在时返回 ErrJobNotFound
func (s *JobStore) Get(ctx context.Context, id string) (*entity.PresentationJob, error) {
	ctx, span := tracer.Start(ctx, "jobstore.Get",
		trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()

	val, err := s.client.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrJobNotFound
		}
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to load job")
	}

	var job entity.PresentationJob
	if err := json.Unmarshal(val, &job); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "corrupted job record")
	}
	return &job, nil
}
