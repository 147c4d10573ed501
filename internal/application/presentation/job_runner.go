package presentation

import (
	"context"
	"errors"

	"deckgen-api/internal/domain/entity"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

// Generator 完整生成流程
type Generator interface {
	Generate(ctx context.Context, req entity.GenerationRequest, progress ProgressFunc) (*entity.PresentationResult, error)
}

// JobRepository 任务状态读写
type JobRepository interface {
	Save(ctx context.Context, job *entity.PresentationJob) error
	Get(ctx context.Context, id string) (*entity.PresentationJob, error)
}

const defaultMaxAttempts = 3

// JobRunner 执行一次异步任务投递
type JobRunner struct {
	jobs        JobRepository
	generator   Generator
	maxAttempts int
}

// NewJobRunner maxAttempts 与消息队列的投递上限保持一致
func NewJobRunner(jobs JobRepository, generator Generator, maxAttempts int) *JobRunner {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &JobRunner{jobs: jobs, generator: generator, maxAttempts: maxAttempts}
}

// Run 执行任务并持久化每次状态迁移
// 返回错误表示值得重投（可重试的上游失败）；不可重试的失败记录到任务后返回 nil
// 还有重投机会时任务保持 pending，最后一次尝试失败才进入 failed
func (r *JobRunner) Run(ctx context.Context, jobID string, req entity.GenerationRequest) error {
	ctx = logger.WithContext(ctx, logger.JobIDKey, jobID)

	job, err := r.jobs.Get(ctx, jobID)
	switch {
	case errors.Is(err, apperrors.ErrJobNotFound):
		// 状态快照已过期，按消息内容重建
		job = entity.NewPresentationJob(jobID, req)
	case err != nil:
		return err
	}
	if job.Status == entity.JobStatusCompleted {
		logger.Info(ctx, "job already completed, skipping redelivery")
		return nil
	}

	job.Start()
	r.save(ctx, job)

	progress := func(ctx context.Context, state entity.PipelineState) {
		job.Advance(state)
		r.save(ctx, job)
	}

	result, err := r.generator.Generate(ctx, job.Request, progress)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		retryable := apperrors.IsRetryable(err)

		if retryable && job.Attempts < r.maxAttempts {
			job.Retry(string(appErr.Code), appErr.Message)
			r.save(ctx, job)
			logger.Warn(ctx, "presentation job failed, will retry",
				"attempt", job.Attempts,
				"max_attempts", r.maxAttempts,
				"error", err.Error(),
			)
			return err
		}

		job.Fail(string(appErr.Code), appErr.Message)
		r.save(ctx, job)
		logger.Error(ctx, "presentation job failed", err, "attempt", job.Attempts)
		if retryable {
			// 交给消费者转入死信队列
			return err
		}
		return nil
	}

	job.Complete(result)
	r.save(ctx, job)
	logger.Info(ctx, "presentation job completed",
		"duration_ms", job.DurationMs,
		"image_failures", len(result.ImageFailures),
	)
	return nil
}

func (r *JobRunner) save(ctx context.Context, job *entity.PresentationJob) {
	if err := r.jobs.Save(ctx, job); err != nil {
		logger.Warn(ctx, "failed to persist job state", "status", job.Status, "error", err.Error())
	}
}
