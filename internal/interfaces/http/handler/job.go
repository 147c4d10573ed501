package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"deckgen-api/internal/domain/entity"
	"deckgen-api/internal/infrastructure/messaging"
	"deckgen-api/internal/interfaces/http/dto"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

// JobStore 任务状态存储
type JobStore interface {
	Save(ctx context.Context, job *entity.PresentationJob) error
	Get(ctx context.Context, id string) (*entity.PresentationJob, error)
}

// JobPublisher 投递生成任务
type JobPublisher interface {
	PublishPresentationJob(ctx context.Context, job *messaging.PresentationJobMessage, requestID, traceID string) (string, error)
}

// JobHandler 异步生成任务；未配置 Redis 时两个依赖均为 nil，接口返回 503
type JobHandler struct {
	store     JobStore
	publisher JobPublisher
	defaults  GenerationOptions
	newID     func() string
}

// NewJobHandler 创建任务处理器
func NewJobHandler(store JobStore, publisher JobPublisher, defaults GenerationOptions) *JobHandler {
	return &JobHandler{
		store:     store,
		publisher: publisher,
		defaults:  defaults,
		newID:     uuid.NewString,
	}
}

func (h *JobHandler) available() bool {
	return h != nil && h.store != nil && h.publisher != nil
}

// CreateJob 创建异步生成任务
// @Summary 提交演示文稿生成任务
// @Tags Jobs
// @Accept json
// @Produce json
// @Param body body dto.GenerationRequestBody true "生成参数"
// @Success 202 {object} dto.JobCreatedResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /generate/presentations/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	if !h.available() {
		dto.ServiceUnavailable(c, "job queue is not configured")
		return
	}
	ctx := c.Request.Context()

	patch, err := dto.BindGenerationRequest(c)
	if err != nil {
		dto.BadRequest(c, "invalid request body")
		return
	}
	base := entity.DefaultGenerationRequest(h.defaults.DefaultSlideCount, h.defaults.DefaultLanguage)
	req, err := entity.NewGenerationRequest(base, patch)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	job := entity.NewPresentationJob(h.newID(), req)
	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)
	if err := h.store.Save(ctx, job); err != nil {
		dto.FromError(c, err)
		return
	}

	msg := &messaging.PresentationJobMessage{JobID: job.ID, Request: req}
	if _, err := h.publisher.PublishPresentationJob(ctx, msg, c.GetString("request_id"), c.GetString("trace_id")); err != nil {
		logger.Error(ctx, "failed to publish presentation job", err)
		job.Fail(string(apperrors.CodeServiceUnavailable), "failed to enqueue job")
		if saveErr := h.store.Save(ctx, job); saveErr != nil {
			logger.Warn(ctx, "failed to mark job as failed", "error", saveErr.Error())
		}
		dto.ServiceUnavailable(c, "failed to enqueue job")
		return
	}

	logger.Info(ctx, "presentation job accepted", "num_slides", req.NumSlides)
	dto.Accepted(c, dto.JobCreatedResponse{JobID: job.ID})
}

// GetJob 获取任务详情
// @Summary 获取任务状态
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.JobResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /generate/presentations/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	if !h.available() {
		dto.ServiceUnavailable(c, "job queue is not configured")
		return
	}

	job, err := h.store.Get(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		if errors.Is(err, apperrors.ErrJobNotFound) {
			dto.NotFound(c, "job not found")
			return
		}
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}
