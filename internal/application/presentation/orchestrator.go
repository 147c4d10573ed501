package presentation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"deckgen-api/internal/domain/entity"
	llmctx "deckgen-api/internal/domain/service"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
	"deckgen-api/pkg/metrics"
	"deckgen-api/pkg/tracer"
)

// TextPipeline 两个顺序执行的文本阶段
type TextPipeline interface {
	GenerateOutline(ctx context.Context, req entity.GenerationRequest) (*entity.Outline, []string, error)
	GenerateDetail(ctx context.Context, req entity.GenerationRequest, outline *entity.Outline) (*entity.Presentation, error)
}

// ImageGenerator 根据提示词生成图片字节
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// AssetSaver 持久化图片字节
type AssetSaver interface {
	Save(ctx context.Context, data []byte, name string) (*entity.GeneratedImage, error)
}

// OutlineCache 可选的大纲缓存
type OutlineCache interface {
	GetOutline(ctx context.Context, key string) (*entity.Outline, bool, error)
	SetOutline(ctx context.Context, key string, outline *entity.Outline) error
}

// ProgressFunc 每次状态迁移后回调（含 received 与 failed）
type ProgressFunc func(ctx context.Context, state entity.PipelineState)

// Options 编排参数
type Options struct {
	StageRetries     int
	ImageConcurrency int
	ImageTimeout     time.Duration
	// OutlineTimeout 共享大纲调用的整体时限，不随任一调用方取消
	OutlineTimeout time.Duration
}

// Orchestrator 演示文稿生成状态机
// received -> outline_ready -> detail_ready -> completed，任一阶段可进入 failed
type Orchestrator struct {
	text   TextPipeline
	images ImageGenerator
	assets AssetSaver
	cache  OutlineCache
	opts   Options
	newID  func() string

	// 相同请求指纹的并发大纲生成只调用一次模型；共享调用与各调用方的取消解耦
	flight singleflight.Group
}

func NewOrchestrator(text TextPipeline, images ImageGenerator, assets AssetSaver, cache OutlineCache, opts Options) *Orchestrator {
	if opts.ImageConcurrency < 1 {
		opts.ImageConcurrency = 1
	}
	if opts.StageRetries < 0 {
		opts.StageRetries = 0
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 60 * time.Second
	}
	if opts.OutlineTimeout <= 0 {
		opts.OutlineTimeout = 3 * time.Minute
	}
	return &Orchestrator{
		text:   text,
		images: images,
		assets: assets,
		cache:  cache,
		opts:   opts,
		newID:  uuid.NewString,
	}
}

// Generate 执行完整流程；单页配图失败只降级该页，不会使整体失败
func (o *Orchestrator) Generate(ctx context.Context, req entity.GenerationRequest, progress ProgressFunc) (*entity.PresentationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := o.newID()
	ctx = logger.WithContext(ctx, logger.PresentationIDKey, id)
	ctx, span := tracer.Start(ctx, "presentation.generate", trace.WithAttributes(
		attribute.String("presentation.id", id),
		attribute.Int("presentation.num_slides", req.NumSlides),
	))

	r := &run{o: o, req: req, id: id, state: entity.StateReceived, progress: progress}
	r.notify(ctx)

	start := time.Now()
	result, err := r.execute(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	metrics.PresentationGenerationTotal.WithLabelValues(status).Inc()
	metrics.PresentationGenerationDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	tracer.End(span, err)
	return result, err
}

// GenerateOutline 仅执行大纲阶段（含重试与缓存）
func (o *Orchestrator) GenerateOutline(ctx context.Context, req entity.GenerationRequest) (*entity.Outline, []string, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	r := &run{o: o, req: req, state: entity.StateReceived}
	return r.outlineStage(ctx)
}

// GenerateImage 单独生成并保存一张图片
func (o *Orchestrator) GenerateImage(ctx context.Context, prompt, name string) (*entity.GeneratedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &apperrors.InvalidInputError{Field: "user_prompt", Reason: "must not be empty"}
	}
	return o.renderImage(ctx, "", prompt, name)
}

func (o *Orchestrator) renderImage(ctx context.Context, slideID, prompt, name string) (*entity.GeneratedImage, error) {
	ctx, span := tracer.Start(ctx, "presentation.image", trace.WithAttributes(attribute.String("slide.id", slideID)))

	metrics.ImagesInFlight.Inc()
	callCtx, cancel := context.WithTimeout(ctx, o.opts.ImageTimeout)
	data, err := o.images.GenerateImage(callCtx, prompt)
	cancel()
	metrics.ImagesInFlight.Dec()

	var img *entity.GeneratedImage
	if err == nil {
		img, err = o.assets.Save(ctx, data, name)
	}
	if err != nil {
		err = asImageFailure(slideID, err)
	}
	tracer.End(span, err)
	return img, err
}

func asImageFailure(slideID string, err error) error {
	var invalidName *apperrors.InvalidAssetNameError
	if errors.As(err, &invalidName) {
		return err
	}
	var failed *apperrors.ImageGenerationFailed
	if errors.As(err, &failed) {
		if failed.SlideID == "" {
			failed.SlideID = slideID
		}
		return failed
	}
	return &apperrors.ImageGenerationFailed{SlideID: slideID, Cause: err}
}

// imageFailureReason 对外展示的失败原因，上游返回内容只进日志
func imageFailureReason(err error) string {
	var (
		timeout  *apperrors.ProviderTimeoutError
		empty    *apperrors.EmptyResponseError
		invalid  *apperrors.InvalidInputError
		provider *apperrors.ProviderError
		upstream *apperrors.ProviderHTTPError
	)
	switch {
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return "image provider timed out"
	case errors.Is(err, context.Canceled):
		return "image generation cancelled"
	case errors.As(err, &empty):
		return "image provider returned no image"
	case errors.As(err, &invalid):
		return "image provider returned unusable data"
	case errors.As(err, &provider), errors.As(err, &upstream):
		return "image provider error"
	default:
		return "image generation failed"
	}
}

// OutlineCacheKey 由影响大纲提示词的字段计算缓存键
func OutlineCacheKey(req entity.GenerationRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%s\x00%s\x00%s\x00%s\x00%s",
		strings.TrimSpace(req.UserPrompt), req.Language, req.NumSlides,
		req.PresentationType, req.Goal, req.Tone, req.TargetAudience, req.AudienceBackground)
	return "outline:v1:" + hex.EncodeToString(h.Sum(nil))
}

// run 单次生成调用独占的状态
type run struct {
	o        *Orchestrator
	req      entity.GenerationRequest
	id       string
	state    entity.PipelineState
	progress ProgressFunc
}

func (r *run) execute(ctx context.Context) (*entity.PresentationResult, error) {
	outline, warnings, err := r.outlineStage(ctx)
	if err != nil {
		return nil, r.fail(ctx, entity.StateOutlineReady, err)
	}
	if err := r.transition(ctx, entity.StateOutlineReady); err != nil {
		return nil, err
	}

	pres, err := r.detailStage(ctx, outline)
	if err != nil {
		return nil, r.fail(ctx, entity.StateDetailReady, err)
	}
	if err := r.transition(ctx, entity.StateDetailReady); err != nil {
		return nil, err
	}

	failures := r.imageStage(ctx, pres)
	if err := ctx.Err(); err != nil {
		return nil, r.fail(ctx, entity.StateCompleted, err)
	}

	pres.ID = r.id
	if err := r.transition(ctx, entity.StateCompleted); err != nil {
		return nil, err
	}
	logger.Info(ctx, "presentation generated",
		"slides", len(pres.Slides),
		"image_failures", len(failures),
		"warnings", len(warnings),
	)
	return &entity.PresentationResult{
		Presentation:  pres,
		State:         r.state,
		Warnings:      warnings,
		ImageFailures: failures,
	}, nil
}

type outlineResult struct {
	outline  *entity.Outline
	warnings []string
}

func (r *run) outlineStage(ctx context.Context) (*entity.Outline, []string, error) {
	if r.o.cache == nil {
		return r.generateOutline(ctx)
	}

	key := OutlineCacheKey(r.req)
	cached, ok, err := r.o.cache.GetOutline(ctx, key)
	switch {
	case err != nil:
		logger.Warn(ctx, "outline cache lookup failed", "error", err.Error())
	case ok && cached != nil && len(cached.Points) > 0:
		metrics.OutlineCacheTotal.WithLabelValues("hit").Inc()
		return cached, OutlineWarnings(len(cached.Points)), nil
	default:
		metrics.OutlineCacheTotal.WithLabelValues("miss").Inc()
	}

	ch := r.o.flight.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.opts.OutlineTimeout)
		defer cancel()

		outline, warnings, err := r.generateOutline(shared)
		if err != nil {
			return outlineResult{}, err
		}
		if err := r.o.cache.SetOutline(shared, key, outline); err != nil {
			logger.Warn(shared, "outline cache store failed", "error", err.Error())
		}
		return outlineResult{outline: outline, warnings: warnings}, nil
	})

	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		out := res.Val.(outlineResult)
		return out.outline, out.warnings, nil
	}
}

func (r *run) generateOutline(ctx context.Context) (*entity.Outline, []string, error) {
	var (
		outline  *entity.Outline
		warnings []string
	)
	err := r.withRetry(ctx, StageOutline, func(ctx context.Context) error {
		var err error
		outline, warnings, err = r.o.text.GenerateOutline(ctx, r.req)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		logger.Warn(ctx, "outline validation warning", "warning", w)
	}
	return outline, warnings, nil
}

func (r *run) detailStage(ctx context.Context, outline *entity.Outline) (*entity.Presentation, error) {
	var pres *entity.Presentation
	err := r.withRetry(ctx, StageDetail, func(ctx context.Context) error {
		var err error
		pres, err = r.o.text.GenerateDetail(ctx, r.req, outline)
		if err == nil && len(pres.Slides) != len(outline.Points) {
			err = &apperrors.SlideValidationError{SlideIndex: -1, Rule: fmt.Sprintf("expected %d slides, got %d", len(outline.Points), len(pres.Slides))}
		}
		return err
	})
	return pres, err
}

// withRetry 可重试错误最多额外执行 StageRetries 次
func (r *run) withRetry(ctx context.Context, stage string, fn func(context.Context) error) error {
	attempts := 1 + r.o.opts.StageRetries
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		stageCtx, span := tracer.Start(llmctx.WithAttempt(ctx, attempt), "presentation.stage."+stage,
			trace.WithAttributes(attribute.Int("stage.attempt", attempt)))
		err = fn(stageCtx)
		tracer.End(span, err)

		if err == nil {
			metrics.StageAttemptsTotal.WithLabelValues(stage, "success").Inc()
			return nil
		}
		metrics.StageAttemptsTotal.WithLabelValues(stage, "error").Inc()

		if !apperrors.IsRetryable(err) || attempt == attempts || ctx.Err() != nil {
			return err
		}
		logger.Warn(ctx, "stage attempt failed, retrying",
			"stage", stage,
			"attempt", attempt,
			"error", err.Error(),
		)
	}
	return err
}

// imageStage 以有界并发为需要配图的幻灯片生成图片，各 goroutine 只写自己的下标
func (r *run) imageStage(ctx context.Context, pres *entity.Presentation) []entity.ImageFailure {
	failures := make([]*entity.ImageFailure, len(pres.Slides))

	var g errgroup.Group
	g.SetLimit(r.o.opts.ImageConcurrency)
	for i := range pres.Slides {
		slide := pres.Slides[i]
		if !slide.ImageRequired {
			continue
		}
		g.Go(func() error {
			name := fmt.Sprintf("%s_%s", r.id, slide.ID)
			img, err := r.o.renderImage(ctx, slide.ID, slide.ImageGenPrompt, name)
			if err != nil {
				logger.Error(ctx, "slide image generation failed", err, "slide_id", slide.ID)
				failures[i] = &entity.ImageFailure{SlideID: slide.ID, Reason: imageFailureReason(err)}
				return nil
			}
			url := img.URL
			pres.Slides[i] = slide.Merge(entity.SlidePatch{ImageURL: &url})
			return nil
		})
	}
	_ = g.Wait()

	var out []entity.ImageFailure
	for _, f := range failures {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out
}

func (r *run) transition(ctx context.Context, to entity.PipelineState) error {
	if !r.state.CanTransition(to) {
		return apperrors.Wrap(fmt.Errorf("illegal transition %s -> %s", r.state, to), apperrors.CodeInternalError, "pipeline state error")
	}
	logger.Info(ctx, "pipeline state transition", "from", string(r.state), "to", string(to))
	r.state = to
	r.notify(ctx)
	return nil
}

// fail 进入 failed 终态，attempted 为未能到达的目标状态
func (r *run) fail(ctx context.Context, attempted entity.PipelineState, err error) error {
	logger.Error(ctx, "presentation generation failed", err,
		"state", string(r.state),
		"target_state", string(attempted),
	)
	if r.state.CanTransition(entity.StateFailed) {
		r.state = entity.StateFailed
		r.notify(ctx)
	}
	return err
}

func (r *run) notify(ctx context.Context) {
	if r.progress != nil {
		r.progress(ctx, r.state)
	}
}
