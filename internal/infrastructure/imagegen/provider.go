// Package imagegen 图片生成提供方：Gemini 内联图片为主，HTTP worker 为备
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deckgen-api/internal/config"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
	"deckgen-api/pkg/metrics"
)

// Provider 单个图片生成提供方，错误为未包装的分类错误
type Provider interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Generator 对外的图片生成入口，最终失败统一为 ImageGenerationFailed
type Generator struct {
	provider Provider
}

func NewGenerator(provider Provider) *Generator {
	return &Generator{provider: provider}
}

// Provider 返回底层提供方名称
func (g *Generator) Provider() string {
	return g.provider.Name()
}

func (g *Generator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	start := time.Now()
	data, err := g.provider.GenerateImage(ctx, prompt)
	metrics.ImageGenerationDuration.WithLabelValues(g.provider.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ImageGenerationTotal.WithLabelValues(g.provider.Name(), "error").Inc()
		var failed *apperrors.ImageGenerationFailed
		if errors.As(err, &failed) {
			return nil, failed
		}
		return nil, &apperrors.ImageGenerationFailed{Provider: g.provider.Name(), Cause: err}
	}
	metrics.ImageGenerationTotal.WithLabelValues(g.provider.Name(), "success").Inc()
	return data, nil
}

// NewProviderFromConfig 按 image.provider 组装提供方
func NewProviderFromConfig(ctx context.Context, cfg config.ImageConfig) (Provider, error) {
	buildGemini := func() (Provider, error) {
		return NewGeminiProvider(ctx, GeminiOptions{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			Temperature: float32(cfg.Gemini.Temperature),
		})
	}
	buildWorker := func() (Provider, error) {
		return NewWorkerProvider(WorkerOptions{
			Endpoint: cfg.Worker.Endpoint,
			APIKey:   cfg.Worker.APIKey,
			Timeout:  cfg.Timeout,
		})
	}

	switch cfg.Provider {
	case config.ImageProviderGemini:
		return buildGemini()
	case config.ImageProviderWorker:
		return buildWorker()
	case config.ImageProviderFailover, "":
		var primary, secondary Provider
		if cfg.Gemini.APIKey != "" {
			p, err := buildGemini()
			if err != nil {
				return nil, err
			}
			primary = p
		}
		if cfg.Worker.Endpoint != "" {
			p, err := buildWorker()
			if err != nil {
				return nil, err
			}
			secondary = p
		}
		switch {
		case primary != nil && secondary != nil:
			return NewFailoverProvider(primary, secondary), nil
		case primary != nil:
			logger.Warn(ctx, "image worker endpoint not configured, failover disabled")
			return primary, nil
		case secondary != nil:
			logger.Warn(ctx, "gemini image api key not configured, using worker only")
			return secondary, nil
		}
		return nil, errors.New("no image provider configured")
	default:
		return nil, fmt.Errorf("unsupported image provider: %s", cfg.Provider)
	}
}
