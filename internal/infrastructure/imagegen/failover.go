package imagegen

import (
	"context"
	"errors"

	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

// FailoverProvider 主提供方失败后尝试备用提供方，请求被取消时不再降级
type FailoverProvider struct {
	primary   Provider
	secondary Provider
}

func NewFailoverProvider(primary, secondary Provider) *FailoverProvider {
	return &FailoverProvider{primary: primary, secondary: secondary}
}

func (p *FailoverProvider) Name() string {
	return p.primary.Name() + "+" + p.secondary.Name()
}

func (p *FailoverProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	data, err := p.primary.GenerateImage(ctx, prompt)
	if err == nil {
		return data, nil
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil, &apperrors.ImageGenerationFailed{Provider: p.primary.Name(), Cause: err}
	}

	logger.Warn(ctx, "primary image provider failed, falling back",
		"primary", p.primary.Name(),
		"secondary", p.secondary.Name(),
		"error", err.Error(),
	)

	data, err = p.secondary.GenerateImage(ctx, prompt)
	if err != nil {
		return nil, &apperrors.ImageGenerationFailed{Provider: p.secondary.Name(), Cause: err}
	}
	return data, nil
}
