package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"deckgen-api/internal/workflow/node"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

const (
	ProviderGemini = "gemini"

	defaultGeminiModel = "gemini-2.5-flash-image"
)

// contentGenerator genai.Models 的最小子集，便于测试替换
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOptions Gemini 图片参数
type GeminiOptions struct {
	APIKey      string
	Model       string
	Temperature float32
}

// GeminiProvider 请求 TEXT+IMAGE 模态，取第一个非空内联图片
type GeminiProvider struct {
	models      contentGenerator
	model       string
	temperature float32
}

func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini image api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiProvider(client.Models, opts), nil
}

func newGeminiProvider(models contentGenerator, opts GeminiOptions) *GeminiProvider {
	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{models: models, model: model, temperature: opts.Temperature}
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Temperature:        ptr(p.temperature),
	})
	if err != nil {
		return nil, node.ClassifyProviderError(ProviderGemini, err)
	}

	data := inlineImage(resp)
	if len(data) == 0 {
		logger.Warn(ctx, "gemini returned no inline image", "model", p.model, "text", logger.Truncate(responseText(resp)))
		return nil, &apperrors.EmptyResponseError{Provider: ProviderGemini}
	}
	return data, nil
}

func inlineImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String()
}

func ptr[T any](v T) *T { return &v }
