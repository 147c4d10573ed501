// Package presentation 实现演示文稿生成流程：提示词编排、结构校验、逐页配图与状态机
package presentation

import (
	"context"

	"deckgen-api/internal/domain/entity"
	wfchain "deckgen-api/internal/workflow/chain"
	workflowprompt "deckgen-api/internal/workflow/prompt"
)

const (
	StageOutline = "outline"
	StageDetail  = "detail"
)

// TextGenerator 文本生成客户端，返回解析后的 JSON 文档
type TextGenerator interface {
	Generate(ctx context.Context, in *wfchain.GenerateInput) (map[string]any, error)
}

// TextStageOptions 两个文本阶段的调用参数
type TextStageOptions struct {
	Provider          string
	Model             string
	OutlineMaxTokens  int
	DetailMaxTokens   int
	DetailTemperature float32
}

// TextStages 组合提示词编译、文本生成与结构校验
type TextStages struct {
	compiler *workflowprompt.Compiler
	client   TextGenerator
	opts     TextStageOptions
}

func NewTextStages(compiler *workflowprompt.Compiler, client TextGenerator, opts TextStageOptions) *TextStages {
	return &TextStages{compiler: compiler, client: client, opts: opts}
}

// GenerateOutline 生成并校验大纲，温度固定为 0
func (s *TextStages) GenerateOutline(ctx context.Context, req entity.GenerationRequest) (*entity.Outline, []string, error) {
	msgs, err := s.compiler.CompileOutline(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	temperature := float32(0)
	doc, err := s.client.Generate(ctx, &wfchain.GenerateInput{
		Stage:       StageOutline,
		Provider:    s.opts.Provider,
		Messages:    msgs,
		SchemaName:  "presentation_outline",
		Schema:      wfchain.OutlineSchema(),
		Model:       s.opts.Model,
		Temperature: &temperature,
		MaxTokens:   positive(s.opts.OutlineMaxTokens),
	})
	if err != nil {
		return nil, nil, err
	}
	return ValidateOutline(doc)
}

// GenerateDetail 基于大纲生成逐页内容，幻灯片与大纲要点一一对应
func (s *TextStages) GenerateDetail(ctx context.Context, req entity.GenerationRequest, outline *entity.Outline) (*entity.Presentation, error) {
	msgs, err := s.compiler.CompileDetail(ctx, req, outline)
	if err != nil {
		return nil, err
	}

	temperature := s.opts.DetailTemperature
	doc, err := s.client.Generate(ctx, &wfchain.GenerateInput{
		Stage:       StageDetail,
		Provider:    s.opts.Provider,
		Messages:    msgs,
		SchemaName:  "presentation_detail",
		Schema:      wfchain.DetailSchema(),
		Model:       s.opts.Model,
		Temperature: &temperature,
		MaxTokens:   positive(s.opts.DetailMaxTokens),
	})
	if err != nil {
		return nil, err
	}
	return ValidateDetail(doc, len(outline.Points))
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
