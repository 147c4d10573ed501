package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"deckgen-api/internal/domain/entity"
	apperrors "deckgen-api/pkg/errors"
)

// MinOutlinePoints 大纲提示词要求的最少要点数
const MinOutlinePoints = 6

// Compiler 构建大纲 / 详情两类提示词，纯文本构造，无副作用
type Compiler struct {
	registry *Registry
}

func NewCompiler(registry *Registry) *Compiler {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Compiler{registry: registry}
}

// CompileOutline 返回 [system, user] 两条消息
func (c *Compiler) CompileOutline(ctx context.Context, req entity.GenerationRequest) ([]*schema.Message, error) {
	topic := strings.TrimSpace(req.UserPrompt)
	if topic == "" {
		return nil, &apperrors.InvalidInputError{Field: "user_prompt", Reason: "must not be empty"}
	}

	target := max(req.NumSlides, MinOutlinePoints)
	return c.format(ctx, PromptOutlineV1, map[string]any{
		"topic":         topic,
		"language":      languageOrDefault(req.Language),
		"guidance":      BuildGuidanceBlock(req),
		"min_points":    MinOutlinePoints,
		"target_points": target,
	})
}

// CompileDetail 按大纲顺序列出要点及其 slide_<n> 编号
func (c *Compiler) CompileDetail(ctx context.Context, req entity.GenerationRequest, outline *entity.Outline) ([]*schema.Message, error) {
	topic := strings.TrimSpace(req.UserPrompt)
	if topic == "" {
		return nil, &apperrors.InvalidInputError{Field: "user_prompt", Reason: "must not be empty"}
	}
	if outline == nil || len(outline.Points) == 0 {
		return nil, &apperrors.InvalidInputError{Field: "outline", Reason: "must contain at least one point"}
	}

	return c.format(ctx, PromptDetailV1, map[string]any{
		"topic":         topic,
		"title":         strings.TrimSpace(outline.Title),
		"language":      languageOrDefault(req.Language),
		"guidance":      BuildGuidanceBlock(req),
		"slide_count":   len(outline.Points),
		"outline_block": BuildOutlineBlock(outline.Points),
	})
}

func (c *Compiler) format(ctx context.Context, id PromptID, vars map[string]any) ([]*schema.Message, error) {
	tpl, err := c.registry.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("format prompt %s: %w", id, err)
	}
	return msgs, nil
}

// BuildOutlineBlock 生成 "1. [slide_1] ..." 形式的有序列表
func BuildOutlineBlock(points []string) string {
	var b strings.Builder
	for i, p := range points {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, entity.SlideID(i+1), strings.TrimSpace(p))
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildGuidanceBlock 将可选的演示参数转为提示词中的说明行，无参数时为空
func BuildGuidanceBlock(req entity.GenerationRequest) string {
	var lines []string
	add := func(label, value string) {
		if value == "" {
			return
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, strings.ReplaceAll(value, "_", " ")))
	}
	add("Presentation type", string(req.PresentationType))
	add("Goal", string(req.Goal))
	add("Tone", string(req.Tone))
	add("Target audience", string(req.TargetAudience))
	add("Audience background", string(req.AudienceBackground))
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func languageOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return entity.DefaultLanguage
	}
	return strings.TrimSpace(lang)
}
