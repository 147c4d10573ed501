// Package entity 定义领域实体
package entity

import (
	"fmt"
	"slices"
	"strings"

	apperrors "deckgen-api/pkg/errors"
)

// PresentationType 演示文稿类型
type PresentationType string

const (
	PresentationTypePitchDeck      PresentationType = "pitch_deck"
	PresentationTypeSalesDeck      PresentationType = "sales_deck"
	PresentationTypeReport         PresentationType = "report"
	PresentationTypeTraining       PresentationType = "training"
	PresentationTypeLecture        PresentationType = "lecture"
	PresentationTypeMarketing      PresentationType = "marketing"
	PresentationTypeInternalUpdate PresentationType = "internal_update"
	PresentationTypeInvestorDeck   PresentationType = "investor_deck"
	PresentationTypeOther          PresentationType = "other"
)

// Goal 演示目的
type Goal string

const (
	GoalInform     Goal = "inform"
	GoalPersuade   Goal = "persuade"
	GoalSell       Goal = "sell"
	GoalUpdate     Goal = "update"
	GoalTrain      Goal = "train"
	GoalRaiseFunds Goal = "raise_funds"
	GoalOnboard    Goal = "onboard"
	GoalOther      Goal = "other"
)

// Tone 语气
type Tone string

const (
	ToneFormal        Tone = "formal"
	ToneInformal      Tone = "informal"
	ToneStorytelling  Tone = "storytelling"
	ToneDataDriven    Tone = "data_driven"
	ToneInspirational Tone = "inspirational"
	TonePlayful       Tone = "playful"
	ToneTechnical     Tone = "technical"
	ToneNeutral       Tone = "neutral"
)

// TargetAudience 目标受众
type TargetAudience string

const (
	AudienceExecutives TargetAudience = "executives"
	AudienceStudents   TargetAudience = "students"
	AudienceInvestors  TargetAudience = "investors"
	AudienceCustomers  TargetAudience = "customers"
)

// AudienceBackground 受众背景
type AudienceBackground string

const (
	BackgroundTech    AudienceBackground = "tech"
	BackgroundNonTech AudienceBackground = "non-tech"
)

var (
	presentationTypes = []PresentationType{
		PresentationTypePitchDeck, PresentationTypeSalesDeck, PresentationTypeReport,
		PresentationTypeTraining, PresentationTypeLecture, PresentationTypeMarketing,
		PresentationTypeInternalUpdate, PresentationTypeInvestorDeck, PresentationTypeOther,
	}
	goals = []Goal{
		GoalInform, GoalPersuade, GoalSell, GoalUpdate, GoalTrain, GoalRaiseFunds, GoalOnboard, GoalOther,
	}
	tones = []Tone{
		ToneFormal, ToneInformal, ToneStorytelling, ToneDataDriven,
		ToneInspirational, TonePlayful, ToneTechnical, ToneNeutral,
	}
	audiences   = []TargetAudience{AudienceExecutives, AudienceStudents, AudienceInvestors, AudienceCustomers}
	backgrounds = []AudienceBackground{BackgroundTech, BackgroundNonTech}
)

const (
	DefaultSlideCount = 12
	DefaultLanguage   = "en"
	MaxSlideCount     = 30
)

// GenerationRequest 一次生成调用的输入，创建后不再修改
type GenerationRequest struct {
	UserPrompt         string             `json:"user_prompt"`
	PresentationType   PresentationType   `json:"presentation_type,omitempty"`
	Goal               Goal               `json:"goal,omitempty"`
	Tone               Tone               `json:"tone,omitempty"`
	TargetAudience     TargetAudience     `json:"target_audience,omitempty"`
	AudienceBackground AudienceBackground `json:"audience_background,omitempty"`
	NumSlides          int                `json:"num_slides"`
	Language           string             `json:"language"`
}

// RequestPatch 请求的可选字段，非 nil 字段覆盖基准值
type RequestPatch struct {
	UserPrompt         *string             `json:"user_prompt,omitempty"`
	PresentationType   *PresentationType   `json:"presentation_type,omitempty"`
	Goal               *Goal               `json:"goal,omitempty"`
	Tone               *Tone               `json:"tone,omitempty"`
	TargetAudience     *TargetAudience     `json:"target_audience,omitempty"`
	AudienceBackground *AudienceBackground `json:"audience_background,omitempty"`
	NumSlides          *int                `json:"num_slides,omitempty"`
	Language           *string             `json:"language,omitempty"`
}

// DefaultGenerationRequest 返回带默认值的请求基准
func DefaultGenerationRequest(numSlides int, language string) GenerationRequest {
	if numSlides <= 0 {
		numSlides = DefaultSlideCount
	}
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	return GenerationRequest{
		Tone:      ToneNeutral,
		NumSlides: numSlides,
		Language:  language,
	}
}

// Merge 合并补丁，非 nil 字段优先
func (r GenerationRequest) Merge(p RequestPatch) GenerationRequest {
	out := r
	if p.UserPrompt != nil {
		out.UserPrompt = *p.UserPrompt
	}
	if p.PresentationType != nil {
		out.PresentationType = *p.PresentationType
	}
	if p.Goal != nil {
		out.Goal = *p.Goal
	}
	if p.Tone != nil {
		out.Tone = *p.Tone
	}
	if p.TargetAudience != nil {
		out.TargetAudience = *p.TargetAudience
	}
	if p.AudienceBackground != nil {
		out.AudienceBackground = *p.AudienceBackground
	}
	if p.NumSlides != nil {
		out.NumSlides = *p.NumSlides
	}
	if p.Language != nil {
		out.Language = *p.Language
	}
	return out
}

// NewGenerationRequest 以 base 为基准合并补丁并校验
func NewGenerationRequest(base GenerationRequest, patch RequestPatch) (GenerationRequest, error) {
	req := base.Merge(patch)
	req.UserPrompt = strings.TrimSpace(req.UserPrompt)
	req.Language = strings.TrimSpace(req.Language)
	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// Validate 校验请求字段
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.UserPrompt) == "" {
		return &apperrors.InvalidInputError{Field: "user_prompt", Reason: "must not be empty"}
	}
	if r.NumSlides < 1 || r.NumSlides > MaxSlideCount {
		return &apperrors.InvalidInputError{Field: "num_slides", Reason: fmt.Sprintf("must be between 1 and %d", MaxSlideCount)}
	}
	if r.Language == "" {
		return &apperrors.InvalidInputError{Field: "language", Reason: "must not be empty"}
	}
	if err := checkEnum("presentation_type", r.PresentationType, presentationTypes); err != nil {
		return err
	}
	if err := checkEnum("goal", r.Goal, goals); err != nil {
		return err
	}
	if err := checkEnum("tone", r.Tone, tones); err != nil {
		return err
	}
	if err := checkEnum("target_audience", r.TargetAudience, audiences); err != nil {
		return err
	}
	return checkEnum("audience_background", r.AudienceBackground, backgrounds)
}

func checkEnum[T ~string](field string, v T, allowed []T) error {
	if v == "" || slices.Contains(allowed, v) {
		return nil
	}
	return &apperrors.InvalidInputError{Field: field, Reason: fmt.Sprintf("unsupported value %q", string(v))}
}

// Outline 大纲：标题 + 有序要点
type Outline struct {
	Title  string   `json:"title"`
	Points []string `json:"outlines"`
}

// Slide 单页幻灯片
type Slide struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Points         []string `json:"points"`
	ImageRequired  bool     `json:"image_required"`
	ImageGenPrompt string   `json:"image_gen_prompt"`
	ImageURL       string   `json:"image_url"`
}

// SlidePatch 幻灯片的部分更新
type SlidePatch struct {
	Title          *string
	Points         []string
	ImageRequired  *bool
	ImageGenPrompt *string
	ImageURL       *string
}

// Merge 合并补丁，非 nil 字段优先；Points 非 nil 时整体替换
func (s Slide) Merge(p SlidePatch) Slide {
	out := s
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Points != nil {
		out.Points = slices.Clone(p.Points)
	}
	if p.ImageRequired != nil {
		out.ImageRequired = *p.ImageRequired
	}
	if p.ImageGenPrompt != nil {
		out.ImageGenPrompt = *p.ImageGenPrompt
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	return out
}

// SlideID 按大纲位置（1 基）生成幻灯片 ID
func SlideID(position int) string {
	return fmt.Sprintf("slide_%d", position)
}

// Presentation 组装完成的演示文稿，每个大纲要点对应一页
type Presentation struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Slides      []Slide `json:"slides"`
}

// GeneratedImage 已持久化的生成图片
type GeneratedImage struct {
	Name     string `json:"name"`
	Path     string `json:"file_path"`
	URL      string `json:"file_url"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// ImageFailure 单页图片生成失败记录
type ImageFailure struct {
	SlideID string `json:"slide_id"`
	Reason  string `json:"reason"`
}

// PresentationResult 编排器的输出
type PresentationResult struct {
	Presentation  *Presentation  `json:"presentation"`
	State         PipelineState  `json:"state"`
	Warnings      []string       `json:"warnings,omitempty"`
	ImageFailures []ImageFailure `json:"image_failures,omitempty"`
}
