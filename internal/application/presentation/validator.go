package presentation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"deckgen-api/internal/domain/entity"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/metrics"
)

// 详情阶段的形状约束
const (
	MinSlidePoints    = 3
	MaxSlidePoints    = 5
	MinBulletRunes    = 55
	MaxBulletRunes    = 65
	RecommendedPoints = 6
)

// ValidateOutline 校验大纲文档；要点少于推荐数量只产生警告
func ValidateOutline(doc map[string]any) (*entity.Outline, []string, error) {
	var issues []error
	fail := func(rule string) { issues = append(issues, &apperrors.OutlineValidationError{Rule: rule}) }

	title, ok := nonEmptyString(doc["title"])
	if !ok {
		fail("title must be a non-empty string")
	}

	var points []string
	rawPoints, ok := doc["outlines"].([]any)
	switch {
	case !ok:
		fail("outlines must be an array of strings")
	case len(rawPoints) == 0:
		fail("outlines must contain at least one point")
	default:
		points = make([]string, 0, len(rawPoints))
		for i, p := range rawPoints {
			s, ok := nonEmptyString(p)
			if !ok {
				fail(fmt.Sprintf("outlines[%d] must be a non-empty string", i))
				continue
			}
			points = append(points, s)
		}
	}

	if len(issues) > 0 {
		metrics.ValidationTotal.WithLabelValues("outline", "failed").Inc()
		return nil, nil, &apperrors.ValidationError{Stage: "outline", Issues: issues}
	}

	warnings := OutlineWarnings(len(points))
	if len(warnings) > 0 {
		metrics.ValidationTotal.WithLabelValues("outline", "warning").Inc()
	} else {
		metrics.ValidationTotal.WithLabelValues("outline", "passed").Inc()
	}
	return &entity.Outline{Title: title, Points: points}, warnings, nil
}

// OutlineWarnings 非阻断的大纲提示，缓存命中时同样据此重新生成
func OutlineWarnings(points int) []string {
	if points >= RecommendedPoints {
		return nil
	}
	return []string{fmt.Sprintf("outline has %d points, fewer than the recommended %d", points, RecommendedPoints)}
}

// ValidateDetail 校验详情文档，幻灯片数量必须等于大纲要点数
// 通过后按位置重写幻灯片 ID（slide_1..slide_n），image_url 保持为空
func ValidateDetail(doc map[string]any, outlineLen int) (*entity.Presentation, error) {
	var issues []error
	docFail := func(rule string) { issues = append(issues, &apperrors.SlideValidationError{SlideIndex: -1, Rule: rule}) }

	title, ok := nonEmptyString(doc["title"])
	if !ok {
		docFail("title must be a non-empty string")
	}
	description, ok := nonEmptyString(doc["description"])
	if !ok {
		docFail("description must be a non-empty string")
	}

	rawSlides, ok := doc["slides"].([]any)
	if !ok {
		docFail("slides must be an array")
	} else if len(rawSlides) != outlineLen {
		docFail(fmt.Sprintf("expected %d slides, got %d", outlineLen, len(rawSlides)))
	}

	// 数量不匹配时无法按位置对应，直接返回文档级错误
	if len(issues) > 0 && (rawSlides == nil || len(rawSlides) != outlineLen) {
		metrics.ValidationTotal.WithLabelValues("detail", "failed").Inc()
		return nil, &apperrors.ValidationError{Stage: "detail", Issues: issues}
	}

	slides := make([]entity.Slide, 0, len(rawSlides))
	for i, raw := range rawSlides {
		slide, slideIssues := validateSlide(i, raw)
		issues = append(issues, slideIssues...)
		slides = append(slides, slide)
	}

	if len(issues) > 0 {
		metrics.ValidationTotal.WithLabelValues("detail", "failed").Inc()
		return nil, &apperrors.ValidationError{Stage: "detail", Issues: issues}
	}
	metrics.ValidationTotal.WithLabelValues("detail", "passed").Inc()
	return &entity.Presentation{Title: title, Description: description, Slides: slides}, nil
}

func validateSlide(index int, raw any) (entity.Slide, []error) {
	var issues []error
	fail := func(rule string) {
		issues = append(issues, &apperrors.SlideValidationError{SlideIndex: index, Rule: rule})
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		fail("slide must be an object")
		return entity.Slide{}, issues
	}

	slide := entity.Slide{ID: entity.SlideID(index + 1)}

	if _, ok := nonEmptyString(obj["id"]); !ok {
		fail("id must be a non-empty string")
	}
	if slide.Title, ok = nonEmptyString(obj["title"]); !ok {
		fail("title must be a non-empty string")
	}

	rawPoints, ok := obj["points"].([]any)
	if !ok {
		fail("points must be an array of strings")
	} else {
		if n := len(rawPoints); n < MinSlidePoints || n > MaxSlidePoints {
			fail(fmt.Sprintf("points must have %d-%d entries, got %d", MinSlidePoints, MaxSlidePoints, n))
		}
		for j, p := range rawPoints {
			s, isString := p.(string)
			if !isString {
				fail(fmt.Sprintf("points[%d] must be a string", j))
				continue
			}
			s = strings.TrimSpace(s)
			if n := utf8.RuneCountInString(s); n < MinBulletRunes || n > MaxBulletRunes {
				fail(fmt.Sprintf("points[%d] must be %d-%d characters, got %d", j, MinBulletRunes, MaxBulletRunes, n))
			}
			slide.Points = append(slide.Points, s)
		}
	}

	required, ok := obj["image_required"].(bool)
	if !ok {
		fail("image_required must be a boolean")
	}
	slide.ImageRequired = required

	prompt, ok := obj["image_gen_prompt"].(string)
	switch {
	case !ok:
		fail("image_gen_prompt must be a string")
	case !required && prompt != "":
		fail("image_gen_prompt must be empty when image_required is false")
	case required && strings.TrimSpace(prompt) == "":
		fail("image_gen_prompt must be set when image_required is true")
	}
	slide.ImageGenPrompt = strings.TrimSpace(prompt)

	url, ok := obj["image_url"].(string)
	switch {
	case !ok:
		fail("image_url must be a string")
	case url != "":
		fail("image_url must be empty before image generation")
	}

	return slide, issues
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
