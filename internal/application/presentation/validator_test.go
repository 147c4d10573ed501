package presentation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgen-api/internal/domain/entity"
	apperrors "deckgen-api/pkg/errors"
)

func TestValidateOutline(t *testing.T) {
	outline, warnings, err := ValidateOutline(outlineDoc(6))
	require.NoError(t, err)
	assert.Equal(t, "Distributed Systems 101", outline.Title)
	assert.Len(t, outline.Points, 6)
	assert.Empty(t, warnings)
}

func TestValidateOutline_FewPointsWarns(t *testing.T) {
	outline, warnings, err := ValidateOutline(outlineDoc(2))
	require.NoError(t, err)
	assert.Len(t, outline.Points, 2)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "fewer than the recommended 6")
}

func TestValidateOutline_Rejects(t *testing.T) {
	cases := map[string]map[string]any{
		"missing title":    {"outlines": []any{"a"}},
		"blank title":      {"title": "  ", "outlines": []any{"a"}},
		"outlines missing": {"title": "T"},
		"outlines empty":   {"title": "T", "outlines": []any{}},
		"outlines string":  {"title": "T", "outlines": "a, b"},
		"blank point":      {"title": "T", "outlines": []any{"a", ""}},
		"numeric point":    {"title": "T", "outlines": []any{"a", 3}},
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			outline, _, err := ValidateOutline(doc)
			assert.Nil(t, outline)
			var ov *apperrors.OutlineValidationError
			require.True(t, errors.As(err, &ov), "%v", err)
			assert.True(t, apperrors.IsRetryable(err))
		})
	}
}

func TestValidateDetail_CardinalityAcrossLengths(t *testing.T) {
	for n := 1; n <= 20; n++ {
		pres, err := ValidateDetail(detailDoc(n, nil), n)
		require.NoError(t, err, "n=%d", n)
		require.Len(t, pres.Slides, n)
		for i, s := range pres.Slides {
			assert.Equal(t, entity.SlideID(i+1), s.ID)
		}

		_, err = ValidateDetail(detailDoc(n, nil), n+1)
		var sv *apperrors.SlideValidationError
		require.True(t, errors.As(err, &sv))
		assert.Equal(t, -1, sv.SlideIndex)
	}
}

func TestValidateDetail_SlideRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s map[string]any)
		rule   string
	}{
		{"two points", func(s map[string]any) { s["points"] = []any{bullet(1), bullet(2)} }, "3-5 entries"},
		{"six points", func(s map[string]any) {
			s["points"] = []any{bullet(1), bullet(2), bullet(3), bullet(4), bullet(5), bullet(6)}
		}, "3-5 entries"},
		{"short bullet", func(s map[string]any) { s["points"] = []any{bullet(1), bullet(2), "too short"} }, "55-65 characters"},
		{"long bullet", func(s map[string]any) { s["points"] = []any{bullet(1), bullet(2), strings.Repeat("y", 66)} }, "55-65 characters"},
		{"prompt without image", func(s map[string]any) {
			s["image_required"] = false
			s["image_gen_prompt"] = "a cat"
		}, "must be empty when image_required is false"},
		{"image without prompt", func(s map[string]any) {
			s["image_required"] = true
			s["image_gen_prompt"] = ""
		}, "must be set when image_required is true"},
		{"prefilled url", func(s map[string]any) { s["image_url"] = "http://evil/x.png" }, "image_url must be empty"},
		{"string bool", func(s map[string]any) { s["image_required"] = "true" }, "image_required must be a boolean"},
		{"missing id", func(s map[string]any) { delete(s, "id") }, "id must be"},
		{"missing title", func(s map[string]any) { s["title"] = "" }, "title must be"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := detailDoc(3, nil)
			tc.mutate(doc["slides"].([]any)[1].(map[string]any))

			_, err := ValidateDetail(doc, 3)
			var sv *apperrors.SlideValidationError
			require.True(t, errors.As(err, &sv), "%v", err)
			assert.Equal(t, 1, sv.SlideIndex)
			assert.Contains(t, sv.Rule, tc.rule)
			assert.True(t, apperrors.IsRetryable(err))
		})
	}
}

func TestValidateDetail_BulletBoundaries(t *testing.T) {
	for _, n := range []int{55, 60, 65} {
		doc := detailDoc(1, nil)
		doc["slides"].([]any)[0].(map[string]any)["points"] = []any{
			strings.Repeat("a", n), strings.Repeat("b", n), strings.Repeat("c", n),
		}
		_, err := ValidateDetail(doc, 1)
		assert.NoError(t, err, "len=%d", n)
	}
}

func TestValidateDetail_ImageRequiredImpliesPrompt(t *testing.T) {
	pres, err := ValidateDetail(detailDoc(4, func(i int) bool { return i%2 == 0 }), 4)
	require.NoError(t, err)
	for _, s := range pres.Slides {
		if !s.ImageRequired {
			assert.Empty(t, s.ImageGenPrompt, s.ID)
		} else {
			assert.NotEmpty(t, s.ImageGenPrompt, s.ID)
		}
		assert.Empty(t, s.ImageURL)
	}
}

func TestValidateDetail_RewritesIDsPositionally(t *testing.T) {
	doc := detailDoc(2, nil)
	doc["slides"].([]any)[0].(map[string]any)["id"] = "intro"
	pres, err := ValidateDetail(doc, 2)
	require.NoError(t, err)
	assert.Equal(t, "slide_1", pres.Slides[0].ID)
	assert.Equal(t, "slide_2", pres.Slides[1].ID)
}

func TestValidateDetail_DocumentFields(t *testing.T) {
	doc := detailDoc(2, nil)
	delete(doc, "description")
	_, err := ValidateDetail(doc, 2)
	var sv *apperrors.SlideValidationError
	require.True(t, errors.As(err, &sv))
	assert.Contains(t, sv.Rule, "description")
}
