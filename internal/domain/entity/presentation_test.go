package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "deckgen-api/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func TestNewGenerationRequest_AppliesDefaultsAndPatch(t *testing.T) {
	base := DefaultGenerationRequest(0, "")
	assert.Equal(t, DefaultSlideCount, base.NumSlides)
	assert.Equal(t, DefaultLanguage, base.Language)
	assert.Equal(t, ToneNeutral, base.Tone)

	req, err := NewGenerationRequest(base, RequestPatch{
		UserPrompt: ptr("  Intro to distributed systems "),
		Tone:       ptr(ToneTechnical),
		NumSlides:  ptr(6),
	})
	require.NoError(t, err)
	assert.Equal(t, "Intro to distributed systems", req.UserPrompt)
	assert.Equal(t, ToneTechnical, req.Tone)
	assert.Equal(t, 6, req.NumSlides)
	assert.Equal(t, "en", req.Language)
}

func TestNewGenerationRequest_Rejects(t *testing.T) {
	base := DefaultGenerationRequest(12, "en")
	cases := []struct {
		name  string
		patch RequestPatch
		field string
	}{
		{"empty prompt", RequestPatch{UserPrompt: ptr("   ")}, "user_prompt"},
		{"too many slides", RequestPatch{UserPrompt: ptr("x"), NumSlides: ptr(31)}, "num_slides"},
		{"unknown tone", RequestPatch{UserPrompt: ptr("x"), Tone: ptr(Tone("grumpy"))}, "tone"},
		{"unknown background", RequestPatch{UserPrompt: ptr("x"), AudienceBackground: ptr(AudienceBackground("mixed"))}, "audience_background"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGenerationRequest(base, tc.patch)
			var invalid *apperrors.InvalidInputError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tc.field, invalid.Field)
		})
	}
}

func TestSlideMerge_NonNilWins(t *testing.T) {
	s := Slide{ID: "slide_1", Title: "Old", Points: []string{"a"}, ImageRequired: true, ImageGenPrompt: "p"}
	got := s.Merge(SlidePatch{ImageURL: ptr("http://x/a.png"), Points: []string{"b", "c"}})

	assert.Equal(t, "Old", got.Title)
	assert.Equal(t, []string{"b", "c"}, got.Points)
	assert.Equal(t, "http://x/a.png", got.ImageURL)
	assert.True(t, got.ImageRequired)
	assert.Equal(t, []string{"a"}, s.Points)
}

func TestPipelineState_Transitions(t *testing.T) {
	assert.True(t, StateReceived.CanTransition(StateOutlineReady))
	assert.True(t, StateOutlineReady.CanTransition(StateDetailReady))
	assert.True(t, StateDetailReady.CanTransition(StateCompleted))
	assert.True(t, StateOutlineReady.CanTransition(StateFailed))

	assert.False(t, StateReceived.CanTransition(StateDetailReady))
	assert.False(t, StateDetailReady.CanTransition(StateOutlineReady))
	assert.False(t, StateCompleted.CanTransition(StateFailed))
	assert.False(t, StateFailed.CanTransition(StateReceived))
	assert.False(t, StateOutlineReady.CanTransition(StateOutlineReady))
}

func TestPresentationJob_Lifecycle(t *testing.T) {
	job := NewPresentationJob("j1", GenerationRequest{UserPrompt: "x"})
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	job.Advance(StateOutlineReady)
	assert.Equal(t, 30, job.Progress)
	job.Advance(StateFailed)
	assert.Equal(t, 30, job.Progress)

	job.Complete(&PresentationResult{Presentation: &Presentation{Title: "t"}})
	assert.True(t, job.IsFinished())
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.CompletedAt)
}

func TestPresentationJob_RetryStaysNonTerminal(t *testing.T) {
	job := NewPresentationJob("j1", GenerationRequest{UserPrompt: "x"})
	job.Start()
	job.Advance(StateFailed)

	job.Retry("PROVIDER_TIMEOUT", "upstream provider timed out")
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, StateReceived, job.State)
	assert.False(t, job.IsFinished())
	assert.Nil(t, job.CompletedAt)
	assert.Equal(t, "upstream provider timed out", job.ErrorMessage)

	job.Start()
	assert.Equal(t, 2, job.Attempts)
	assert.Empty(t, job.ErrorCode)
}
