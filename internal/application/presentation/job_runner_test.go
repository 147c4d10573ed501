package presentation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgen-api/internal/domain/entity"
	apperrors "deckgen-api/pkg/errors"
)

type memJobs struct {
	mu      sync.Mutex
	jobs    map[string]entity.PresentationJob
	history []entity.PipelineState
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]entity.PresentationJob{}}
}

func (m *memJobs) Save(_ context.Context, job *entity.PresentationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	m.history = append(m.history, job.State)
	return nil
}

func (m *memJobs) Get(_ context.Context, id string) (*entity.PresentationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	return &job, nil
}

type scriptedGenerator struct {
	result *entity.PresentationResult
	err    error
	calls  int
}

func (g *scriptedGenerator) Generate(ctx context.Context, _ entity.GenerationRequest, progress ProgressFunc) (*entity.PresentationResult, error) {
	g.calls++
	states := []entity.PipelineState{entity.StateReceived, entity.StateOutlineReady, entity.StateDetailReady, entity.StateCompleted}
	if g.err != nil {
		states = []entity.PipelineState{entity.StateReceived, entity.StateFailed}
	}
	for _, s := range states {
		if progress != nil {
			progress(ctx, s)
		}
	}
	return g.result, g.err
}

func jobRequest() entity.GenerationRequest {
	req := entity.DefaultGenerationRequest(6, "en")
	req.UserPrompt = "coral reefs"
	return req
}

func TestJobRunner_Completes(t *testing.T) {
	jobs := newMemJobs()
	require.NoError(t, jobs.Save(context.Background(), entity.NewPresentationJob("j1", jobRequest())))

	gen := &scriptedGenerator{result: &entity.PresentationResult{
		Presentation: &entity.Presentation{ID: "p1"},
		State:        entity.StateCompleted,
	}}
	require.NoError(t, NewJobRunner(jobs, gen, 3).Run(context.Background(), "j1", jobRequest()))

	job, err := jobs.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "p1", job.Result.Presentation.ID)
	assert.Contains(t, jobs.history, entity.StateOutlineReady)
	assert.Contains(t, jobs.history, entity.StateDetailReady)
}

func TestJobRunner_SkipsCompletedJob(t *testing.T) {
	jobs := newMemJobs()
	done := entity.NewPresentationJob("j1", jobRequest())
	done.Complete(&entity.PresentationResult{State: entity.StateCompleted})
	require.NoError(t, jobs.Save(context.Background(), done))

	gen := &scriptedGenerator{}
	require.NoError(t, NewJobRunner(jobs, gen, 3).Run(context.Background(), "j1", jobRequest()))
	assert.Equal(t, 0, gen.calls)
}

func TestJobRunner_RebuildsExpiredJob(t *testing.T) {
	jobs := newMemJobs()
	gen := &scriptedGenerator{result: &entity.PresentationResult{State: entity.StateCompleted}}
	require.NoError(t, NewJobRunner(jobs, gen, 3).Run(context.Background(), "gone", jobRequest()))

	job, err := jobs.Get(context.Background(), "gone")
	require.NoError(t, err)
	assert.Equal(t, "coral reefs", job.Request.UserPrompt)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
}

func TestJobRunner_Failures(t *testing.T) {
	t.Run("retryable error keeps job pending until the last attempt", func(t *testing.T) {
		jobs := newMemJobs()
		gen := &scriptedGenerator{err: &apperrors.ProviderTimeoutError{Provider: "gemini"}}
		runner := NewJobRunner(jobs, gen, 3)

		for attempt := 1; attempt <= 2; attempt++ {
			require.Error(t, runner.Run(context.Background(), "j1", jobRequest()))

			job, _ := jobs.Get(context.Background(), "j1")
			assert.Equal(t, entity.JobStatusPending, job.Status)
			assert.False(t, job.IsFinished())
			assert.Equal(t, attempt, job.Attempts)
			assert.Equal(t, string(apperrors.CodeProviderTimeout), job.ErrorCode)
			assert.NotEmpty(t, job.ErrorMessage)
			assert.Nil(t, job.CompletedAt)
		}

		require.Error(t, runner.Run(context.Background(), "j1", jobRequest()))
		job, _ := jobs.Get(context.Background(), "j1")
		assert.Equal(t, entity.JobStatusFailed, job.Status)
		assert.Equal(t, 3, job.Attempts)
		assert.Equal(t, string(apperrors.CodeProviderTimeout), job.ErrorCode)
		assert.NotNil(t, job.CompletedAt)
	})

	t.Run("retry after pending completes the job", func(t *testing.T) {
		jobs := newMemJobs()
		gen := &scriptedGenerator{err: &apperrors.ProviderTimeoutError{Provider: "gemini"}}
		runner := NewJobRunner(jobs, gen, 3)
		require.Error(t, runner.Run(context.Background(), "j1", jobRequest()))

		gen.err = nil
		gen.result = &entity.PresentationResult{State: entity.StateCompleted}
		require.NoError(t, runner.Run(context.Background(), "j1", jobRequest()))

		job, _ := jobs.Get(context.Background(), "j1")
		assert.Equal(t, entity.JobStatusCompleted, job.Status)
		assert.Equal(t, 2, job.Attempts)
		assert.Empty(t, job.ErrorCode)
	})

	t.Run("permanent error is recorded and acked", func(t *testing.T) {
		jobs := newMemJobs()
		gen := &scriptedGenerator{err: &apperrors.ProviderError{Provider: "gemini", StatusCode: 401, Err: errors.New("status code: 401, secret body")}}
		require.NoError(t, NewJobRunner(jobs, gen, 3).Run(context.Background(), "j1", jobRequest()))

		job, _ := jobs.Get(context.Background(), "j1")
		assert.Equal(t, entity.JobStatusFailed, job.Status)
		assert.NotContains(t, job.ErrorMessage, "secret body")
	})
}
