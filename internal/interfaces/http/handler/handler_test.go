package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckgen-api/internal/application/presentation"
	"deckgen-api/internal/domain/entity"
	"deckgen-api/internal/infrastructure/messaging"
	"deckgen-api/internal/infrastructure/storage"
	apperrors "deckgen-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeService struct {
	outline    *entity.Outline
	outlineErr error
	result     *entity.PresentationResult
	genErr     error
	imageErr   error
	store      *storage.AssetStore

	lastReq       entity.GenerationRequest
	lastImageName string
}

func (f *fakeService) Generate(_ context.Context, req entity.GenerationRequest, _ presentation.ProgressFunc) (*entity.PresentationResult, error) {
	f.lastReq = req
	return f.result, f.genErr
}

func (f *fakeService) GenerateOutline(_ context.Context, req entity.GenerationRequest) (*entity.Outline, []string, error) {
	f.lastReq = req
	return f.outline, nil, f.outlineErr
}

func (f *fakeService) GenerateImage(ctx context.Context, prompt, name string) (*entity.GeneratedImage, error) {
	f.lastImageName = name
	if strings.TrimSpace(prompt) == "" {
		return nil, &apperrors.InvalidInputError{Field: "user_prompt", Reason: "must not be empty"}
	}
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return f.store.Save(ctx, pngBytes, name)
}

type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]*entity.PresentationJob
}

func (s *memJobStore) Save(_ context.Context, job *entity.PresentationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memJobStore) Get(_ context.Context, id string) (*entity.PresentationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.ErrJobNotFound
	}
	return job, nil
}

type fakePublisher struct {
	msgs []*messaging.PresentationJobMessage
	err  error
}

func (p *fakePublisher) PublishPresentationJob(_ context.Context, job *messaging.PresentationJobMessage, _, _ string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.msgs = append(p.msgs, job)
	return "1-0", nil
}

func newAssetStore(t *testing.T) *storage.AssetStore {
	t.Helper()
	s, err := storage.NewAssetStore(filepath.Join(t.TempDir(), "generated_images"), "http://localhost:8000")
	require.NoError(t, err)
	return s
}

func newEngine(h *GenerationHandler, jobs *JobHandler) *gin.Engine {
	r := gin.New()
	r.POST("/generate/outlines", h.GenerateOutlines)
	r.POST("/generate/image", h.GenerateImage)
	r.GET("/generate/get-generated-image", h.GetGeneratedImage)
	r.POST("/generate/presentation", h.GeneratePresentation)
	if jobs != nil {
		r.POST("/generate/presentations/jobs", jobs.CreateJob)
		r.GET("/generate/presentations/jobs/:jid", jobs.GetJob)
	}
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var defaults = GenerationOptions{DefaultSlideCount: 12, DefaultLanguage: "en"}

func TestGenerateOutlines(t *testing.T) {
	svc := &fakeService{outline: &entity.Outline{Title: "Solar Power", Points: []string{"Intro", "Panels", "Costs"}}}
	r := newEngine(NewGenerationHandler(svc, newAssetStore(t), defaults), nil)

	w := do(r, http.MethodPost, "/generate/outlines?user_prompt=solar+power", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	outline := body["outline"].(map[string]any)
	assert.Equal(t, "Solar Power", outline["title"])
	assert.Len(t, outline["outlines"], 3)
	assert.Equal(t, "solar power", svc.lastReq.UserPrompt)
	assert.Equal(t, 12, svc.lastReq.NumSlides)
}

func TestGenerateOutlines_Errors(t *testing.T) {
	t.Run("empty prompt is 400", func(t *testing.T) {
		r := newEngine(NewGenerationHandler(&fakeService{}, newAssetStore(t), defaults), nil)
		w := do(r, http.MethodPost, "/generate/outlines?user_prompt=%20%20", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotEmpty(t, decode(t, w)["error"])
	})

	t.Run("malformed model output is 502 without raw text", func(t *testing.T) {
		svc := &fakeService{outlineErr: &apperrors.MalformedResponseError{Stage: "outline", Raw: "secret raw output"}}
		r := newEngine(NewGenerationHandler(svc, newAssetStore(t), defaults), nil)
		w := do(r, http.MethodPost, "/generate/outlines?user_prompt=x", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.NotContains(t, w.Body.String(), "secret raw output")
	})

	t.Run("legacy mode keeps 200 with error body", func(t *testing.T) {
		svc := &fakeService{outlineErr: &apperrors.ProviderTimeoutError{Provider: "gemini"}}
		opts := defaults
		opts.LegacyOutlineStatus = true
		r := newEngine(NewGenerationHandler(svc, newAssetStore(t), opts), nil)
		w := do(r, http.MethodPost, "/generate/outlines?user_prompt=x", "")
		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.NotEmpty(t, body["error"])
		assert.NotContains(t, body, "outline")
	})
}

func TestGenerateImage(t *testing.T) {
	store := newAssetStore(t)
	svc := &fakeService{store: store}
	h := NewGenerationHandler(svc, store, defaults)
	h.newName = func() string { return "fixed-id" }
	r := newEngine(h, nil)

	w := do(r, http.MethodPost, "/generate/image?user_prompt=a+red+fox", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "fixed-id", svc.lastImageName)
	assert.True(t, strings.HasSuffix(body["file_path"].(string), "fixed-id.png"))
	assert.Equal(t, "http://localhost:8000/generate/get-generated-image?image_name=fixed-id.png", body["file_url"])

	w = do(r, http.MethodGet, "/generate/get-generated-image?image_name=fixed-id.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestGenerateImage_LegacyFixedName(t *testing.T) {
	store := newAssetStore(t)
	svc := &fakeService{store: store}
	opts := defaults
	opts.LegacyFixedImageName = true
	r := newEngine(NewGenerationHandler(svc, store, opts), nil)

	w := do(r, http.MethodPost, "/generate/image?user_prompt=x", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image.jpg", svc.lastImageName)
}

func TestGenerateImage_ProviderFailure(t *testing.T) {
	svc := &fakeService{imageErr: &apperrors.ImageGenerationFailed{
		Provider: "worker",
		Cause:    &apperrors.ProviderHTTPError{Provider: "worker", StatusCode: 500, Body: "worker stack trace"},
	}}
	r := newEngine(NewGenerationHandler(svc, newAssetStore(t), defaults), nil)

	w := do(r, http.MethodPost, "/generate/image?user_prompt=x", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "stack trace")
}

func TestGetGeneratedImage_Errors(t *testing.T) {
	r := newEngine(NewGenerationHandler(&fakeService{}, newAssetStore(t), defaults), nil)

	w := do(r, http.MethodGet, "/generate/get-generated-image?image_name=..%2F..%2Fetc%2Fpasswd", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/generate/get-generated-image?image_name=photo1.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Image 'photo1.png' not found", decode(t, w)["error"])
}

func TestGeneratePresentation(t *testing.T) {
	svc := &fakeService{result: &entity.PresentationResult{
		Presentation: &entity.Presentation{ID: "p1", Title: "Deck"},
		State:        entity.StateCompleted,
	}}
	r := newEngine(NewGenerationHandler(svc, newAssetStore(t), defaults), nil)

	w := do(r, http.MethodPost, "/generate/presentation", `{"user_prompt":"quarterly results","num_slides":6,"tone":"formal"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "completed", body["state"])
	assert.Equal(t, 6, svc.lastReq.NumSlides)
	assert.Equal(t, entity.ToneFormal, svc.lastReq.Tone)
	assert.Equal(t, "en", svc.lastReq.Language)

	w = do(r, http.MethodPost, "/generate/presentation", `{"user_prompt":"x","tone":"sarcastic"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/generate/presentation", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs(t *testing.T) {
	t.Run("unavailable without redis", func(t *testing.T) {
		r := newEngine(NewGenerationHandler(&fakeService{}, newAssetStore(t), defaults), NewJobHandler(nil, nil, defaults))
		assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/generate/presentations/jobs", `{"user_prompt":"x"}`).Code)
		assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/generate/presentations/jobs/abc", "").Code)
	})

	t.Run("create and get", func(t *testing.T) {
		store := &memJobStore{jobs: map[string]*entity.PresentationJob{}}
		pub := &fakePublisher{}
		jobs := NewJobHandler(store, pub, defaults)
		jobs.newID = func() string { return "job-42" }
		r := newEngine(NewGenerationHandler(&fakeService{}, newAssetStore(t), defaults), jobs)

		w := do(r, http.MethodPost, "/generate/presentations/jobs", `{"user_prompt":"ocean currents","num_slides":4}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "job-42", decode(t, w)["job_id"])
		require.Len(t, pub.msgs, 1)
		assert.Equal(t, 4, pub.msgs[0].Request.NumSlides)

		w = do(r, http.MethodGet, "/generate/presentations/jobs/job-42", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pending", decode(t, w)["status"])

		w = do(r, http.MethodGet, "/generate/presentations/jobs/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("publish failure marks job failed", func(t *testing.T) {
		store := &memJobStore{jobs: map[string]*entity.PresentationJob{}}
		jobs := NewJobHandler(store, &fakePublisher{err: errors.New("redis down")}, defaults)
		jobs.newID = func() string { return "job-x" }
		r := newEngine(NewGenerationHandler(&fakeService{}, newAssetStore(t), defaults), jobs)

		w := do(r, http.MethodPost, "/generate/presentations/jobs", `{"user_prompt":"x"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		job, err := store.Get(context.Background(), "job-x")
		require.NoError(t, err)
		assert.Equal(t, entity.JobStatusFailed, job.Status)
	})

	t.Run("invalid request is rejected before enqueue", func(t *testing.T) {
		pub := &fakePublisher{}
		jobs := NewJobHandler(&memJobStore{jobs: map[string]*entity.PresentationJob{}}, pub, defaults)
		r := newEngine(NewGenerationHandler(&fakeService{}, newAssetStore(t), defaults), jobs)

		w := do(r, http.MethodPost, "/generate/presentations/jobs", `{"user_prompt":"x","num_slides":99}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, pub.msgs)
	})
}

func TestReady(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })

	run := func(h *HealthHandler) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/ready", h.Ready)
		return do(r, http.MethodGet, "/ready", "")
	}

	assert.Equal(t, http.StatusOK, run(NewHealthHandler(ok, nil)).Code)
	assert.Equal(t, http.StatusOK, run(NewHealthHandler(ok, down)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, run(NewHealthHandler(down, ok)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, run(NewHealthHandler(nil, nil)).Code)
}
