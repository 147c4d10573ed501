package presentation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"deckgen-api/internal/domain/entity"
	wfchain "deckgen-api/internal/workflow/chain"
	apperrors "deckgen-api/pkg/errors"
)

// bullet 返回长度恰为 60 个字符的要点
func bullet(i int) string {
	return fmt.Sprintf("Bullet %02d: ", i) + strings.Repeat("x", 49)
}

func slideDoc(n int, imageRequired bool) map[string]any {
	prompt := ""
	if imageRequired {
		prompt = fmt.Sprintf("An illustration for slide %d", n)
	}
	return map[string]any{
		"id":               entity.SlideID(n),
		"title":            fmt.Sprintf("Slide %d", n),
		"points":           []any{bullet(1), bullet(2), bullet(3)},
		"image_required":   imageRequired,
		"image_gen_prompt": prompt,
		"image_url":        "",
	}
}

func detailDoc(n int, withImages func(i int) bool) map[string]any {
	slides := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		slides = append(slides, slideDoc(i, withImages != nil && withImages(i)))
	}
	return map[string]any{
		"title":       "Distributed Systems 101",
		"description": "A gentle tour of distributed systems fundamentals.",
		"slides":      slides,
	}
}

func outlineDoc(points int) map[string]any {
	out := make([]any, 0, points)
	for i := 1; i <= points; i++ {
		out = append(out, fmt.Sprintf("Point number %d.", i))
	}
	return map[string]any{"title": "Distributed Systems 101", "outlines": out}
}

// fakeTextGenerator 按阶段依次返回预置结果
type fakeTextGenerator struct {
	mu      sync.Mutex
	outputs map[string][]result
	calls   map[string]int
	inputs  []*wfchain.GenerateInput
}

type result struct {
	doc map[string]any
	err error
}

func newFakeTextGenerator() *fakeTextGenerator {
	return &fakeTextGenerator{outputs: map[string][]result{}, calls: map[string]int{}}
}

func (f *fakeTextGenerator) on(stage string, doc map[string]any, err error) *fakeTextGenerator {
	f.outputs[stage] = append(f.outputs[stage], result{doc: doc, err: err})
	return f
}

func (f *fakeTextGenerator) Generate(_ context.Context, in *wfchain.GenerateInput) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	i := f.calls[in.Stage]
	f.calls[in.Stage]++
	outs := f.outputs[in.Stage]
	if i >= len(outs) {
		return nil, fmt.Errorf("unexpected %s call %d", in.Stage, i+1)
	}
	return outs[i].doc, outs[i].err
}

func (f *fakeTextGenerator) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// fakeImages 对指定提示词模拟超时
type fakeImages struct {
	failPrompts map[string]bool
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxInFlight.Load()
		if cur <= old || f.maxInFlight.CompareAndSwap(old, cur) {
			break
		}
	}

	if f.failPrompts[prompt] {
		<-ctx.Done()
		return nil, &apperrors.ImageGenerationFailed{Cause: &apperrors.ProviderTimeoutError{Provider: "fake", Err: ctx.Err()}}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return pngBytes, nil
}

type fakeAssets struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (f *fakeAssets) Save(_ context.Context, data []byte, name string) (*entity.GeneratedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[name+".png"] = data
	return &entity.GeneratedImage{
		Name: name + ".png",
		Path: "generated_images/" + name + ".png",
		URL:  "http://localhost/generate/get-generated-image?image_name=" + name + ".png",
	}, nil
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string]*entity.Outline
}

func (c *fakeCache) GetOutline(_ context.Context, key string) (*entity.Outline, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.items[key]
	return o, ok, nil
}

func (c *fakeCache) SetOutline(_ context.Context, key string, o *entity.Outline) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string]*entity.Outline{}
	}
	c.items[key] = o
	return nil
}
