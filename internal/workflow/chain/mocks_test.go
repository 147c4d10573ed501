package chain

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	lastOpts  int
}

func (m *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	m.lastOpts = len(opts)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return schema.AssistantMessage(m.responses[i], nil), nil
	}
	return schema.AssistantMessage("", nil), nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type fakeFactory struct {
	model model.BaseChatModel
	err   error
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.model, f.err
}
