// Package chain 以 Eino compose 链封装文本生成调用
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "deckgen-api/internal/domain/service"
	wfnode "deckgen-api/internal/workflow/node"
	apperrors "deckgen-api/pkg/errors"
	"deckgen-api/pkg/logger"
)

// GenerateInput 一次 JSON 文本生成请求
type GenerateInput struct {
	Stage    string
	Provider string
	Messages []*schema.Message

	// SchemaName/Schema 作为 response_format 的 json_schema 提示；为空时仅依赖提示词约束
	SchemaName string
	Schema     map[string]any

	Model       string
	Temperature *float32
	MaxTokens   *int
}

// ChatModelFactory 按提供商名称获取 ChatModel，name 为空时使用默认提供商
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// TextClient 调用 LLM 并把回复解析为 JSON 文档
type TextClient struct {
	factory ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*generateState, *schema.Message]
	chainErr  error
}

func NewTextClient(factory ChatModelFactory) *TextClient {
	return &TextClient{factory: factory}
}

type generateState struct {
	In        *GenerateInput
	ChatModel model.BaseChatModel
	OutMsg    *schema.Message
}

// Generate 返回解析后的顶层 JSON 对象
// 传输失败返回 ProviderError / ProviderTimeoutError；无法解析返回 MalformedResponseError
func (c *TextClient) Generate(ctx context.Context, in *GenerateInput) (map[string]any, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil || len(in.Messages) == 0 {
		return nil, fmt.Errorf("generate input has no messages")
	}

	provider := strings.TrimSpace(in.Provider)
	ctx = llmctx.WithWorkflowProvider(ctx, in.Stage, provider)
	chatModel, err := c.factory.Get(ctx, provider)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "llm model unavailable")
	}

	runnable, err := c.getChain()
	if err != nil {
		return nil, err
	}

	msg, err := runnable.Invoke(ctx, &generateState{In: in, ChatModel: chatModel})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !wfnode.IsTimeout(ctxErr) {
			return nil, ctxErr
		}
		return nil, wfnode.ClassifyProviderError(providerLabel(provider), err)
	}

	raw := msg.Content
	doc, err := wfnode.DecodeJSONObject(raw)
	if err != nil {
		logger.Warn(ctx, "llm returned malformed json",
			"stage", in.Stage,
			"error", err.Error(),
			"raw", logger.Truncate(raw),
		)
		return nil, &apperrors.MalformedResponseError{Stage: in.Stage, Raw: raw, Err: err}
	}
	return doc, nil
}

func (c *TextClient) getChain() (compose.Runnable[*generateState, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = buildGenerateChain(context.Background())
	})
	return c.chain, c.chainErr
}

func buildGenerateChain(ctx context.Context) (compose.Runnable[*generateState, *schema.Message], error) {
	chain := compose.NewChain[*generateState, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *generateState) (*generateState, error) {
			if st == nil || st.In == nil || st.ChatModel == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st, nil
		}),
		compose.WithNodeName("generate.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *generateState) (*generateState, error) {
			in := st.In
			outMsg, err := st.ChatModel.Generate(ctx, in.Messages, buildModelOptions(in, in.Schema != nil)...)
			if err != nil && in.Schema != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"stage", in.Stage,
					"model", in.Model,
					"error", err.Error(),
				)
				outMsg, err = st.ChatModel.Generate(ctx, in.Messages, buildModelOptions(in, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("generate.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *generateState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("generate.finalize"),
	)

	return chain.Compile(ctx)
}

func buildModelOptions(in *GenerateInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil && *in.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	if enableSchema {
		name := in.SchemaName
		if name == "" {
			name = in.Stage
		}
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   name,
					"strict": false,
					"schema": in.Schema,
				},
			},
		}))
	}
	return opts
}

func providerLabel(p string) string {
	if p == "" {
		return "default"
	}
	return p
}
