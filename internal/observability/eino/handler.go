// Package eino 为 Eino ChatModel 调用挂载进程级回调：指标、Span 与调用日志
package eino

import (
	"context"
	"sync"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	llmctx "deckgen-api/internal/domain/service"
	"deckgen-api/pkg/logger"
	"deckgen-api/pkg/metrics"
	"deckgen-api/pkg/tracer"
)

var registerOnce sync.Once

// Init 注册全局 ChatModel 回调，多次调用只生效一次
func Init() {
	registerOnce.Do(func() {
		einocb.AppendGlobalHandlers(cbtemplate.NewHandlerHelper().
			ChatModel(newChatModelCallbackHandler()).
			Handler())
	})
}

// startTimeKey 在 Context 中记录调用开始时间，供 OnEnd/OnError 计算耗时
type startTimeKey struct{}

// modelNameKey 记录 OnStart 时解析到的模型名，OnError 拿不到输出配置
type modelNameKey struct{}

// newChatModelCallbackHandler 为每次 ChatModel 调用上报指标并创建 Span
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			modelName := modelNameFromInput(input)
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			ctx = context.WithValue(ctx, modelNameKey{}, modelName)

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", llmctx.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", llmctx.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelName),
				attribute.Int("llm.attempt", llmctx.AttemptFromContext(ctx)),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name))
			}
			ctx, _ = tracer.Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			workflow := llmctx.WorkflowFromContext(ctx)
			provider := llmctx.ProviderFromContext(ctx)
			modelName := modelNameFromOutput(output)
			if modelName == "" {
				modelName = modelNameFrom(ctx)
			}

			metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "success").Inc()
			d := elapsedSeconds(ctx)
			if d > 0 {
				metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				promptTokens := output.TokenUsage.PromptTokens
				completionTokens := output.TokenUsage.CompletionTokens
				metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "prompt").Add(float64(promptTokens))
				metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "completion").Add(float64(completionTokens))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", promptTokens),
					attribute.Int("llm.completion_tokens", completionTokens),
				)
				logger.Debug(ctx, "llm call finished",
					"workflow", workflow,
					"model", modelName,
					"prompt_tokens", promptTokens,
					"completion_tokens", completionTokens,
					"duration_ms", int64(d*1000),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			workflow := llmctx.WorkflowFromContext(ctx)
			provider := llmctx.ProviderFromContext(ctx)
			modelName := modelNameFrom(ctx)

			metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(d)
			}
			tracer.End(trace.SpanFromContext(ctx), err)
			return ctx
		},
	}
}

// elapsedSeconds 计算从 OnStart 到当前的耗时（秒），取不到开始时间返回 0
func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFrom(ctx context.Context) string {
	s, _ := ctx.Value(modelNameKey{}).(string)
	return s
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
