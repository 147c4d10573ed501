// Package service 提供跨层共享的上下文标记
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyAttempt  llmCtxKey = "llm_attempt"
)

const unknown = "unknown"

// WithWorkflow 标记当前 LLM 调用所属的生成阶段（outline / detail）
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withString(ctx, llmCtxKeyWorkflow, workflow)
}

// WithProvider 标记当前 LLM 提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	return withString(ctx, llmCtxKeyProvider, provider)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

// WithAttempt 标记阶段的第几次尝试（1 基）
func WithAttempt(ctx context.Context, attempt int) context.Context {
	if ctx == nil || attempt < 1 {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyAttempt, attempt)
}

func WorkflowFromContext(ctx context.Context) string {
	return stringFrom(ctx, llmCtxKeyWorkflow)
}

func ProviderFromContext(ctx context.Context) string {
	return stringFrom(ctx, llmCtxKeyProvider)
}

func AttemptFromContext(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	n, _ := ctx.Value(llmCtxKeyAttempt).(int)
	return n
}

func withString(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknown
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
