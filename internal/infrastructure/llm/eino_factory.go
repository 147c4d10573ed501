// Package llm 提供基于 Eino 的 ChatModel 客户端
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"deckgen-api/internal/config"
)

// EinoFactory 按提供商名称惰性创建并缓存 ChatModel
// Gemini 通过其 OpenAI 兼容端点接入
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Resolve 返回实际使用的提供商名称及其配置
func (f *EinoFactory) Resolve(name string) (string, config.ProviderConfig, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = f.config.DefaultProvider
	}
	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return name, config.ProviderConfig{}, fmt.Errorf("provider %s not found in LLM config", name)
	}
	return name, providerCfg, nil
}

// Get 获取指定名称的 ChatModel，未指定时返回默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	name, providerCfg, err := f.Resolve(name)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	if strings.TrimSpace(providerCfg.APIKey) == "" {
		return nil, fmt.Errorf("provider %s has no api key", name)
	}

	maxTokens := CapTokens(providerCfg.MaxTokens, f.config.MaxOutputTokens)
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// CapTokens 以 ceiling 限制 tokens；ceiling<=0 表示不限制
func CapTokens(tokens, ceiling int) int {
	if ceiling > 0 && (tokens <= 0 || tokens > ceiling) {
		return ceiling
	}
	return tokens
}

func ptrFloat32(f float32) *float32 {
	return &f
}
