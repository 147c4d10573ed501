// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"errors"

	"github.com/google/wire"

	"deckgen-api/internal/application/presentation"
	"deckgen-api/internal/config"
	"deckgen-api/internal/infrastructure/imagegen"
	"deckgen-api/internal/infrastructure/llm"
	"deckgen-api/internal/infrastructure/messaging"
	"deckgen-api/internal/infrastructure/persistence/redis"
	"deckgen-api/internal/infrastructure/storage"
	"deckgen-api/internal/interfaces/http/handler"
	"deckgen-api/internal/interfaces/http/middleware"
	"deckgen-api/internal/interfaces/http/router"
	wfchain "deckgen-api/internal/workflow/chain"
	workflowprompt "deckgen-api/internal/workflow/prompt"
	"deckgen-api/pkg/logger"
)

const defaultDetailTemperature float32 = 0.7

var errRedisRequired = errors.New("job worker requires cache.redis.enabled")

// DataLayer Redis 相关依赖；Redis 未启用时各字段均为 nil
type DataLayer struct {
	RedisClient  *redis.Client
	OutlineCache *redis.OutlineCache
	JobStore     *redis.JobStore
	RateLimiter  *redis.RateLimiter
	Producer     *messaging.Producer
}

// Worker job-worker 进程依赖
type Worker struct {
	Runner *presentation.JobRunner
	Redis  *redis.Client
}

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideOutlineCache,
	ProvideJobStore,
	ProvideRateLimiter,
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// DataSet 数据层集合
var DataSet = wire.NewSet(
	RedisSet,
	MessagingSet,
	wire.Struct(new(DataLayer), "*"),
)

// GenerationSet 文本 / 图片生成与编排
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(wfchain.ChatModelFactory), new(*llm.EinoFactory)),
	wfchain.NewTextClient,
	workflowprompt.NewRegistry,
	workflowprompt.NewCompiler,
	ProvideTextStages,
	ProvideImageGenerator,
	ProvideAssetStore,
	ProvideOrchestrator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideGenerationOptions,
	ProvideGenerationHandler,
	ProvideJobHandler,
	ProvideHealthHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)

// ProvideRedisClient Redis 未启用时返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Info(ctx, "redis disabled, outline cache, jobs and rate limiting are off")
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideOutlineCache(client *redis.Client, cfg *config.Config) *redis.OutlineCache {
	if client == nil {
		return nil
	}
	return redis.NewOutlineCache(client, cfg.Generation.OutlineCacheTTL)
}

func ProvideJobStore(client *redis.Client, cfg *config.Config) *redis.JobStore {
	if client == nil {
		return nil
	}
	return redis.NewJobStore(client, cfg.Generation.JobTTL)
}

func ProvideRateLimiter(client *redis.Client) *redis.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(client *redis.Client, cfg *config.Config) *messaging.Producer {
	if client == nil {
		return nil
	}
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(client.Redis(), int64(maxLen))
}

// ProvideTextStages 绑定默认文本提供商
func ProvideTextStages(cfg *config.Config, compiler *workflowprompt.Compiler, client *wfchain.TextClient) *presentation.TextStages {
	opts := presentation.TextStageOptions{
		Provider:          cfg.LLM.DefaultProvider,
		OutlineMaxTokens:  cfg.Generation.OutlineMaxTokens,
		DetailMaxTokens:   cfg.Generation.DetailMaxTokens,
		DetailTemperature: defaultDetailTemperature,
	}
	if p, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; ok {
		opts.Model = p.Model
		if p.Temperature > 0 {
			opts.DetailTemperature = float32(p.Temperature)
		}
	}
	return presentation.NewTextStages(compiler, client, opts)
}

func ProvideImageGenerator(ctx context.Context, cfg *config.Config) (*imagegen.Generator, error) {
	provider, err := imagegen.NewProviderFromConfig(ctx, cfg.Image)
	if err != nil {
		return nil, err
	}
	return imagegen.NewGenerator(provider), nil
}

func ProvideAssetStore(cfg *config.Config) (*storage.AssetStore, error) {
	return storage.NewAssetStore(cfg.Assets.RootDir, cfg.Assets.PublicBaseURL)
}

// ProvideOrchestrator cache 为 nil 时显式传入无类型 nil，避免接口持有 nil 指针
func ProvideOrchestrator(cfg *config.Config, text *presentation.TextStages, images *imagegen.Generator, assets *storage.AssetStore, cache *redis.OutlineCache) *presentation.Orchestrator {
	var outlineCache presentation.OutlineCache
	if cache != nil {
		outlineCache = cache
	}
	return presentation.NewOrchestrator(text, images, assets, outlineCache, presentation.Options{
		StageRetries:     cfg.Generation.StageRetries,
		ImageConcurrency: cfg.Generation.ImageConcurrency,
		ImageTimeout:     cfg.Image.Timeout,
	})
}

func ProvideGenerationOptions(cfg *config.Config) handler.GenerationOptions {
	return handler.GenerationOptions{
		DefaultSlideCount:    cfg.Generation.DefaultSlideCount,
		DefaultLanguage:      cfg.Generation.DefaultLanguage,
		LegacyOutlineStatus:  cfg.Features.LegacyOutlineStatus,
		LegacyFixedImageName: cfg.Features.LegacyFixedImageName,
	}
}

func ProvideGenerationHandler(orchestrator *presentation.Orchestrator, assets *storage.AssetStore, opts handler.GenerationOptions) *handler.GenerationHandler {
	return handler.NewGenerationHandler(orchestrator, assets, opts)
}

func ProvideJobHandler(data *DataLayer, opts handler.GenerationOptions) *handler.JobHandler {
	var (
		store     handler.JobStore
		publisher handler.JobPublisher
	)
	if data.JobStore != nil {
		store = data.JobStore
	}
	if data.Producer != nil {
		publisher = data.Producer
	}
	return handler.NewJobHandler(store, publisher, opts)
}

func ProvideHealthHandler(assets *storage.AssetStore, data *DataLayer) *handler.HealthHandler {
	var redisPinger handler.Pinger
	if data.RedisClient != nil {
		redisPinger = data.RedisClient
	}
	return handler.NewHealthHandler(assets, redisPinger)
}

func ProvideRouter(cfg *config.Config, handlers router.Handlers, data *DataLayer) *router.Router {
	var limiter middleware.RateLimiter
	if data.RateLimiter != nil {
		limiter = data.RateLimiter
	}
	return router.New(cfg, handlers, limiter)
}

// ProvideJobRunner job-worker 必须启用 Redis
func ProvideJobRunner(cfg *config.Config, data *DataLayer, orchestrator *presentation.Orchestrator) (*presentation.JobRunner, error) {
	if data.JobStore == nil {
		return nil, errRedisRequired
	}
	return presentation.NewJobRunner(data.JobStore, orchestrator, cfg.Messaging.RedisStream.RetryLimit), nil
}
