// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deckgen-api/internal/config"
	"deckgen-api/internal/interfaces/http/handler"
	"deckgen-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Generation *handler.GenerationHandler
	Jobs       *handler.JobHandler
	Health     *handler.HealthHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器；limiter 为 nil 时不限流
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

func (r *Router) setupRoutes() {
	health := r.handlers.Health
	r.engine.GET("/health", health.Health)
	r.engine.GET("/ready", health.Ready)
	r.engine.GET("/live", health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	rl := r.cfg.Security.RateLimit
	gen := r.engine.Group("/generate", middleware.RateLimit(middleware.RateLimitConfig{
		Enabled: rl.Enabled,
		Limit:   rl.Limit,
		Window:  rl.Window,
	}, r.limiter))
	{
		gen.POST("/outlines", r.handlers.Generation.GenerateOutlines)
		gen.POST("/image", r.handlers.Generation.GenerateImage)
		gen.GET("/get-generated-image", r.handlers.Generation.GetGeneratedImage)
		gen.POST("/presentation", r.handlers.Generation.GeneratePresentation)

		gen.POST("/presentations/jobs", r.handlers.Jobs.CreateJob)
		gen.GET("/presentations/jobs/:jid", r.handlers.Jobs.GetJob)
	}
}
