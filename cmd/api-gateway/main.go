// Package main API Gateway 服务入口
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deckgen-api/internal/config"
	einoobs "deckgen-api/internal/observability/eino"
	"deckgen-api/internal/wire"
	"deckgen-api/pkg/logger"
	"deckgen-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		logger.Fatal(ctx, "invalid config", err)
	}

	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Insecure:    cfg.Observability.Tracing.Insecure,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// Eino 全局 callbacks（指标/追踪/日志）
	einoobs.Init()

	app, cleanupApp, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer cleanupApp()

	addr := cfg.HTTPAddr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
