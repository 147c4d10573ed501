// Package main 异步演示文稿生成任务执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"deckgen-api/internal/config"
	"deckgen-api/internal/infrastructure/messaging"
	einoobs "deckgen-api/internal/observability/eino"
	"deckgen-api/internal/wire"
	"deckgen-api/pkg/logger"
	"deckgen-api/pkg/tracer"
)

// 死信队列积压告警阈值
const dlqAlertThreshold = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.Validate(); err != nil {
		logger.Fatal(ctx, "invalid config", err)
	}

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Insecure:    cfg.Observability.Tracing.Insecure,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	stream := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(worker.Redis.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamPresentationGen,
		Group:         messaging.ConsumerGroupPresentationWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  stream.BlockTimeout,
		ClaimInterval: stream.ClaimInterval,
		RetryLimit:    stream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    stream.RetryBackoff.Initial,
			Max:        stream.RetryBackoff.Max,
			Multiplier: stream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(messaging.MessageTypePresentationGen, func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.PresentationJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return worker.Runner.Run(msgCtx, payload.JobID, payload.Request)
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, dlqAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("job-worker started",
		"stream", string(messaging.StreamPresentationGen),
		"group", string(messaging.ConsumerGroupPresentationWorker),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	consumer.Stop()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
