// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "deckgen"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "path"},
	)

	// 业务指标 - 演示文稿生成
	PresentationGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presentation",
			Name:      "generation_total",
			Help:      "Total number of presentation generations",
		},
		[]string{"status"},
	)

	PresentationGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "presentation",
			Name:      "generation_duration_seconds",
			Help:      "Presentation generation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	StageAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presentation",
			Name:      "stage_attempts_total",
			Help:      "Total number of text stage attempts",
		},
		[]string{"stage", "status"},
	)

	OutlineCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presentation",
			Name:      "outline_cache_total",
			Help:      "Outline cache lookups",
		},
		[]string{"result"},
	)

	// LLM 指标
	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total tokens used for LLM calls",
		},
		[]string{"workflow", "provider", "model", "type"}, // type: prompt/completion
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM call duration in seconds",
			Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"workflow", "provider", "model"},
	)

	LLMCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_total",
			Help:      "Total number of LLM calls",
		},
		[]string{"workflow", "provider", "model", "status"},
	)

	// 图片生成指标
	ImageGenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "generation_total",
			Help:      "Total number of image generation calls",
		},
		[]string{"provider", "status"},
	)

	ImageGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "generation_duration_seconds",
			Help:      "Image generation duration in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 90},
		},
		[]string{"provider"},
	)

	ImagesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "in_flight",
			Help:      "Current number of in-flight image generations",
		},
	)

	// 资源存储指标
	AssetWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "writes_total",
			Help:      "Total number of asset writes",
		},
		[]string{"status"},
	)

	AssetBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assets",
			Name:      "bytes_written_total",
			Help:      "Total bytes of assets persisted",
		},
	)

	// 队列指标
	RedisStreamProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "redis",
			Name:      "stream_processed_total",
			Help:      "Total number of Redis stream messages processed",
		},
		[]string{"stream", "status"},
	)

	// 校验指标
	ValidationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "total",
			Help:      "Total number of validations",
		},
		[]string{"type", "status"},
	)
)
