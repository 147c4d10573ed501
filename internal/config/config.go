// Package config 提供配置加载和管理功能
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Image         ImageConfig         `yaml:"image" mapstructure:"image"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Assets        AssetsConfig        `yaml:"assets" mapstructure:"assets"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
	Features      FeaturesConfig      `yaml:"features" mapstructure:"features"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	// MaxOutputTokens 生成文本的输出 token 上限，0 表示不额外限制
	MaxOutputTokens int `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ImageConfig 图片生成配置
type ImageConfig struct {
	// Provider gemini | worker | failover
	Provider string            `yaml:"provider" mapstructure:"provider"`
	Timeout  time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Gemini   GeminiImageConfig `yaml:"gemini" mapstructure:"gemini"`
	Worker   WorkerImageConfig `yaml:"worker" mapstructure:"worker"`
}

// GeminiImageConfig 主图片提供方（genai 内联图片）
type GeminiImageConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// WorkerImageConfig 备用 HTTP 图片生成服务
type WorkerImageConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
}

// GenerationConfig 演示文稿生成流程配置
type GenerationConfig struct {
	DefaultSlideCount int           `yaml:"default_slide_count" mapstructure:"default_slide_count"`
	DefaultLanguage   string        `yaml:"default_language" mapstructure:"default_language"`
	StageRetries      int           `yaml:"stage_retries" mapstructure:"stage_retries"`
	ImageConcurrency  int           `yaml:"image_concurrency" mapstructure:"image_concurrency"`
	OutlineMaxTokens  int           `yaml:"outline_max_tokens" mapstructure:"outline_max_tokens"`
	DetailMaxTokens   int           `yaml:"detail_max_tokens" mapstructure:"detail_max_tokens"`
	OutlineCacheTTL   time.Duration `yaml:"outline_cache_ttl" mapstructure:"outline_cache_ttl"`
	JobTTL            time.Duration `yaml:"job_ttl" mapstructure:"job_ttl"`
}

// AssetsConfig 生成图片的存储配置
type AssetsConfig struct {
	RootDir       string `yaml:"root_dir" mapstructure:"root_dir"`
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 限流配置（滑动窗口，按客户端 IP）
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int           `yaml:"limit" mapstructure:"limit"`
	Window  time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// FeaturesConfig 功能开关配置
type FeaturesConfig struct {
	// LegacyOutlineStatus 大纲接口失败时仍返回 200 + {"error"}
	LegacyOutlineStatus bool `yaml:"legacy_outline_status" mapstructure:"legacy_outline_status"`
	// LegacyFixedImageName 单图接口固定写入 image.jpg
	LegacyFixedImageName bool `yaml:"legacy_fixed_image_name" mapstructure:"legacy_fixed_image_name"`
}

// Image provider 取值
const (
	ImageProviderGemini   = "gemini"
	ImageProviderWorker   = "worker"
	ImageProviderFailover = "failover"
)

// Validate 校验启动所需的关键配置
func (c *Config) Validate() error {
	var errs []error

	if c.LLM.DefaultProvider == "" {
		errs = append(errs, errors.New("llm.default_provider is required"))
	} else if p, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		errs = append(errs, fmt.Errorf("llm provider %q is not configured", c.LLM.DefaultProvider))
	} else if p.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.providers.%s.api_key is required", c.LLM.DefaultProvider))
	}

	switch c.Image.Provider {
	case ImageProviderGemini:
		if c.Image.Gemini.APIKey == "" {
			errs = append(errs, errors.New("image.gemini.api_key is required"))
		}
	case ImageProviderWorker:
		if c.Image.Worker.Endpoint == "" {
			errs = append(errs, errors.New("image.worker.endpoint is required"))
		}
	case ImageProviderFailover:
		if c.Image.Gemini.APIKey == "" && c.Image.Worker.Endpoint == "" {
			errs = append(errs, errors.New("image failover needs image.gemini.api_key or image.worker.endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported image.provider %q", c.Image.Provider))
	}

	if c.Generation.ImageConcurrency < 1 {
		errs = append(errs, errors.New("generation.image_concurrency must be >= 1"))
	}
	if c.Generation.StageRetries < 0 {
		errs = append(errs, errors.New("generation.stage_retries must be >= 0"))
	}
	if c.Assets.RootDir == "" {
		errs = append(errs, errors.New("assets.root_dir is required"))
	}

	return errors.Join(errs...)
}

// HTTPAddr 返回 HTTP 监听地址
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.HTTP.Host, c.Server.HTTP.Port)
}

// RedisAddr 返回 Redis 地址
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
