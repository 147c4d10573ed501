// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// envPattern 匹配 ${VAR} 或 ${VAR:default}
// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 从 configs 目录加载配置
func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom 加载指定目录下的配置
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		v.SetConfigFile(path)
		return nil
	}
	if err := v.MergeConfig(reader); err != nil {
		return fmt.Errorf("failed to merge processed config %s: %w", path, err)
	}
	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符，未定义且无默认值的变量保留原样
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(submatch[1]); ok {
			return val
		}
		if submatch[2] != "" {
			return submatch[3]
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "deckgen-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8000)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "300s")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("llm.default_provider", "gemini")

	// 图片生成默认值
	v.SetDefault("image.provider", ImageProviderFailover)
	v.SetDefault("image.timeout", "60s")
	v.SetDefault("image.gemini.model", "gemini-2.5-flash-image")
	v.SetDefault("image.gemini.temperature", 0.7)

	// 生成流程默认值
	v.SetDefault("generation.default_slide_count", 12)
	v.SetDefault("generation.default_language", "en")
	v.SetDefault("generation.stage_retries", 1)
	v.SetDefault("generation.image_concurrency", 4)
	v.SetDefault("generation.outline_max_tokens", 1024)
	v.SetDefault("generation.detail_max_tokens", 8192)
	v.SetDefault("generation.outline_cache_ttl", "1h")
	v.SetDefault("generation.job_ttl", "24h")

	v.SetDefault("assets.root_dir", "generated_images")
	v.SetDefault("assets.public_base_url", "http://localhost:8000")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 50)
	v.SetDefault("cache.redis.min_idle_conns", 5)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	v.SetDefault("messaging.redis_stream.max_len", 10000)
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 3)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "30s")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.insecure", true)
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.limit", 30)
	v.SetDefault("security.rate_limit.window", "1m")
	v.SetDefault("security.cors.allowed_origins", []string{"*"})

	v.SetDefault("features.legacy_outline_status", false)
	v.SetDefault("features.legacy_fixed_image_name", false)
}
