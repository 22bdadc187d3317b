// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults — merged in priority order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Brands    BrandsConfig    `mapstructure:"brands"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Embedder  EmbedderConfig  `mapstructure:"embedder"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DatabasePath   string `mapstructure:"database_path"`
	UploadDir      string `mapstructure:"upload_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// BrandsConfig holds the keyword list used by the brand detector.
// Order matters: the first keyword found in a string wins.
type BrandsConfig struct {
	Keywords []string `mapstructure:"keywords"`
}

// MatcherConfig holds the similarity decision policy. Threshold is an
// empirically tuned value, not a calibrated one.
type MatcherConfig struct {
	Threshold       float64  `mapstructure:"threshold"`
	PromptTemplates []string `mapstructure:"prompt_templates"`
	MaxImageSide    int      `mapstructure:"max_image_side"`
}

type EmbedderConfig struct {
	// ProviderOrder controls which embedding backends are used and in what order.
	// First backend is primary, rest are fallbacks. Example: ["clip", "openai"]
	ProviderOrder []string     `mapstructure:"provider_order"`
	CLIP          CLIPConfig   `mapstructure:"clip"`
	OpenAI        OpenAIConfig `mapstructure:"openai"`
	RatePerSecond float64      `mapstructure:"rate_per_second"`
	Burst         int          `mapstructure:"burst"`
}

type CLIPConfig struct {
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig points at any OpenAI-compatible /v1/embeddings server that
// hosts a CLIP model and accepts images as data URIs.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type CacheConfig struct {
	// Backend is one of "none", "sqlite" or "redis".
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	Namespace string        `mapstructure:"namespace"`
}

// VisionConfig enables Google Cloud Vision logo detection as an extra
// image-side brand source. Credentials come from ADC.
type VisionConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	MinScore float32 `mapstructure:"min_score"`
}

type AuthConfig struct {
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultKeywords is the electronics brand list in match order.
var DefaultKeywords = []string{
	"iphone", "apple", "samsung", "oneplus", "vivo", "oppo", "mi", "redmi", "xiaomi", "sony",
}

// DefaultPromptTemplates are the eight phrasings each description is expanded into.
var DefaultPromptTemplates = []string{
	"%s",
	"a photo of %s",
	"the product %s",
	"%s mobile",
	"%s smartphone",
	"original %s device",
	"clear product photo of %s",
	"real %s image",
}

// DefaultThreshold is the inclusive similarity cut-off for a match.
const DefaultThreshold = 0.28

// Load reads configuration from a YAML file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("storage.database_path", "./storage/listing-check.db")
	v.SetDefault("storage.upload_dir", "static/uploads")
	v.SetDefault("storage.max_upload_bytes", 10<<20)
	v.SetDefault("brands.keywords", DefaultKeywords)
	v.SetDefault("matcher.threshold", DefaultThreshold)
	v.SetDefault("matcher.prompt_templates", DefaultPromptTemplates)
	v.SetDefault("matcher.max_image_side", 512)
	v.SetDefault("embedder.provider_order", []string{"clip"})
	v.SetDefault("embedder.clip.url", "http://127.0.0.1:8000")
	v.SetDefault("embedder.clip.model", "openai/clip-vit-base-patch32")
	v.SetDefault("embedder.clip.timeout", 30*time.Second)
	v.SetDefault("embedder.openai.api_key", "")
	v.SetDefault("embedder.openai.base_url", "")
	v.SetDefault("embedder.openai.model", "clip-vit-base-patch32")
	v.SetDefault("embedder.rate_per_second", 20)
	v.SetDefault("embedder.burst", 5)
	v.SetDefault("cache.backend", "sqlite")
	v.SetDefault("cache.redis.addr", "127.0.0.1:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.ttl", 24*time.Hour)
	v.SetDefault("cache.redis.namespace", "embeddings")
	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.min_score", 0.5)
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("log.level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found" — defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// LISTING_ prefix + nested keys: LISTING_SERVER_PORT=9090 → server.port=9090.
	// AutomaticEnv only resolves keys viper already knows, so every key needs a default above.
	v.SetEnvPrefix("LISTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Brands.Keywords) == 0 {
		errs = append(errs, errors.New("brands.keywords must not be empty"))
	}
	for i, k := range c.Brands.Keywords {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, fmt.Errorf("brands.keywords[%d] is blank", i))
		}
	}

	if c.Matcher.Threshold < -1 || c.Matcher.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matcher.threshold %v outside [-1, 1]", c.Matcher.Threshold))
	}
	if len(c.Matcher.PromptTemplates) == 0 {
		errs = append(errs, errors.New("matcher.prompt_templates must not be empty"))
	}
	for i, t := range c.Matcher.PromptTemplates {
		if strings.Count(t, "%s") != 1 || strings.Count(t, "%") != 1 {
			errs = append(errs, fmt.Errorf("matcher.prompt_templates[%d] %q must contain exactly one %%s", i, t))
		}
	}

	if len(c.Embedder.ProviderOrder) == 0 {
		errs = append(errs, errors.New("embedder.provider_order must not be empty"))
	}
	for _, name := range c.Embedder.ProviderOrder {
		switch name {
		case "clip", "openai":
		default:
			errs = append(errs, fmt.Errorf("embedder.provider_order: unknown provider %q", name))
		}
	}

	switch c.Cache.Backend {
	case "none", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}

	return errors.Join(errs...)
}

// Address returns the listen address string like "127.0.0.1:5000".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
