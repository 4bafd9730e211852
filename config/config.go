package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore: DINEAI_EMBEDDING__PROVIDER=gemini.
const EnvPrefix = "DINEAI_"

// Config holds all configuration for DineAI.
type Config struct {
	Catalog   CatalogConfig   `koanf:"catalog" yaml:"catalog"`
	Embedding EmbeddingConfig `koanf:"embedding" yaml:"embedding"`
	Ingest    IngestConfig    `koanf:"ingest" yaml:"ingest"`
	Retrieve  RetrieveConfig  `koanf:"retrieve" yaml:"retrieve"`
	Fallback  FallbackConfig  `koanf:"fallback" yaml:"fallback"`
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	Logging   LoggingConfig   `koanf:"logging" yaml:"logging"`
}

// CatalogConfig selects the restaurant catalog. An empty Dir uses the
// built-in catalog.
type CatalogConfig struct {
	Dir      string   `koanf:"dir" yaml:"dir"`
	Includes []string `koanf:"includes" yaml:"includes"`
	Excludes []string `koanf:"excludes" yaml:"excludes"`
}

// EmbeddingConfig selects the embedding provider. Empty Model, APIKeyEnv
// and BaseURL take the provider's defaults.
type EmbeddingConfig struct {
	Provider          string        `koanf:"provider" yaml:"provider" validate:"oneof=gemini openai jina ollama mock"`
	Model             string        `koanf:"model" yaml:"model"`
	APIKeyEnv         string        `koanf:"api_key_env" yaml:"api_key_env"`
	BaseURL           string        `koanf:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Dimension         int           `koanf:"dimension" yaml:"dimension" validate:"gte=0"`
	Timeout           time.Duration `koanf:"timeout" yaml:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `koanf:"burst" yaml:"burst" validate:"gte=0"`
	CachePath         string        `koanf:"cache_path" yaml:"cache_path"`
	Breaker           BreakerConfig `koanf:"breaker" yaml:"breaker"`
}

type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled" yaml:"enabled"`
	FailureThreshold uint32        `koanf:"failure_threshold" yaml:"failure_threshold"`
	Timeout          time.Duration `koanf:"timeout" yaml:"timeout"`
}

type IngestConfig struct {
	BatchSize      int           `koanf:"batch_size" yaml:"batch_size" validate:"gte=1"`
	MaxAttempts    int           `koanf:"max_attempts" yaml:"max_attempts" validate:"gte=1"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" yaml:"retry_base_delay" validate:"gte=0"`
	BatchPause     time.Duration `koanf:"batch_pause" yaml:"batch_pause" validate:"gte=0"`
}

type RetrieveConfig struct {
	PoolSize  int           `koanf:"pool_size" yaml:"pool_size" validate:"gte=1"`
	Limit     int           `koanf:"limit" yaml:"limit" validate:"gte=1,ltefield=PoolSize"`
	CacheSize int           `koanf:"cache_size" yaml:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `koanf:"cache_ttl" yaml:"cache_ttl"`
}

// FallbackConfig controls candidate selection when vector retrieval is
// unavailable. Mode "llm" asks a chat model first and falls back to static
// scoring.
type FallbackConfig struct {
	Mode      string `koanf:"mode" yaml:"mode" validate:"oneof=static llm"`
	Provider  string `koanf:"provider" yaml:"provider"`
	Model     string `koanf:"model" yaml:"model"`
	APIKeyEnv string `koanf:"api_key_env" yaml:"api_key_env"`
	BaseURL   string `koanf:"base_url" yaml:"base_url" validate:"omitempty,url"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr" validate:"required"`
	RateLimit       int           `koanf:"rate_limit" yaml:"rate_limit" validate:"gte=0"` // requests per minute per IP, 0 disables
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" yaml:"format" validate:"oneof=json console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Includes: []string{"**/*.yaml", "**/*.yml"},
		},
		Embedding: EmbeddingConfig{
			Provider: "gemini",
			Timeout:  30 * time.Second,
			Burst:    5,
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          30 * time.Second,
			},
		},
		Ingest: IngestConfig{
			BatchSize:      5,
			MaxAttempts:    3,
			RetryBaseDelay: 200 * time.Millisecond,
			BatchPause:     200 * time.Millisecond,
		},
		Retrieve: RetrieveConfig{
			PoolSize:  20,
			Limit:     10,
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Fallback: FallbackConfig{
			Mode:     "static",
			Provider: "gemini",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimit:       60,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load layers defaults, the YAML file at path (if it exists) and DINEAI_
// environment variables, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads dineai.yaml or .dineai/config.yaml from dir, falling
// back to defaults plus environment.
func LoadFromDir(dir string) (*Config, error) {
	for _, path := range []string{
		filepath.Join(dir, "dineai.yaml"),
		filepath.Join(dir, ".dineai", "config.yaml"),
	} {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Load("")
}

// envTransform maps DINEAI_EMBEDDING__API_KEY_ENV to embedding.api_key_env.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

var sliceConfigPaths = []string{
	"catalog.includes",
	"catalog.excludes",
}

// splitSliceFields turns comma-separated env values into slices.
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EmbeddingCachePath resolves the cache file relative to dir. An empty
// setting disables the cache.
func (c *Config) EmbeddingCachePath(dir string) string {
	p := c.Embedding.CachePath
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// EnsureDataDir ensures the .dineai directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".dineai"), 0755)
}
