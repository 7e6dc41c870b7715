// Package config loads the run configuration of the synapgo CLI and
// SONATA simulation configs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SYNAPGO_CACHE_BACKEND.
const EnvPrefix = "SYNAPGO"

// Cache backends.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheDisk     = "disk"
	CacheBlob     = "blob"
	CacheDynamoDB = "dynamodb"
)

// ErrInvalid is returned for configurations that fail validation.
var ErrInvalid = errors.New("config: invalid")

// CacheConfig selects the position cache backend.
type CacheConfig struct {
	Backend     string `mapstructure:"backend"`
	Namespace   string `mapstructure:"namespace"`
	Compression string `mapstructure:"compression"`

	// MemoryBytes bounds the memory backend.
	MemoryBytes int64 `mapstructure:"memory_bytes"`
	// Dir and MaxBytes configure the disk backend.
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
	// URI names the blob store of the blob backend.
	URI string `mapstructure:"uri"`
	// Table and TTL configure the DynamoDB backend.
	Table string        `mapstructure:"table"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// S3Config configures s3:// dataset and cache URIs.
type S3Config struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// MinioConfig configures minio:// dataset and cache URIs.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Config holds the runtime configuration of the CLI.
// Values are populated from the config file, SYNAPGO_* env vars, and flags.
type Config struct {
	Dataset     string      `mapstructure:"dataset"`
	LogLevel    string      `mapstructure:"log_level"`
	LogFormat   string      `mapstructure:"log_format"`
	MemoryLimit int64       `mapstructure:"memory_limit"`
	IOLimit     int64       `mapstructure:"io_limit"`
	Prefetch    string      `mapstructure:"prefetch"`
	MetricsAddr string      `mapstructure:"metrics_addr"`
	Cache       CacheConfig `mapstructure:"cache"`
	S3          S3Config    `mapstructure:"s3"`
	Minio       MinioConfig `mapstructure:"minio"`
}

// SetDefaults registers the built-in defaults on v. Every key has a
// default so AutomaticEnv overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dataset", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("memory_limit", 0)
	v.SetDefault("io_limit", 0)
	v.SetDefault("prefetch", "none")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.compression", "lz4")
	v.SetDefault("cache.memory_bytes", 256<<20)
	v.SetDefault("cache.max_bytes", 1<<30)
	v.SetDefault("cache.namespace", "")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.uri", "")
	v.SetDefault("cache.table", "")
	v.SetDefault("cache.ttl", 0)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.use_ssl", true)
}

// New returns a viper instance with defaults and env overrides wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, when set, into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and the settings each cache backend needs.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	if c.MemoryLimit < 0 || c.IOLimit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalid)
	}

	switch c.Cache.Backend {
	case "", CacheNone, CacheMemory:
	case CacheDisk:
		if c.Cache.Dir == "" {
			return fmt.Errorf("%w: cache.dir is required for the disk backend", ErrInvalid)
		}
	case CacheBlob:
		if c.Cache.URI == "" {
			return fmt.Errorf("%w: cache.uri is required for the blob backend", ErrInvalid)
		}
	case CacheDynamoDB:
		if c.Cache.Table == "" {
			return fmt.Errorf("%w: cache.table is required for the dynamodb backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.Cache.Backend)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}
