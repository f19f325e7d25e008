// Package config loads investigator settings from defaults, an optional YAML
// file and OSINT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/taljindergill78/FSE570/internal/circuitbreaker"
	"github.com/taljindergill78/FSE570/internal/tracing"
)

// EnvConfigPath names the config file when Load is given no path.
const EnvConfigPath = "OSINT_CONFIG"

type Config struct {
	DataRoot string         `mapstructure:"data_root"`
	Registry RegistryConfig `mapstructure:"registry"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  tracing.Config `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// RegistryConfig points at an optional YAML entity registry. Without a file
// the bundled entities are used.
type RegistryConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

type DispatchConfig struct {
	Parallel       bool `mapstructure:"parallel"`
	MaxConcurrency int  `mapstructure:"max_concurrency"`
}

type SourcesConfig struct {
	// Enabled lists processor ids; empty enables every bundled source.
	Enabled   []string          `mapstructure:"enabled"`
	UserAgent string            `mapstructure:"user_agent"`
	SEC       SECSourceConfig   `mapstructure:"sec"`
	NHTSA     NHTSASourceConfig `mapstructure:"nhtsa"`
}

type SECSourceConfig struct {
	BaseURL     string   `mapstructure:"base_url"`
	ArchivesURL string   `mapstructure:"archives_url"`
	UserAgent   string   `mapstructure:"user_agent"`
	Forms       []string `mapstructure:"forms"`
	MaxFilings  int      `mapstructure:"max_filings"`
}

type NHTSASourceConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	PageSize int    `mapstructure:"page_size"`
}

// HTTPConfig applies to every evidence source fetcher.
type HTTPConfig struct {
	Timeout           time.Duration           `mapstructure:"timeout"`
	Retries           int                     `mapstructure:"retries"`
	Backoff           time.Duration           `mapstructure:"backoff"`
	RequestsPerSecond float64                 `mapstructure:"requests_per_second"`
	Burst             int                     `mapstructure:"burst"`
	CircuitBreaker    circuitbreaker.Settings `mapstructure:"circuit_breaker"`
}

const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

type CacheConfig struct {
	Backend        string                  `mapstructure:"backend"`
	RedisAddr      string                  `mapstructure:"redis_addr"`
	RedisPassword  string                  `mapstructure:"redis_password"`
	RedisDB        int                     `mapstructure:"redis_db"`
	Prefix         string                  `mapstructure:"prefix"`
	TTL            time.Duration           `mapstructure:"ttl"`
	CircuitBreaker circuitbreaker.Settings `mapstructure:"circuit_breaker"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// StreamCapacity is how many progress events are kept per investigation for replay.
	StreamCapacity int           `mapstructure:"stream_capacity"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Interval is how often circuit breaker state gauges are refreshed.
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_root", "data")

	v.SetDefault("registry.file", "")
	v.SetDefault("registry.watch", false)

	v.SetDefault("dispatch.parallel", false)
	v.SetDefault("dispatch.max_concurrency", 4)

	v.SetDefault("sources.enabled", []string{})
	v.SetDefault("sources.user_agent", "osint-investigator/1.0")
	v.SetDefault("sources.sec.base_url", "https://data.sec.gov")
	v.SetDefault("sources.sec.archives_url", "https://www.sec.gov/Archives")
	v.SetDefault("sources.sec.user_agent", "")
	v.SetDefault("sources.sec.forms", []string{})
	v.SetDefault("sources.sec.max_filings", 500)
	v.SetDefault("sources.nhtsa.base_url", "https://datahub.transportation.gov")
	v.SetDefault("sources.nhtsa.page_size", 5000)

	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.retries", 2)
	v.SetDefault("http.backoff", 500*time.Millisecond)
	v.SetDefault("http.requests_per_second", 5.0)
	v.SetDefault("http.burst", 1)
	cb := circuitbreaker.HTTPSettings()
	v.SetDefault("http.circuit_breaker.max_requests", cb.MaxRequests)
	v.SetDefault("http.circuit_breaker.interval", cb.Interval)
	v.SetDefault("http.circuit_breaker.timeout", cb.Timeout)
	v.SetDefault("http.circuit_breaker.failure_threshold", cb.FailureThreshold)
	v.SetDefault("http.circuit_breaker.success_threshold", cb.SuccessThreshold)

	v.SetDefault("cache.backend", CacheBackendFile)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "osint:raw:")
	v.SetDefault("cache.ttl", 24*time.Hour)
	rb := circuitbreaker.RedisSettings()
	v.SetDefault("cache.circuit_breaker.max_requests", rb.MaxRequests)
	v.SetDefault("cache.circuit_breaker.interval", rb.Interval)
	v.SetDefault("cache.circuit_breaker.timeout", rb.Timeout)
	v.SetDefault("cache.circuit_breaker.failure_threshold", rb.FailureThreshold)
	v.SetDefault("cache.circuit_breaker.success_threshold", rb.SuccessThreshold)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.stream_capacity", 256)
	v.SetDefault("server.health_interval", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	v.SetDefault("logging.development", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "osint-investigator")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.interval", 10*time.Second)
}

// Load reads path, or $OSINT_CONFIG, or osint.yaml from ./ or ./config when
// present. A named file that cannot be read is an error; a missing default
// file is not. Environment variables override the file: OSINT_DATA_ROOT,
// OSINT_CACHE_BACKEND and so on. The SEC user agent also honours
// SEC_USER_AGENT and SEC_UA.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OSINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("sources.sec.user_agent", "OSINT_SOURCES_SEC_USER_AGENT", "SEC_USER_AGENT", "SEC_UA"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("osint")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Sources.Enabled = splitList(cfg.Sources.Enabled)
	cfg.Sources.SEC.Forms = splitList(cfg.Sources.SEC.Forms)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// splitList flattens comma-separated entries and drops blanks, so env values
// like "sec_edgar, nhtsa" behave like YAML lists.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate rejects settings the investigator cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DataRoot) == "" {
		errs = append(errs, errors.New("data_root must not be empty"))
	}
	switch c.Cache.Backend {
	case CacheBackendFile:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q: want %s or %s", c.Cache.Backend, CacheBackendFile, CacheBackendRedis))
	}
	if c.Dispatch.MaxConcurrency < 0 {
		errs = append(errs, errors.New("dispatch.max_concurrency must be >= 0"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.HTTP.Retries < 0 {
		errs = append(errs, errors.New("http.retries must be >= 0"))
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.encoding %q: want json or console", c.Logging.Encoding))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
