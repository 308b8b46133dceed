package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every server-level option once the loader resolves defaults,
// file content, and environment overrides.
type Config struct {
	Server ServerConfig `koanf:"server"`
}

// ServerConfig collects the bootstrap knobs owned by the process lifecycle.
type ServerConfig struct {
	Listen  ListenConfig  `koanf:"listen"`
	Logging LoggingConfig `koanf:"logging"`
	Cache   CacheConfig   `koanf:"cache"`
	Elastic ElasticConfig `koanf:"elastic"`
	Auth    AuthConfig    `koanf:"auth"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig selects the cache backend and its default entry lifetime.
type CacheConfig struct {
	Backend    string           `koanf:"backend"`
	TTLSeconds int              `koanf:"ttlSeconds"`
	Redis      RedisCacheConfig `koanf:"redis"`
}

// RedisCacheConfig carries the connection options for the Redis cache store.
type RedisCacheConfig struct {
	Address  string              `koanf:"address"`
	Username string              `koanf:"username"`
	Password string              `koanf:"password"`
	DB       int                 `koanf:"db"`
	TLS      RedisTLSCacheConfig `koanf:"tls"`
}

// RedisTLSCacheConfig toggles TLS towards Redis and optionally pins a CA bundle.
type RedisTLSCacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// ElasticConfig points the search client at the document backend and shapes
// its retry policy for transient connection failures.
type ElasticConfig struct {
	URL   string      `koanf:"url"`
	Retry RetryConfig `koanf:"retry"`
}

// RetryConfig parameterizes the exponential backoff executor. The first retry
// sleeps initialMillis, each following retry multiplies the delay by factor,
// and no single delay exceeds maxMillis. maxAttempts counts retries, not the
// initial attempt.
type RetryConfig struct {
	InitialMillis int     `koanf:"initialMillis"`
	Factor        float64 `koanf:"factor"`
	MaxMillis     int     `koanf:"maxMillis"`
	MaxAttempts   int     `koanf:"maxAttempts"`
}

// AuthConfig describes the external identity service, the credentials this
// service presents to it, and the key material for local token validation.
type AuthConfig struct {
	URL             string  `koanf:"url"`
	ServiceLogin    string  `koanf:"serviceLogin"`
	ServicePassword string  `koanf:"servicePassword"`
	PublicKeyFile   string  `koanf:"publicKeyFile"`
	TokenTTLSeconds int     `koanf:"tokenTTLSeconds"`
	PremiumRating   float64 `koanf:"premiumRating"`
}

// DefaultConfig returns the baseline every deployment starts from before file
// and environment overrides apply.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Cache: CacheConfig{
				Backend:    "memory",
				TTLSeconds: 300,
			},
			Elastic: ElasticConfig{
				URL: "http://127.0.0.1:9200",
				Retry: RetryConfig{
					InitialMillis: 200,
					Factor:        2,
					MaxMillis:     2000,
					MaxAttempts:   3,
				},
			},
			Auth: AuthConfig{
				URL:             "http://127.0.0.1:8000",
				TokenTTLSeconds: int((30 * 24 * time.Hour).Seconds()),
				PremiumRating:   8.0,
			},
		},
	}
}

// TTL converts the configured cache lifetime into a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TokenTTL converts the service-token lifetime into a duration.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLSeconds) * time.Second
}

// Validate rejects configurations the process cannot safely start with.
func (c Config) Validate() error {
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen port %d out of range", c.Server.Listen.Port)
	}
	switch strings.ToLower(c.Server.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unsupported log level %q", c.Server.Logging.Level)
	}
	switch strings.ToLower(c.Server.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unsupported log format %q", c.Server.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Server.Cache.Backend)) {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("config: unsupported cache backend %q", c.Server.Cache.Backend)
	}
	if c.Server.Cache.TTLSeconds <= 0 {
		return errors.New("config: cache ttlSeconds must be positive")
	}
	if err := validateURL("elastic url", c.Server.Elastic.URL); err != nil {
		return err
	}
	if err := c.Server.Elastic.Retry.validate(); err != nil {
		return err
	}
	if err := validateURL("auth url", c.Server.Auth.URL); err != nil {
		return err
	}
	if c.Server.Auth.TokenTTLSeconds <= 0 {
		return errors.New("config: auth tokenTTLSeconds must be positive")
	}
	return nil
}

func (r RetryConfig) validate() error {
	if r.InitialMillis <= 0 {
		return errors.New("config: retry initialMillis must be positive")
	}
	if r.Factor < 1 {
		return errors.New("config: retry factor must be at least 1")
	}
	if r.MaxMillis < r.InitialMillis {
		return errors.New("config: retry maxMillis must not undercut initialMillis")
	}
	if r.MaxAttempts < 0 {
		return errors.New("config: retry maxAttempts must not be negative")
	}
	return nil
}

func validateURL(name, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("config: %s required", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("config: %s must be http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("config: %s missing host", name)
	}
	return nil
}
