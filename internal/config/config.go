package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment
// variables. Field-for-field mirror of the Configuration Surface table.
type Config struct {
	NodeEnv string `env:"NODE_ENV" envDefault:"production"`

	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	CacheURL    string `env:"CACHE_URL,required"`

	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	SignaturesDir string `env:"SIGNATURES_DIR" envDefault:"./data/signatures"`

	RateLimitLoginPerWindow   int           `env:"RATE_LIMIT_LOGIN_PER_WINDOW" envDefault:"5"`
	RateLimitMutatePerWindow  int           `env:"RATE_LIMIT_MUTATE_PER_WINDOW" envDefault:"30"`
	RateLimitGeneralPerWindow int           `env:"RATE_LIMIT_GENERAL_PER_WINDOW" envDefault:"100"`
	RateLimitWindow           time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	RequestTimeoutMS int `env:"REQUEST_TIMEOUT_MS" envDefault:"30000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	DBPoolMaxConns int `env:"DB_POOL_MAX_CONNS" envDefault:"15"`
}

// IsDevelopment reports whether relaxed dev-mode rules apply.
func (c *Config) IsDevelopment() bool {
	return c.NodeEnv == "development"
}

// RequestTimeout returns the request deadline as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from environment variables and validates the
// cross-field invariants env struct tags cannot express: secrets are
// mandatory outside development, and at least one CORS origin must be
// configured outside development. A non-nil error here should make the
// caller exit non-zero before any listener is opened.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsDevelopment() {
		return nil
	}

	if len(c.AccessTokenSecret) < 32 {
		return fmt.Errorf("ACCESS_TOKEN_SECRET must be set and at least 32 bytes outside NODE_ENV=development")
	}
	if len(c.RefreshTokenSecret) < 32 {
		return fmt.Errorf("REFRESH_TOKEN_SECRET must be set and at least 32 bytes outside NODE_ENV=development")
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must name at least one origin outside NODE_ENV=development")
	}

	return nil
}
