package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Push     PushConfig     `mapstructure:"push"`
	Poller   PollerConfig   `mapstructure:"poller"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" envconfig:"SERVER_PORT" default:"8080"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds" envconfig:"SERVER_TIMEOUT_SECONDS" default:"30"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" envconfig:"SERVER_RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" envconfig:"SERVER_RATE_LIMIT_BURST" default:"100"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace" envconfig:"SERVER_SHUTDOWN_GRACE" default:"5s"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST" default:"localhost"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT" default:"5432"`
	User     string `mapstructure:"user" envconfig:"DB_USER" default:"notify"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME" default:"notify"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE" default:"disable"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"REDIS_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"REDIS_RETRY_BACKOFF" default:"100ms"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret" envconfig:"AUTH_JWT_SECRET"`
	JWTExpiry  time.Duration `mapstructure:"jwt_expiry" envconfig:"AUTH_JWT_EXPIRY" default:"24h"`
	APIKeyHash string        `mapstructure:"api_key_hash" envconfig:"AUTH_API_KEY_HASH"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT" default:"587"`
	User     string `mapstructure:"user" envconfig:"SMTP_USER"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
	AlertsTo string `mapstructure:"alerts_to" envconfig:"SMTP_ALERTS_TO"`
}

type PushConfig struct {
	Endpoint         string        `mapstructure:"endpoint" envconfig:"PUSH_ENDPOINT"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" envconfig:"PUSH_REQUEST_TIMEOUT" default:"10s"`
	SettingsCacheTTL time.Duration `mapstructure:"settings_cache_ttl" envconfig:"PUSH_SETTINGS_CACHE_TTL" default:"5m"`
	BreakerFailures  int           `mapstructure:"breaker_failures" envconfig:"PUSH_BREAKER_FAILURES" default:"5"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout" envconfig:"PUSH_BREAKER_TIMEOUT" default:"30s"`
}

type PollerConfig struct {
	Interval    time.Duration `mapstructure:"interval" envconfig:"POLLER_INTERVAL" default:"60s"`
	Concurrency int           `mapstructure:"concurrency" envconfig:"POLLER_CONCURRENCY" default:"1"`
	HealthPort  int           `mapstructure:"health_port" envconfig:"POLLER_HEALTH_PORT" default:"8081"`
}

// LoadConfig reads config.yaml when present. Without a config file it falls
// back to environment variables (NOTIFY_* prefix) so containerized
// deployments can run file-less.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	var config Config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := envconfig.Process("notify", &config); err != nil {
			return nil, fmt.Errorf("failed to process environment config: %w", err)
		}
		return &config, nil
	}

	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
