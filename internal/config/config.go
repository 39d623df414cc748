// Package config handles configuration for the answercache service
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/answercache/answercache/internal/llm"
)

// Config represents the complete configuration for the service
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Redis   RedisConfig   `mapstructure:"redis"`
	OpenAI  llm.Config    `mapstructure:"openai"`
	Cache   CacheConfig   `mapstructure:"cache"`
	CORS    CORSConfig    `mapstructure:"cors"`
}

// ServiceConfig contains service-level configuration
type ServiceConfig struct {
	Port              int           `mapstructure:"port"`
	LogLevel          string        `mapstructure:"log_level"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BurstSize         int           `mapstructure:"burst_size"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	Database    int           `mapstructure:"database"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	PoolSize    int           `mapstructure:"pool_size"`
}

// CacheConfig contains cache store settings
type CacheConfig struct {
	Prefix        string        `mapstructure:"prefix"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	ScanBatchSize int64         `mapstructure:"scan_batch_size"`
}

// CORSConfig contains allowed origins for browser clients
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	viper.SetConfigName("answercache")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")

	setDefaults()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults and env vars suffice
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("service.port", 8080)
	viper.SetDefault("service.log_level", "info")
	viper.SetDefault("service.shutdown_timeout", "30s")
	viper.SetDefault("service.requests_per_second", 50)
	viper.SetDefault("service.burst_size", 100)

	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.chat_model", "gpt-4o-mini")
	viper.SetDefault("openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai.request_timeout", "30s")

	viper.SetDefault("cache.prefix", "query:")
	viper.SetDefault("cache.default_ttl", "300s")
	viper.SetDefault("cache.scan_batch_size", 100)

	viper.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
}

func bindEnvVars() {
	_ = viper.BindEnv("service.port", "PORT")
	_ = viper.BindEnv("service.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
}

// overrideFromEnv applies overrides that viper's env binding does not cover
func overrideFromEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.OpenAI.APIKey = key
	}
}

func validate(config *Config) error {
	if config.Service.Port <= 0 || config.Service.Port > 65535 {
		return fmt.Errorf("service port must be between 1 and 65535, got %d", config.Service.Port)
	}
	if config.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}
	if config.Cache.Prefix == "" {
		return fmt.Errorf("cache prefix is required")
	}
	// A missing API key is allowed at startup; the health endpoint reports
	// it and query requests fail with a server error until it is set.
	return nil
}
