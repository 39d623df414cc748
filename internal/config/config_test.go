package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func clearEnvVars() {
	vars := []string{
		"PORT", "LOG_LEVEL",
		"REDIS_ADDRESS", "REDIS_PASSWORD",
		"OPENAI_API_KEY", "OPENAI_BASE_URL",
	}
	for _, v := range vars {
		_ = os.Unsetenv(v)
	}
	viper.Reset()
}

func TestConfigDefaults(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Service.ShutdownTimeout)

	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 0, cfg.Redis.Database)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)

	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.RequestTimeout)

	assert.Equal(t, "query:", cfg.Cache.Prefix)
	assert.Equal(t, 300*time.Second, cfg.Cache.DefaultTTL)

	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	_ = os.Setenv("PORT", "9090")
	_ = os.Setenv("LOG_LEVEL", "debug")
	_ = os.Setenv("REDIS_ADDRESS", "redis.example.com:6380")
	_ = os.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "redis.example.com:6380", cfg.Redis.Address)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestConfigMissingAPIKeyIsAllowed(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Empty(t, cfg.OpenAI.APIKey)
}
