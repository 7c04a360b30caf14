package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_URL", "postgres://localhost/bloodwork")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := LoadConfig()

	assert.Equal(t, "postgres://localhost/bloodwork", cfg.Database.DSN)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.MaxConnLifetime)
	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 300, cfg.Extract.DPI)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "fs", cfg.Storage.Backend)
	assert.Equal(t, "blood-tests", cfg.Events.Topic)
	assert.Empty(t, cfg.Events.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_URL", "sqlite://file.db")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_TIMEOUT", "5s")
	t.Setenv("RASTER_DPI", "150")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := LoadConfig()

	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 150, cfg.Extract.DPI)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
}

func TestValidate_MissingCredentialIsFatal(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_URL", "postgres://localhost/bloodwork")
	t.Setenv("OPENAI_API_KEY", "")

	err := LoadConfig().Validate()
	require.Error(t, err)

	var ae *AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, CodeConfig, ae.Code)
	assert.Contains(t, ae.Message, "OPENAI_API_KEY")
}

func TestValidate_S3BackendNeedsBucket(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{DSN: "x"},
		LLM:      LLMConfig{APIKey: "k"},
		Server:   ServerConfig{HTTPAddr: ":8000"},
		Extract:  ExtractConfig{DPI: 300},
		Storage:  StorageConfig{Backend: "s3"},
	}
	require.Error(t, cfg.Validate())

	cfg.Storage.S3Bucket = "reports"
	require.NoError(t, cfg.Validate())
}
