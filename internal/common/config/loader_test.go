package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := writeConfig(t, `
app:
  name: loan-assistant
llm:
  model: gemini-test
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", cfg.LLM.Model)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, 0.95, cfg.LLM.TopP)
	assert.Equal(t, 40, cfg.LLM.TopK)
	assert.Equal(t, 1024, cfg.LLM.MaxOutputTokens)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 3600, cfg.Session.TTL)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"jsonl", "prometheus"}, cfg.Metrics.Sinks)
	assert.True(t, cfg.Metrics.HasSink("jsonl"))
	assert.False(t, cfg.Metrics.HasSink("postgres"))
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis:6379")
	path := writeConfig(t, `
session:
  store: redis
database:
  redis:
    address: ${TEST_REDIS_ADDR}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", cfg.Database.Redis.Address)
	assert.Equal(t, "loan:session:", cfg.Database.Redis.KeyPrefix)
	assert.Equal(t, 10, cfg.Database.Redis.PoolSize)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"redis store without address", "session:\n  store: redis\n", "database.redis.address"},
		{"unknown store", "session:\n  store: disk\n", "session.store"},
		{"postgres sink without host", "metrics:\n  sinks: [postgres]\n", "postgres sink"},
		{"elastic sink without addresses", "metrics:\n  sinks: [elasticsearch]\n", "elasticsearch sink"},
		{"unknown sink", "metrics:\n  sinks: [kafka]\n", "unknown metrics sink"},
		{"camunda enabled without broker", "camunda:\n  enabled: true\n", "camunda.broker_address"},
		{"notifications without topic", "notifications:\n  enabled: true\n", "topic_arn"},
		{"ses without addresses", "notifications:\n  ses:\n    enabled: true\n", "from_email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWorkerConfig(t *testing.T) {
	path := writeConfig(t, `
workers:
  process-turn:
    enabled: false
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	wc := GetWorkerConfig(cfg, "process-turn")
	assert.False(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 3, wc.MaxRetries)
	assert.False(t, IsWorkerEnabled(cfg, "process-turn"))
	assert.True(t, IsWorkerEnabled(cfg, "other"))
	assert.Equal(t, 3, GetWorkerConfig(cfg, "other").MaxRetries)
}

func TestLoadFromFile_ShippedConfig(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "loan-assistant", cfg.App.Name)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, []string{"jsonl", "prometheus"}, cfg.Metrics.Sinks)
	assert.False(t, cfg.Camunda.Enabled)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, 60000, GetWorkerConfig(cfg, "process-turn").Timeout)
	assert.Equal(t, 30*time.Second, GetDuration(cfg.LLM.Timeout))
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresConfig{Host: "db", Port: 5432, User: "loan", Password: "pw", Database: "loans", SSLMode: "require"}.GetDSN()
	assert.Equal(t, "host=db port=5432 user=loan password=pw dbname=loans sslmode=require application_name=loan-assistant", dsn)
}
