package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, k := range []string{"FETCH_MAX_RETRIES", "FETCH_RETRY_BASE_DELAY", "CACHE_TTL", "WORKER_CONCURRENCY", "AI_PROVIDER", "ATTEMPT_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, 5, cfg.FetchMaxRetries)
	assert.Equal(t, time.Second, cfg.FetchRetryBaseDelay)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 300*time.Second, cfg.AttemptTimeout)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
	assert.Equal(t, "openai", cfg.AIProvider)
	assert.Equal(t, "readme_jobs", cfg.RabbitQueue)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("FETCH_MAX_RETRIES", "2")
	t.Setenv("FETCH_RETRY_BASE_DELAY", "250ms")
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("AI_PROVIDER", "Ollama")

	cfg := Load()

	assert.Equal(t, 2, cfg.FetchMaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.FetchRetryBaseDelay)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Equal(t, "ollama", cfg.AIProvider)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("RABBIT_QUEUE=from_file\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("RABBIT_QUEUE", "")
	_ = os.Unsetenv("RABBIT_QUEUE")

	cfg := Load()
	assert.Equal(t, "from_file", cfg.RabbitQueue)
}
