package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suPer8Hu/readmegen/internal/ai"
	"github.com/suPer8Hu/readmegen/internal/config"
	"github.com/suPer8Hu/readmegen/internal/fingerprint"
)

func testConfig(t *testing.T) config.Config {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return config.Config{
		DBDSN:               "file:" + name + "?mode=memory&cache=shared",
		CacheBackend:        "memory",
		AIProvider:          "ollama",
		OllamaBaseURL:       "http://127.0.0.1:1",
		OllamaModel:         "llama3:latest",
		FetchMaxRetries:     5,
		FetchRetryBaseDelay: time.Second,
		FetchRetryMaxDelay:  time.Minute,
		AttemptTimeout:      time.Minute,
		AnalysisMaxDepth:    3,
		GitCloneDepth:       1,
	}
}

func TestNew_WiresComponents(t *testing.T) {
	c, err := New(context.Background(), testConfig(t), zap.NewNop().Sugar())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Executor)
	assert.Equal(t, "ollama", c.Generator.Name())
	assert.IsType(t, &fingerprint.MemoryCache{}, c.Cache)
	assert.True(t, c.DB.Migrator().HasTable("generation_jobs"))
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.AIProvider = "carrier-pigeon"

	_, err := New(context.Background(), cfg, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ai.ErrUnknownProvider)
}

func TestNew_RedisFallsBackToMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheBackend = "redis"
	cfg.RedisAddr = "127.0.0.1:1"

	c, err := New(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer c.Close()
	assert.IsType(t, &fingerprint.MemoryCache{}, c.Cache)
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(testConfig(t))
	assert.Equal(t, []string{"ollama", "openai", "openrouter"}, reg.Names())

	for _, name := range reg.Names() {
		p, err := reg.Get(context.Background(), name, "")
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}

	_, err := newGenerator(testConfig(t), "openai").Generate(context.Background(), "p")
	assert.Equal(t, ai.KindConfiguration, ai.KindOf(err), "missing OpenAI key")
}

// newGenerator builds a generator for one registered provider.
func newGenerator(cfg config.Config, name string) *ai.Generator {
	p, _ := NewRegistry(cfg).Get(context.Background(), name, "")
	return ai.NewGenerator(name, p)
}
