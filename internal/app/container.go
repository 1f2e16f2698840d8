// Package app assembles the long-lived components both processes share.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/suPer8Hu/readmegen/internal/ai"
	"github.com/suPer8Hu/readmegen/internal/analysis"
	"github.com/suPer8Hu/readmegen/internal/backoff"
	"github.com/suPer8Hu/readmegen/internal/config"
	"github.com/suPer8Hu/readmegen/internal/db"
	"github.com/suPer8Hu/readmegen/internal/fingerprint"
	"github.com/suPer8Hu/readmegen/internal/generation"
	"github.com/suPer8Hu/readmegen/internal/source"
	"github.com/suPer8Hu/readmegen/internal/store/redisstore"
)

type Container struct {
	Config    config.Config
	Log       *zap.SugaredLogger
	DB        *gorm.DB
	Repo      *generation.Repo
	Cache     fingerprint.Cache
	Generator *ai.Generator
	Executor  *generation.Executor

	closers []func() error
}

// New opens the database, migrates it and builds the executor. Callers own
// the returned container and must Close it.
func New(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*Container, error) {
	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	c := &Container{Config: cfg, Log: log, DB: gdb}
	if sqlDB, err := gdb.DB(); err == nil {
		c.closers = append(c.closers, sqlDB.Close)
	}

	c.Repo = generation.NewRepo(gdb)
	if err := c.Repo.AutoMigrate(); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	c.Cache = c.newCache(ctx)

	provider, err := NewRegistry(cfg).Get(ctx, cfg.AIProvider, cfg.AIModel)
	if err != nil {
		_ = c.Close()
		return nil, errors.WithHint(err, "set AI_PROVIDER to openai, ollama or openrouter")
	}
	c.Generator = ai.NewGenerator(cfg.AIProvider, provider)

	fetcher := source.NewGitFetcher(source.GitOptions{
		Depth:          cfg.GitCloneDepth,
		SSHKeyPath:     cfg.GitSSHKeyPath,
		SSHPassword:    cfg.GitSSHPassword,
		KnownHostsPath: cfg.GitSSHKnownHosts,
	})
	c.Executor = generation.NewExecutor(c.Repo, fetcher, analysis.NewAnalyzer(cfg.AnalysisMaxDepth), c.Generator, c.Cache,
		generation.ExecutorConfig{
			MaxRetries:     cfg.FetchMaxRetries,
			Backoff:        backoff.NewExponential(cfg.FetchRetryBaseDelay, cfg.FetchRetryMaxDelay),
			AttemptTimeout: cfg.AttemptTimeout,
			WorkspaceDir:   cfg.WorkspaceDir,
			CacheTTL:       cfg.CacheTTL,
		}, log.With("component", "executor"))

	log.Infow("container ready", "provider", cfg.AIProvider, "cache", cfg.CacheBackend)
	return c, nil
}

// newCache prefers Redis and falls back to process memory when it is
// unreachable, since the cache only saves backend calls.
func (c *Container) newCache(ctx context.Context) fingerprint.Cache {
	if c.Config.CacheBackend != "redis" {
		return fingerprint.NewMemoryCache()
	}
	store := redisstore.New(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pctx); err != nil {
		c.Log.Warnw("redis unavailable, using in-memory cache", "addr", c.Config.RedisAddr, "err", err)
		_ = store.Close()
		return fingerprint.NewMemoryCache()
	}
	c.closers = append(c.closers, store.Close)
	return store
}

// NewRegistry registers every supported backend. AI_MODEL, when set,
// overrides the provider's own default model.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	timeout := cfg.AttemptTimeout

	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, strings.TrimSpace(model), timeout), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m, timeout), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, timeout), nil
	})
	return reg
}

func (c *Container) Close() error {
	var errs error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = errors.CombineErrors(errs, c.closers[i]())
	}
	c.closers = nil
	return errs
}
