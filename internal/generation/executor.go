package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/suPer8Hu/readmegen/internal/analysis"
	"github.com/suPer8Hu/readmegen/internal/backoff"
	"github.com/suPer8Hu/readmegen/internal/fingerprint"
	"github.com/suPer8Hu/readmegen/internal/prompt"
	"github.com/suPer8Hu/readmegen/internal/source"
)

type Fetcher interface {
	Fetch(ctx context.Context, reference, dir string) error
}

type Analyzer interface {
	Analyze(ctx context.Context, root string) (*analysis.Summary, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ExecutorConfig struct {
	// MaxRetries is how many times a failed fetch is retried, so a job gets
	// at most MaxRetries+1 attempts.
	MaxRetries     int
	Backoff        backoff.Strategy
	AttemptTimeout time.Duration
	WorkspaceDir   string
	CacheTTL       time.Duration
}

// Executor runs one job through fetch, analysis and generation.
type Executor struct {
	repo      *Repo
	fetcher   Fetcher
	analyzer  Analyzer
	generator Generator
	cache     fingerprint.Cache
	cfg       ExecutorConfig
	log       *zap.SugaredLogger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(repo *Repo, fetcher Fetcher, analyzer Analyzer, generator Generator,
	cache fingerprint.Cache, cfg ExecutorConfig, log *zap.SugaredLogger) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff == nil {
		cfg.Backoff = backoff.NewExponential(time.Second, time.Minute)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{
		repo:      repo,
		fetcher:   fetcher,
		analyzer:  analyzer,
		generator: generator,
		cache:     cache,
		cfg:       cfg,
		log:       log,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute drives jobID to a terminal status. It returns nil once the job is
// persisted as completed or failed, or when another worker already owns it.
// ErrJobNotFound means the record is gone; any other error is infrastructure
// trouble and the job is left for redelivery.
func (e *Executor) Execute(ctx context.Context, jobID string) error {
	for attempt := 1; ; attempt++ {
		err := e.attempt(ctx, jobID, attempt)

		var se *StageError
		if !errors.As(err, &se) || !se.Retryable() {
			return err
		}

		if attempt > e.cfg.MaxRetries {
			msg := fmt.Sprintf("fetch failed after %d attempts (retries exhausted): %v", attempt, se.Err)
			e.log.Warnw("job retries exhausted", "job_id", jobID, "attempt", attempt, "err", se.Err)
			return e.finish(ctx, jobID, StatusFailed, msg)
		}

		delay := e.cfg.Backoff.Delay(attempt)
		e.log.Infow("job fetch failed, retrying",
			"job_id", jobID, "attempt", attempt, "delay", delay, "err", se.Err)

		if _, err := e.repo.ReleaseClaim(detached(ctx), jobID); err != nil {
			return errors.Wrap(err, "release claim")
		}
		if err := e.sleep(ctx, delay); err != nil {
			// left pending; a redelivery resumes it
			return err
		}
	}
}

// attempt runs the pipeline once. A retryable *StageError comes back with the
// claim still held; every other outcome has been persisted already.
func (e *Executor) attempt(ctx context.Context, jobID string, n int) (err error) {
	job, err := e.repo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			e.log.Warnw("job not found", "job_id", jobID)
		}
		return err
	}
	if job.Status != StatusPending {
		e.log.Infow("job skipped", "job_id", jobID, "status", job.Status)
		return nil
	}

	claimed, err := e.repo.ClaimJob(ctx, jobID)
	if err != nil {
		return errors.Wrap(err, "claim job")
	}
	if !claimed {
		e.log.Infow("job claimed elsewhere", "job_id", jobID)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("job panicked", "job_id", jobID, "panic", r)
			err = e.finish(ctx, jobID, StatusFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	start := time.Now()
	text, err := e.run(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down: hand the job back instead of failing it
			if _, rerr := e.repo.ReleaseClaim(detached(ctx), jobID); rerr != nil {
				return errors.Wrap(rerr, "release claim")
			}
			return ctx.Err()
		}
		var se *StageError
		if errors.As(err, &se) && se.Retryable() {
			return se
		}
		e.log.Warnw("job failed", "job_id", jobID, "attempt", n, "cost", time.Since(start), "err", err)
		return e.finish(ctx, jobID, StatusFailed, err.Error())
	}

	e.log.Infow("job completed", "job_id", jobID, "attempt", n, "cost", time.Since(start))
	return e.finish(ctx, jobID, StatusCompleted, text)
}

// run is one pass of fetch, analysis and generation inside a fresh workspace.
func (e *Executor) run(parent context.Context, job *Job) (string, error) {
	ctx := parent
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, e.cfg.AttemptTimeout)
		defer cancel()
	}

	ws, err := source.AcquireWorkspace(e.cfg.WorkspaceDir)
	if err != nil {
		return "", stageErr(StageFetch, err)
	}
	defer func() {
		if err := ws.Release(); err != nil {
			e.log.Warnw("workspace cleanup failed", "job_id", job.ID, "dir", ws.Dir(), "err", err)
		}
	}()

	t0 := time.Now()
	if err := e.fetcher.Fetch(ctx, job.TargetReference, ws.Dir()); err != nil {
		return "", stageErr(StageFetch, err)
	}
	fetchCost := time.Since(t0)

	summary, err := e.analyzer.Analyze(ctx, ws.Dir())
	if err != nil {
		return "", stageErr(StageAnalysis, err)
	}
	if name := source.ProjectName(job.TargetReference); name != "" {
		summary.ProjectName = name
	}

	key, err := fingerprint.Key(job.TargetReference, *summary)
	if err != nil {
		return "", stageErr(StageAnalysis, err)
	}
	if text, ok := e.lookup(ctx, job.ID, key); ok {
		e.log.Infow("cache hit", "job_id", job.ID, "key", key)
		return text, nil
	}

	t1 := time.Now()
	text, err := e.generator.Generate(ctx, prompt.Build(*summary, summary.Readme))
	if err != nil {
		return "", stageErr(StageGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", stageErr(StageGeneration, errors.New("backend returned empty output"))
	}
	e.log.Debugw("job timing", "job_id", job.ID, "fetch", fetchCost, "generate", time.Since(t1))

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, text, e.cfg.CacheTTL); err != nil {
			e.log.Warnw("cache write failed", "job_id", job.ID, "key", key, "err", err)
		}
	}
	return text, nil
}

// lookup treats cache errors and blank entries as misses.
func (e *Executor) lookup(ctx context.Context, jobID, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	text, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warnw("cache read failed", "job_id", jobID, "key", key, "err", err)
		return "", false
	}
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// finish persists a terminal status. It runs detached from ctx so an expired
// attempt deadline cannot lose the outcome.
func (e *Executor) finish(ctx context.Context, jobID string, status JobStatus, result string) error {
	// a terminal job always carries a result
	if strings.TrimSpace(result) == "" && status == StatusFailed {
		result = "job failed"
	}
	pctx, cancel := context.WithTimeout(detached(ctx), 10*time.Second)
	defer cancel()

	var (
		ok  bool
		err error
	)
	if status == StatusCompleted {
		ok, err = e.repo.MarkCompleted(pctx, jobID, result)
	} else {
		ok, err = e.repo.MarkFailed(pctx, jobID, result)
	}
	if err != nil {
		return errors.Wrapf(err, "persist %s", status)
	}
	if !ok {
		e.log.Warnw("job left processing before it could be persisted", "job_id", jobID, "status", status)
	}
	return nil
}

func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
