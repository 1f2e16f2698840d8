package generation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/suPer8Hu/readmegen/internal/analysis"
	"github.com/suPer8Hu/readmegen/internal/backoff"
	"github.com/suPer8Hu/readmegen/internal/common"
	"github.com/suPer8Hu/readmegen/internal/fingerprint"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, db.AutoMigrate(&Job{}), "automigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createJob(t *testing.T, repo *Repo, ref string, status JobStatus) *Job {
	t.Helper()
	id, err := common.NewULID()
	require.NoError(t, err)
	job := &Job{ID: id, TargetReference: ref, Status: status}
	if status.Terminal() {
		result := "previous outcome"
		job.Result = &result
	}
	require.NoError(t, repo.CreateJob(context.Background(), job))
	return job
}

// requireResultMatchesStatus checks that a result is present exactly when the
// job is terminal.
func requireResultMatchesStatus(t *testing.T, job *Job) {
	t.Helper()
	hasResult := job.Result != nil && *job.Result != ""
	require.Equal(t, job.Status.Terminal(), hasResult, "status=%s result=%v", job.Status, job.Result)
}

type fakeFetcher struct {
	mu       sync.Mutex
	failures int
	err      error
	files    map[string]string
	calls    int
	dirs     []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, reference, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.dirs = append(f.dirs, dir)
	if f.calls <= f.failures {
		return f.err
	}
	for name, content := range f.files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeAnalyzer struct {
	err error
}

func (a fakeAnalyzer) Analyze(ctx context.Context, root string) (*analysis.Summary, error) {
	return nil, a.err
}

type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	panics  bool
	calls   int
	prompts []string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.panics {
		panic("backend exploded")
	}
	return g.out, g.err
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, bool, error) {
	return "", false, context.DeadlineExceeded
}

func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return context.DeadlineExceeded
}

var goRepoFiles = map[string]string{
	"main.go":   "package main\n\nfunc main() {}\n",
	"go.mod":    "module example.com/sample\n\ngo 1.22\n",
	"README.md": "# sample\n",
}

type testEnv struct {
	repo      *Repo
	fetcher   *fakeFetcher
	generator *fakeGenerator
	cache     fingerprint.Cache
	exec      *Executor
	workBase  string
	delays    []time.Duration
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      NewRepo(openTestDB(t)),
		fetcher:   &fakeFetcher{files: goRepoFiles},
		generator: &fakeGenerator{out: "# sample\n\nGenerated.\n"},
		cache:     fingerprint.NewMemoryCache(),
		workBase:  t.TempDir(),
	}
	env.rebuild()
	return env
}

// rebuild recreates the executor after a test swaps a collaborator.
func (env *testEnv) rebuild() {
	env.rebuildWith(analysis.NewAnalyzer(3))
}

func (env *testEnv) rebuildWith(a Analyzer) {
	env.exec = NewExecutor(env.repo, env.fetcher, a, env.generator, env.cache, ExecutorConfig{
		MaxRetries:     5,
		Backoff:        backoff.NewExponential(time.Second, time.Minute),
		AttemptTimeout: time.Minute,
		WorkspaceDir:   env.workBase,
		CacheTTL:       time.Hour,
	}, nil)
	env.exec.sleep = func(ctx context.Context, d time.Duration) error {
		env.delays = append(env.delays, d)
		return ctx.Err()
	}
}

func (env *testEnv) reload(t *testing.T, id string) *Job {
	t.Helper()
	job, err := env.repo.GetJobByID(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (env *testEnv) requireNoWorkspaces(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(env.workBase)
	require.NoError(t, err)
	require.Empty(t, entries, "workspaces left behind")
}

type fakeDispatcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, jobID)
	return nil
}
