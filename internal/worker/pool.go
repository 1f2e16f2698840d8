// Package worker runs generation jobs on a fixed number of goroutines.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrQueueFull  = errors.New("worker queue full")
)

type Executor interface {
	Execute(ctx context.Context, jobID string) error
}

// Task is one job to run. Done, when set, receives the executor's result.
type Task struct {
	JobID string
	Done  func(error)
}

type Pool struct {
	exec        Executor
	concurrency int
	log         *zap.SugaredLogger

	tasks  chan Task
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewPool(exec Executor, concurrency int, log *zap.SugaredLogger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pool{
		exec:        exec,
		concurrency: concurrency,
		log:         log,
		tasks:       make(chan Task, concurrency*2),
	}
}

// Start launches the workers. They run until Stop, each task under ctx.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		go func(workerID int) {
			defer p.wg.Done()
			for t := range p.tasks {
				p.run(ctx, workerID, t)
			}
		}(i)
	}
	p.log.Infow("worker pool started", "concurrency", p.concurrency)
}

func (p *Pool) run(ctx context.Context, workerID int, t Task) {
	start := time.Now()
	err := p.exec.Execute(ctx, t.JobID)
	if err != nil {
		p.log.Warnw("job execution error", "worker", workerID, "job_id", t.JobID, "cost", time.Since(start), "err", err)
	} else if cost := time.Since(start); cost > 2*time.Second {
		p.log.Infow("job_timing", "worker", workerID, "job_id", t.JobID, "cost", cost)
	}
	if t.Done != nil {
		t.Done(err)
	}
}

// Submit queues t, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch lets the pool stand in for a message broker in single-process mode.
// It never waits: a full queue is reported as ErrQueueFull.
func (p *Pool) Dispatch(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- Task{JobID: jobID}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
