package generation

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/suPer8Hu/readmegen/internal/common"
	"github.com/suPer8Hu/readmegen/internal/render"
	"github.com/suPer8Hu/readmegen/internal/source"
)

// Dispatcher hands a job id to whatever runs the Executor.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

type Service struct {
	repo       *Repo
	dispatcher Dispatcher
	health     HealthChecker
	log        *zap.SugaredLogger
}

func NewService(repo *Repo, dispatcher Dispatcher, health HealthChecker, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{repo: repo, dispatcher: dispatcher, health: health, log: log}
}

// Submit records a pending job for reference and dispatches it. If dispatch
// fails the job is marked failed so it can be retried later.
func (s *Service) Submit(ctx context.Context, reference string) (*Job, error) {
	reference = strings.TrimSpace(reference)
	if err := source.ValidateReference(reference); err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &Job{ID: id, TargetReference: reference, Status: StatusPending}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, errors.Wrap(err, "create job")
	}

	if err := s.dispatch(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) dispatch(ctx context.Context, job *Job) error {
	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		s.log.Errorw("dispatch failed", "job_id", job.ID, "err", err)
		msg := "dispatch failed: " + err.Error()
		if _, ferr := s.repo.FailPending(context.WithoutCancel(ctx), job.ID, msg); ferr != nil {
			return errors.CombineErrors(errors.Wrap(err, "dispatch job"), ferr)
		}
		return errors.Wrap(err, "dispatch job")
	}
	return nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.GetJobByID(ctx, id)
}

// ListJobs lists jobs newest first, optionally filtered by status.
func (s *Service) ListJobs(ctx context.Context, status string) ([]Job, error) {
	st := JobStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, errors.Wrapf(ErrInvalidRequest, "unknown status %q", status)
	}
	return s.repo.ListJobs(ctx, st)
}

// RetryJob resets a failed job to pending and dispatches it again. Jobs in any
// other status are left untouched.
func (s *Service) RetryJob(ctx context.Context, id string) (*Job, error) {
	ok, err := s.repo.ResetFailed(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		job, err := s.repo.GetJobByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, errors.Wrapf(ErrJobNotRetryable, "job %s is %s", id, job.Status)
	}

	job, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) DeleteJob(ctx context.Context, id string) error {
	return s.repo.DeleteJob(ctx, id)
}

// ResultText returns the generated document of a completed job.
func (s *Service) ResultText(ctx context.Context, id string) (string, error) {
	job, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != StatusCompleted || job.Result == nil {
		return "", errors.Wrapf(ErrResultNotReady, "job %s is %s", id, job.Status)
	}
	return *job.Result, nil
}

func (s *Service) ResultHTML(ctx context.Context, id string) (string, error) {
	text, err := s.ResultText(ctx, id)
	if err != nil {
		return "", err
	}
	return render.HTML(text)
}

func (s *Service) BackendHealth(ctx context.Context) error {
	if s.health == nil {
		return errors.New("no generation backend configured")
	}
	return s.health.Health(ctx)
}
