package generation

import (
	"context"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(&Job{})
}

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

// ListJobs returns jobs newest first. An empty status lists every job.
func (r *Repo) ListJobs(ctx context.Context, status JobStatus) ([]Job, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var jobs []Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// transition moves id from one status to another only if it is still in the
// expected status. It reports whether a row changed.
func (r *Repo) transition(ctx context.Context, id string, from JobStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimJob is the compare-and-set pending -> processing. Only one caller can
// win for a given pending job.
func (r *Repo) ClaimJob(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, StatusPending, map[string]any{
		"status":   StatusProcessing,
		"attempts": gorm.Expr("attempts + 1"),
	})
}

// ReleaseClaim hands a processing job back to pending between attempts.
func (r *Repo) ReleaseClaim(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, StatusProcessing, map[string]any{
		"status": StatusPending,
	})
}

func (r *Repo) MarkCompleted(ctx context.Context, id, text string) (bool, error) {
	return r.transition(ctx, id, StatusProcessing, map[string]any{
		"status": StatusCompleted,
		"result": text,
	})
}

func (r *Repo) MarkFailed(ctx context.Context, id, msg string) (bool, error) {
	return r.transition(ctx, id, StatusProcessing, map[string]any{
		"status": StatusFailed,
		"result": msg,
	})
}

// FailPending fails a job that never got claimed, e.g. when dispatch failed.
func (r *Repo) FailPending(ctx context.Context, id, msg string) (bool, error) {
	return r.transition(ctx, id, StatusPending, map[string]any{
		"status": StatusFailed,
		"result": msg,
	})
}

// ResetFailed is the retry transition failed -> pending; the result is cleared.
func (r *Repo) ResetFailed(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, StatusFailed, map[string]any{
		"status":   StatusPending,
		"result":   nil,
		"attempts": 0,
	})
}

func (r *Repo) DeleteJob(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&Job{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}
