package generation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimJob_CompareAndSet(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	job := createJob(t, repo, sampleRef, StatusPending)
	ctx := context.Background()

	ok, err := repo.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	got, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)
}

func TestMarkCompleted_OnlyFromProcessing(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	pending := createJob(t, repo, sampleRef, StatusPending)
	ok, err := repo.MarkCompleted(ctx, pending.ID, "text")
	require.NoError(t, err)
	assert.False(t, ok)

	done := createJob(t, repo, sampleRef, StatusCompleted)
	ok, err = repo.MarkFailed(ctx, done.ID, "late failure")
	require.NoError(t, err)
	assert.False(t, ok, "completed is terminal")

	got, err := repo.GetJobByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestResetFailed(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	job := createJob(t, repo, sampleRef, StatusFailed)

	ok, err := repo.ResetFailed(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.Result)
	assert.Zero(t, got.Attempts)
	requireResultMatchesStatus(t, got)

	ok, err = repo.ResetFailed(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListJobs_NewestFirstWithFilter(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, st := range []JobStatus{StatusFailed, StatusCompleted, StatusFailed} {
		job := &Job{ID: "01J0000000000000000000000" + string(rune('A'+i)), TargetReference: sampleRef,
			Status: st, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if st.Terminal() {
			r := "x"
			job.Result = &r
		}
		require.NoError(t, repo.CreateJob(ctx, job))
	}

	all, err := repo.ListJobs(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "01J0000000000000000000000C", all[0].ID)
	assert.Equal(t, "01J0000000000000000000000A", all[2].ID)

	failed, err := repo.ListJobs(ctx, StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "01J0000000000000000000000C", failed[0].ID)
}

func TestDeleteJob(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()
	job := createJob(t, repo, sampleRef, StatusProcessing)

	require.NoError(t, repo.DeleteJob(ctx, job.ID))
	_, err := repo.GetJobByID(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, repo.DeleteJob(ctx, job.ID), ErrJobNotFound)
}
