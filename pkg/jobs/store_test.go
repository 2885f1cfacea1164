package jobs

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dmphub/dmphub/pkg/matching"
)

func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := NewJobStore(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func sampleWorks() []matching.CandidateWork {
	return []matching.CandidateWork{{
		DOI:   "10.1234/found-dataset",
		Title: "Arctic Ice Core Data",
	}}
}

func TestJobStore_EnqueueAndGet(t *testing.T) {
	s := newTestStore(t)

	job, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobStateQueued, job.State)

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "10.48321/D1AAA", got.Identifier)

	works, err := got.Works()
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, "10.1234/found-dataset", works[0].DOI)
}

func TestJobStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJobStore_IdempotentEnqueue(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Enqueue("10.48321/D1AAA", "datacite", "harvest-2024-05", sampleWorks())
	require.NoError(t, err)

	second, err := s.Enqueue("10.48321/D1AAA", "datacite", "harvest-2024-05", sampleWorks())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Once the job is terminal, the same key enqueues a fresh job.
	require.NoError(t, s.Complete(first.ID, 1, 10))
	third, err := s.Enqueue("10.48321/D1AAA", "datacite", "harvest-2024-05", sampleWorks())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestJobStore_ClaimTransitionsToRunning(t *testing.T) {
	s := newTestStore(t)

	job, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)

	claimed, err := s.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, JobStateRunning, claimed.State)
	assert.Equal(t, 1, claimed.AttemptCount)
	require.NotNil(t, claimed.StartedAt)

	// Nothing else to claim.
	next, err := s.Claim(3)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestJobStore_ClaimSerializesPerIdentifier(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)
	_, err = s.Enqueue("10.48321/D1AAA", "crossref", "", sampleWorks())
	require.NoError(t, err)
	other, err := s.Enqueue("10.48321/D1BBB", "datacite", "", sampleWorks())
	require.NoError(t, err)

	first, err := s.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "10.48321/D1AAA", first.Identifier)

	// The second job for the same record is skipped while one is running;
	// the other record's job is claimable.
	second, err := s.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, other.ID, second.ID)

	third, err := s.Claim(3)
	require.NoError(t, err)
	assert.Nil(t, third)

	// Completing the running job unblocks the skipped one.
	require.NoError(t, s.Complete(first.ID, 0, 5))
	fourth, err := s.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, fourth)
	assert.Equal(t, "10.48321/D1AAA", fourth.Identifier)
	assert.Equal(t, "crossref", fourth.Harvester)
}

func TestJobStore_FailRequeuesWithinRetries(t *testing.T) {
	s := newTestStore(t)

	job, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)

	claimed, err := s.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, s.Fail(claimed.ID, "store hiccup", 3))
	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, got.State)
	assert.Equal(t, "store hiccup", got.LastError)

	// Exhaust the budget.
	for i := 0; i < 2; i++ {
		claimed, err = s.Claim(3)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.NoError(t, s.Fail(claimed.ID, "still failing", 3))
	}
	got, err = s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, got.State)
	assert.Contains(t, got.Message, "Max retries exceeded")
}

func TestJobStore_CancelOnlyQueued(t *testing.T) {
	s := newTestStore(t)

	job, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)
	require.NoError(t, s.Cancel(job.ID))

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateCanceled, got.State)

	// A running job cannot be canceled.
	running, err := s.Enqueue("10.48321/D1BBB", "datacite", "", sampleWorks())
	require.NoError(t, err)
	_, err = s.Claim(3)
	require.NoError(t, err)
	err = s.Cancel(running.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only queued jobs")

	err = s.Cancel("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestJobStore_ListFilters(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)
	_, err = s.Enqueue("10.48321/D1BBB", "crossref", "", sampleWorks())
	require.NoError(t, err)

	all, _, total, err := s.List(JobListFilter{}, 10, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, total)

	byHarvester, _, _, err := s.List(JobListFilter{Harvester: "crossref"}, 10, "")
	require.NoError(t, err)
	require.Len(t, byHarvester, 1)
	assert.Equal(t, "10.48321/D1BBB", byHarvester[0].Identifier)

	byState, _, _, err := s.List(JobListFilter{State: string(JobStateQueued)}, 10, "")
	require.NoError(t, err)
	assert.Len(t, byState, 2)
}

func TestJobStore_CleanupStuckJobs(t *testing.T) {
	s := newTestStore(t)

	job, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)
	_, err = s.Claim(3)
	require.NoError(t, err)

	// Backdate the claim far past the timeout.
	old := time.Now().Add(-1 * time.Hour)
	require.NoError(t, s.db.Model(&AugmentJob{}).Where("id = ?", job.ID).
		Update("started_at", old).Error)

	recovered, err := s.CleanupStuckJobs(10 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, got.State)
}

func TestJobStore_DeleteOlderThan(t *testing.T) {
	s := newTestStore(t)

	job, err := s.Enqueue("10.48321/D1AAA", "datacite", "", sampleWorks())
	require.NoError(t, err)
	require.NoError(t, s.Complete(job.ID, 2, 30))

	deleted, err := s.DeleteOlderThan(time.Now().Add(1 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
