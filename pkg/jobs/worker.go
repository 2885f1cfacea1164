package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmphub/dmphub/pkg/matching"
)

// AugmentFunc applies a batch of candidate works to one record and returns
// the number of modification entries added. It is satisfied by wiring the
// registry service's ledger apply to the augmenter; the indirection keeps
// this package free of a registry import.
type AugmentFunc func(ctx context.Context, identifier string, works []matching.CandidateWork) (int, error)

// WorkerPool processes queued augment jobs using a pool of goroutines.
type WorkerPool struct {
	store   *JobStore
	augment AugmentFunc
	cfg     *JobConfig
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(store *JobStore, augment AugmentFunc, cfg *JobConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:   store,
		augment: augment,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run starts the worker pool. It spawns cfg.Concurrency goroutines, each
// polling for jobs. It blocks until the context is cancelled, then waits
// for all workers to finish.
func (wp *WorkerPool) Run(ctx context.Context) {
	if wp.store == nil || !wp.cfg.Enabled {
		wp.logger.Info("augment worker pool disabled")
		return
	}

	wp.logger.Info("augment worker pool starting",
		"concurrency", wp.cfg.Concurrency,
		"maxRetries", wp.cfg.MaxRetries,
		"pollInterval", wp.cfg.PollInterval.String())

	// Start stuck job cleanup goroutine.
	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.cleanupLoop(ctx)
	}()

	// Start worker goroutines.
	for i := 0; i < wp.cfg.Concurrency; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			wp.workerLoop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	wp.logger.Info("augment worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("augment worker pool stopped")
}

// workerLoop is the main loop for a single worker goroutine.
func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	wp.logger.Info("worker started", "workerID", workerID)

	for {
		select {
		case <-ctx.Done():
			wp.logger.Info("worker stopped", "workerID", workerID)
			return
		case <-ticker.C:
			wp.ProcessOne(ctx, workerID)
		}
	}
}

// ProcessOne tries to claim and process a single job. Returns true when a
// job was claimed.
func (wp *WorkerPool) ProcessOne(ctx context.Context, workerID int) bool {
	job, err := wp.store.Claim(wp.cfg.MaxRetries)
	if err != nil {
		wp.logger.Error("failed to claim job", "workerID", workerID, "error", err)
		return false
	}
	if job == nil {
		return false // No jobs available.
	}

	wp.logger.Info("processing job",
		"workerID", workerID,
		"jobID", job.ID,
		"identifier", job.Identifier,
		"harvester", job.Harvester,
		"attempt", job.AttemptCount)

	works, err := job.Works()
	if err != nil {
		// A payload that never decodes will never succeed; fail it past
		// the retry budget.
		wp.logger.Error("job payload is malformed", "jobID", job.ID, "error", err)
		if failErr := wp.store.Fail(job.ID, err.Error(), 0); failErr != nil {
			wp.logger.Error("failed to mark job as failed", "jobID", job.ID, "error", failErr)
		}
		return true
	}

	start := time.Now()
	added, err := wp.augment(ctx, job.Identifier, works)
	if err != nil {
		wp.logger.Error("job failed",
			"workerID", workerID,
			"jobID", job.ID,
			"identifier", job.Identifier,
			"error", err)
		if failErr := wp.store.Fail(job.ID, err.Error(), wp.cfg.MaxRetries); failErr != nil {
			wp.logger.Error("failed to mark job as failed", "jobID", job.ID, "error", failErr)
		}
		return true
	}

	duration := time.Since(start)
	wp.logger.Info("job completed",
		"workerID", workerID,
		"jobID", job.ID,
		"identifier", job.Identifier,
		"entriesAdded", added,
		"duration", duration.String())

	if err := wp.store.Complete(job.ID, added, duration.Milliseconds()); err != nil {
		wp.logger.Error("failed to mark job as complete", "jobID", job.ID, "error", err)
	}
	return true
}

// cleanupLoop periodically recovers stuck jobs and deletes old terminal jobs.
func (wp *WorkerPool) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if wp.cfg.ClaimTimeout > 0 {
				recovered, err := wp.store.CleanupStuckJobs(wp.cfg.ClaimTimeout)
				if err != nil {
					wp.logger.Error("failed to cleanup stuck jobs", "error", err)
				} else if recovered > 0 {
					wp.logger.Info("recovered stuck jobs", "count", recovered)
				}
			}

			if wp.cfg.RetentionDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -wp.cfg.RetentionDays)
				deleted, err := wp.store.DeleteOlderThan(cutoff)
				if err != nil {
					wp.logger.Error("failed to delete old jobs", "error", err)
				} else if deleted > 0 {
					wp.logger.Info("deleted old jobs", "count", deleted)
				}
			}
		}
	}
}
