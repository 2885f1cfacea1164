// Package jobs provides the persisted augment-job queue and the worker pool
// that drains it. Harvested candidate works are enqueued per record
// identifier and matched against the record asynchronously, at-least-once.
package jobs

import (
	"time"
)

// JobState represents the lifecycle state of an augment job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// AugmentJob is the GORM model for a queued augmentation run. Payload holds
// the harvested candidate works as JSON.
type AugmentJob struct {
	ID             string     `json:"id" gorm:"primaryKey;column:id;type:varchar(36)"`
	Identifier     string     `json:"identifier" gorm:"column:identifier;index:idx_aug_id_state,priority:1;not null"`
	Harvester      string     `json:"harvester" gorm:"column:harvester;not null"`
	Payload        string     `json:"-" gorm:"column:payload;not null"`
	RequestedAt    time.Time  `json:"requestedAt" gorm:"column:requested_at;not null"`
	State          JobState   `json:"state" gorm:"column:state;index:idx_aug_id_state,priority:2;index:idx_aug_state;not null;default:queued"`
	Message        string     `json:"message,omitempty" gorm:"column:message"`
	StartedAt      *time.Time `json:"startedAt,omitempty" gorm:"column:started_at"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty" gorm:"column:finished_at"`
	AttemptCount   int        `json:"attemptCount" gorm:"column:attempt_count;default:0"`
	LastError      string     `json:"lastError,omitempty" gorm:"column:last_error"`
	IdempotencyKey string     `json:"-" gorm:"column:idempotency_key;uniqueIndex:idx_aug_idemp_key"`
	EntriesAdded   int        `json:"entriesAdded" gorm:"column:entries_added"`
	DurationMs     int64      `json:"durationMs" gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (AugmentJob) TableName() string { return "augment_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *AugmentJob) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}
