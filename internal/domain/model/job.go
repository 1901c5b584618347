package model

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one reflection-generation request: a set of journal entries to be
// turned into a short narrated audio piece.
type Job struct {
	ID          string
	UserID      string
	EntryIDs    []string
	DurationSec int
	Voice       string
	Status      JobStatus
	Attempts    int
	ClaimedAt   *time.Time
	AudioKey    *string
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RetryJob clones a failed job into a fresh pending row. Retries are new
// rows, never in-place status flips, so the failed row stays queryable.
func (j *Job) RetryJob() *Job {
	return &Job{
		UserID:      j.UserID,
		EntryIDs:    append([]string(nil), j.EntryIDs...),
		DurationSec: j.DurationSec,
		Voice:       j.Voice,
		Status:      JobStatusPending,
		Attempts:    j.Attempts + 1,
	}
}
