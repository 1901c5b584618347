package repository

import (
	"context"
	"time"

	"stillpoint/internal/domain/model"
)

type JobRepository interface {
	// Enqueue inserts a new pending job.
	Enqueue(ctx context.Context, tx Tx, job *model.Job) error
	// ClaimNext atomically flips one pending job to processing and returns
	// it. Returns domain.ErrNotFound when the queue is empty. At most one
	// concurrent caller receives a given job.
	ClaimNext(ctx context.Context) (*model.Job, error)
	// MarkCompleted transitions a processing job to completed with its
	// artifact key. The update is conditional on the prior status.
	MarkCompleted(ctx context.Context, id, audioKey string) error
	// MarkFailed transitions a processing job to failed and records the error.
	MarkFailed(ctx context.Context, id, errMsg string) error
	// ReclaimStale flips processing jobs claimed before the cutoff to failed
	// and returns them, so crashed workers' jobs are re-queued.
	ReclaimStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Job, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
}
