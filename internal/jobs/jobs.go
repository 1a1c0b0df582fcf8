package jobs

import (
	"context"
	"time"

	"github.com/garnizeh/skilltrials/internal/models"
)

// Job types handled by the worker pool.
const (
	TypePasswordResetMail = "mail.password_reset"
)

// Handler processes one claimed job. A returned error counts as a failed attempt.
type Handler func(ctx context.Context, j *models.BackgroundJob) error

// Queue is the persistence the pool needs.
type Queue interface {
	EnqueueJob(ctx context.Context, j *models.BackgroundJob) (int64, error)
	ClaimNextJob(ctx context.Context) (*models.BackgroundJob, error)
	UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
}

// BackoffDuration returns exponential backoff duration for attempt n
func BackoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return time.Second
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	max := 5 * time.Minute
	if d > max {
		return max
	}
	return d
}
