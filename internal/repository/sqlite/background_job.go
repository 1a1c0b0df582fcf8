package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garnizeh/skilltrials/internal/models"
)

// Queue timestamps are unix seconds, matching the column defaults.

const backgroundJobColumns = `id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

// EnqueueJob inserts a queued job and returns its id.
func (r *SQLiteRepo) EnqueueJob(ctx context.Context, j *models.BackgroundJob) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("background job is nil")
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = 1
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}

	ts := time.Now().UTC().Unix()
	q := `INSERT INTO background_jobs (type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES (?, ?, 'queued', ?, ?, ?, ?, ?, ?)`
	res, err := r.conn.Exec(ctx, q, j.Type, string(j.Payload), j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().Unix(), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	j.ID = id
	j.Status = "queued"

	return id, nil
}

// ClaimNextJob flips the next runnable job to running in a single statement,
// so two workers never receive the same job.
func (r *SQLiteRepo) ClaimNextJob(ctx context.Context) (*models.BackgroundJob, error) {
	ts := time.Now().UTC().Unix()
	q := `UPDATE background_jobs SET status = 'running', updated = ?
		WHERE id = (
			SELECT id FROM background_jobs
			WHERE status IN ('queued', 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ?
			ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1
		)
		RETURNING ` + backgroundJobColumns

	j, err := scanBackgroundJob(r.conn.QueryRow(ctx, q, ts, ts, ts))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("claim next job: %w", err)
	}

	return j, nil
}

func scanBackgroundJob(row *sql.Row) (*models.BackgroundJob, error) {
	var (
		j           models.BackgroundJob
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		return nil, err
	}

	j.ScheduledAt = time.Unix(scheduledAt, 0)
	j.Created = time.Unix(created, 0)
	j.Updated = time.Unix(updated, 0)
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := time.Unix(nextTry.Int64, 0)
		j.NextTryAt = &t
	}
	if lastError.Valid {
		j.LastError = lastError.String
	}

	return &j, nil
}

// UpdateBackgroundJob persists status, attempts, next_try_at and last_error.
func (r *SQLiteRepo) UpdateBackgroundJob(ctx context.Context, j *models.BackgroundJob) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = j.NextTryAt.UTC().Unix()
	}

	q := `UPDATE background_jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.conn.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, time.Now().UTC().Unix(), j.ID)

	return err
}

// MoveToDeadLetter copies the job to dead_letter_jobs and deletes the original.
func (r *SQLiteRepo) MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		insert := `INSERT INTO dead_letter_jobs (job_id, type, payload, attempts, last_error, failed_at) VALUES (?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, time.Now().UTC().Unix()); err != nil {
			return fmt.Errorf("insert dead letter: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM background_jobs WHERE id = ?`, j.ID); err != nil {
			return fmt.Errorf("delete job: %w", err)
		}

		return nil
	})
}

// CountJobs counts jobs of typ in status. status "dead" counts dead letters;
// an empty typ matches every type.
func (r *SQLiteRepo) CountJobs(ctx context.Context, typ, status string) (int64, error) {
	var (
		n   int64
		row *sql.Row
	)
	switch {
	case status == "dead":
		row = r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_jobs WHERE (? = '' OR type = ?)`, typ, typ)
	default:
		row = r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM background_jobs WHERE (? = '' OR type = ?) AND (? = '' OR status = ?)`, typ, typ, status, status)
	}
	if err := row.Scan(&n); err != nil {
		return 0, err
	}

	return n, nil
}
