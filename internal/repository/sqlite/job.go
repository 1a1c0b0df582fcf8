package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

func (r *SQLiteRepo) CreateJob(ctx context.Context, j *models.Job) (int64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO jobs (title, description, company_id, created_at) VALUES (?, ?, ?, ?)`, j.Title, j.Description, j.CompanyID, now())
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, title, description, company_id, created_at FROM jobs WHERE id = ?`, id)
	var j models.Job
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &j.CompanyID, &j.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &j, nil
}

// UpdateJob rewrites title and description of a job owned by j.CompanyID.
func (r *SQLiteRepo) UpdateJob(ctx context.Context, j *models.Job) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}

	res, err := r.conn.Exec(ctx, `UPDATE jobs SET title = ?, description = ? WHERE id = ? AND company_id = ?`, j.Title, j.Description, j.ID, j.CompanyID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *SQLiteRepo) ListJobsByCompany(ctx context.Context, companyID int64) ([]models.Job, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, title, description, company_id, created_at FROM jobs WHERE company_id = ? ORDER BY created_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Job{}
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Description, &j.CompanyID, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}

	return out, rows.Err()
}

// DeleteJob removes the job and then its questions. questions.job_id is a
// deferred foreign key, so the order only matters at commit.
func (r *SQLiteRepo) DeleteJob(ctx context.Context, companyID, id int64) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND company_id = ?`, id, companyID)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return repository.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE job_id = ?`, id); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}

		return nil
	})
}
