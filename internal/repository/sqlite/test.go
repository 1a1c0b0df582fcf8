package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/skilltrials/internal/grading"
	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

const testColumns = `t.id, t.job_post_id, t.candidate_id, t.candidate_email, t.status, t.score, t.start_time, t.end_time, t.created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTest(s scanner, extra ...any) (*models.Test, error) {
	var (
		t           models.Test
		candidateID sql.NullInt64
		score       sql.NullFloat64
		start       sql.NullInt64
		end         sql.NullInt64
	)
	dest := append([]any{&t.ID, &t.JobPostID, &candidateID, &t.CandidateEmail, &t.Status, &score, &start, &end, &t.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	if candidateID.Valid {
		t.CandidateID = &candidateID.Int64
	}
	if score.Valid {
		t.Score = &score.Float64
	}
	if start.Valid {
		t.StartTime = &start.Int64
	}
	if end.Valid {
		t.EndTime = &end.Int64
	}

	return &t, nil
}

// AssignCandidates inserts one CREATED test per email. candidate_id is
// resolved from the candidates table and stays NULL for unknown emails.
func (r *SQLiteRepo) AssignCandidates(ctx context.Context, jobID int64, emails []string) (int64, error) {
	var created int64
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		q := `INSERT INTO tests (job_post_id, candidate_id, candidate_email, status, created_at)
			VALUES (?, (SELECT id FROM candidates WHERE email = ?), ?, 'CREATED', ?)
			ON CONFLICT(job_post_id, candidate_email) DO NOTHING`
		for _, email := range emails {
			email = strings.TrimSpace(email)
			res, err := tx.ExecContext(ctx, q, jobID, email, email, now())
			if err != nil {
				return fmt.Errorf("assign %s: %w", email, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			created += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("candidates assigned", slog.Int64("job_id", jobID), slog.Int64("created", created), slog.Int("requested", len(emails)))

	return created, nil
}

func (r *SQLiteRepo) ResolveCandidate(ctx context.Context, candidateID int64, email string) (int64, error) {
	res, err := r.conn.Exec(ctx, `UPDATE tests SET candidate_id = ? WHERE candidate_email = ? AND candidate_id IS NULL`, candidateID, email)
	if err != nil {
		return 0, fmt.Errorf("resolve candidate: %w", err)
	}

	return res.RowsAffected()
}

func (r *SQLiteRepo) GetTest(ctx context.Context, id int64) (*models.Test, error) {
	t, err := scanTest(r.conn.QueryRow(ctx, `SELECT `+testColumns+` FROM tests t WHERE t.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return t, nil
}

func (r *SQLiteRepo) IsAssigned(ctx context.Context, jobID int64, email string) (bool, error) {
	var n int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM tests WHERE job_post_id = ? AND candidate_email = ?`, jobID, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check assignment: %w", err)
	}

	return n > 0, nil
}

func (r *SQLiteRepo) ListTestsByCandidateEmail(ctx context.Context, email string) ([]models.CandidateTest, error) {
	q := `SELECT ` + testColumns + `, j.title, j.description, c.company_name, c.email
		FROM tests t
		JOIN jobs j ON j.id = t.job_post_id
		JOIN companies c ON c.id = j.company_id
		WHERE t.candidate_email = ?
		ORDER BY t.created_at DESC, t.id DESC`
	rows, err := r.conn.QueryRows(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CandidateTest{}
	for rows.Next() {
		var ct models.CandidateTest
		t, err := scanTest(rows, &ct.JobTitle, &ct.JobDescription, &ct.CompanyName, &ct.CompanyEmail)
		if err != nil {
			return nil, err
		}
		ct.Test = *t
		out = append(out, ct)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) ListTestsByJob(ctx context.Context, jobID int64) ([]models.JobAttempt, error) {
	q := `SELECT ` + testColumns + `,
			COALESCE(c.name, ''), COALESCE(c.phone, ''), COALESCE(c.skills, ''), COALESCE(c.experience, ''), COALESCE(c.location, '')
		FROM tests t
		LEFT JOIN candidates c ON c.id = t.candidate_id
		WHERE t.job_post_id = ?
		ORDER BY t.id`
	rows, err := r.conn.QueryRows(ctx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobAttempt{}
	for rows.Next() {
		var a models.JobAttempt
		t, err := scanTest(rows, &a.CandidateName, &a.CandidatePhone, &a.CandidateSkills, &a.CandidateExperience, &a.CandidateLocation)
		if err != nil {
			return nil, err
		}
		a.Test = *t
		out = append(out, a)
	}

	return out, rows.Err()
}

// DeleteTests removes tests in ids whose job belongs to companyID, together
// with their answers.
func (r *SQLiteRepo) DeleteTests(ctx context.Context, companyID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	marks, idArgs := inClause(ids)
	owned := `id IN (` + marks + `) AND job_post_id IN (SELECT id FROM jobs WHERE company_id = ?)`
	args := append(idArgs, companyID)

	var deleted int64
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE test_id IN (SELECT id FROM tests WHERE `+owned+`)`, args...); err != nil {
			return fmt.Errorf("delete answers: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE `+owned, args...)
		if err != nil {
			return fmt.Errorf("delete tests: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// StartTest moves a CREATED or STARTED test to STARTED and stamps start_time.
func (r *SQLiteRepo) StartTest(ctx context.Context, id int64, candidateEmail string) error {
	return r.transition(ctx, id, candidateEmail,
		`UPDATE tests SET status = 'STARTED', start_time = ? WHERE id = ? AND candidate_email = ? AND status IN ('CREATED', 'STARTED')`)
}

// EndTest moves any test that is not yet SUBMITTED to ENDED and stamps end_time.
func (r *SQLiteRepo) EndTest(ctx context.Context, id int64, candidateEmail string) error {
	return r.transition(ctx, id, candidateEmail,
		`UPDATE tests SET status = 'ENDED', end_time = ? WHERE id = ? AND candidate_email = ? AND status IN ('CREATED', 'STARTED', 'ENDED')`)
}

func (r *SQLiteRepo) transition(ctx context.Context, id int64, candidateEmail, update string) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, update, now(), id, candidateEmail)
		if err != nil {
			return fmt.Errorf("update test %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		var status string
		err = tx.QueryRowContext(ctx, `SELECT status FROM tests WHERE id = ? AND candidate_email = ?`, id, candidateEmail).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}

		return fmt.Errorf("test %d is %s: %w", id, status, repository.ErrInvalidTransition)
	})
}

// SubmitAnswers grades the answers against the test's job questions, stores
// them once per (test, question, candidate) and finalizes the test with the
// mean score. Nothing is written when any step fails.
func (r *SQLiteRepo) SubmitAnswers(ctx context.Context, candidateID, testID int64, answers []models.AnswerSubmission) (*models.SubmissionResult, error) {
	if len(answers) == 0 {
		return nil, repository.ErrEmptySubmission
	}
	result := &models.SubmissionResult{TestID: testID, Graded: map[int64]float64{}}

	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		var jobID int64
		owner := `SELECT t.job_post_id FROM tests t
			WHERE t.id = ? AND (t.candidate_id = ? OR (t.candidate_id IS NULL AND t.candidate_email = (SELECT email FROM candidates WHERE id = ?)))`
		if err := tx.QueryRowContext(ctx, owner, testID, candidateID, candidateID).Scan(&jobID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("test %d: %w", testID, repository.ErrNotFound)
			}
			return fmt.Errorf("load test: %w", err)
		}

		for _, a := range answers {
			var stored string
			err := tx.QueryRowContext(ctx, `SELECT answers FROM questions WHERE id = ? AND job_id = ?`, a.QuestionID, jobID).Scan(&stored)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("question %d: %w", a.QuestionID, repository.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("load question %d: %w", a.QuestionID, err)
			}

			correct, err := decodeList(stored)
			if err != nil {
				return err
			}
			selected, err := encodeList(a.SelectedOptions)
			if err != nil {
				return err
			}

			score := grading.Score(a.SelectedOptions, correct)
			insert := `INSERT INTO answers (candidate_id, question_id, test_id, answer_text, score, created) VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(test_id, question_id, candidate_id) DO NOTHING`
			if _, err := tx.ExecContext(ctx, insert, candidateID, a.QuestionID, testID, selected, score, now()); err != nil {
				return fmt.Errorf("insert answer for question %d: %w", a.QuestionID, err)
			}
		}

		rows, err := tx.QueryContext(ctx, `SELECT question_id, score FROM answers WHERE test_id = ? AND candidate_id = ? ORDER BY id`, testID, candidateID)
		if err != nil {
			return fmt.Errorf("load scores: %w", err)
		}
		var scores []float64
		for rows.Next() {
			var (
				qid   int64
				score float64
			)
			if err := rows.Scan(&qid, &score); err != nil {
				_ = rows.Close()
				return err
			}
			result.Graded[qid] = score
			scores = append(scores, score)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		result.Score = grading.Mean(scores)
		finalize := `UPDATE tests SET status = 'SUBMITTED', score = ?, end_time = ?, candidate_id = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, finalize, result.Score, now(), candidateID, testID); err != nil {
			return fmt.Errorf("finalize test: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *SQLiteRepo) ListAnswers(ctx context.Context, testID, candidateID int64) ([]models.Answer, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, candidate_id, question_id, test_id, answer_text, score, created FROM answers WHERE test_id = ? AND candidate_id = ? ORDER BY id`, testID, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Answer{}
	for rows.Next() {
		var (
			a    models.Answer
			text string
		)
		if err := rows.Scan(&a.ID, &a.CandidateID, &a.QuestionID, &a.TestID, &text, &a.Score, &a.Created); err != nil {
			return nil, err
		}
		if a.AnswerText, err = decodeList(text); err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, rows.Err()
}
