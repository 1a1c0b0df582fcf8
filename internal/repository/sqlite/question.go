package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/skilltrials/internal/models"
)

const insertQuestion = `INSERT INTO questions (job_id, question_text, question_type, company_id, difficulty, created_by, options, answers, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertQuestionRow(ctx context.Context, ex execer, q *models.Question) (int64, error) {
	options, err := encodeList(q.Options)
	if err != nil {
		return 0, err
	}
	answers, err := encodeList(q.Answers)
	if err != nil {
		return 0, err
	}
	if q.QuestionType == "" {
		q.QuestionType = "mcq"
	}

	res, err := ex.ExecContext(ctx, insertQuestion, q.JobID, q.QuestionText, q.QuestionType, q.CompanyID, q.Difficulty, q.CreatedBy, options, answers, now())
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) CreateQuestion(ctx context.Context, q *models.Question) (int64, error) {
	if q == nil {
		return 0, fmt.Errorf("question is nil")
	}

	return insertQuestionRow(ctx, r.conn.GetConn(), q)
}

// CreateQuestions inserts all questions or none.
func (r *SQLiteRepo) CreateQuestions(ctx context.Context, qs []models.Question) ([]int64, error) {
	ids := make([]int64, 0, len(qs))
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		for i := range qs {
			id, err := insertQuestionRow(ctx, tx, &qs[i])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *SQLiteRepo) ListQuestionsByJob(ctx context.Context, jobID int64) ([]models.Question, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, job_id, question_text, question_type, company_id, difficulty, created_by, options, answers, created FROM questions WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Question{}
	for rows.Next() {
		var (
			q       models.Question
			options string
			answers string
		)
		if err := rows.Scan(&q.ID, &q.JobID, &q.QuestionText, &q.QuestionType, &q.CompanyID, &q.Difficulty, &q.CreatedBy, &options, &answers, &q.Created); err != nil {
			return nil, err
		}
		if q.Options, err = decodeList(options); err != nil {
			return nil, err
		}
		if q.Answers, err = decodeList(answers); err != nil {
			return nil, err
		}
		out = append(out, q)
	}

	return out, rows.Err()
}

// DeleteQuestions removes the questions in ids owned by companyID and
// returns how many were deleted.
func (r *SQLiteRepo) DeleteQuestions(ctx context.Context, companyID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	marks, args := inClause(ids)
	args = append([]any{companyID}, args...)
	res, err := r.conn.Exec(ctx, `DELETE FROM questions WHERE company_id = ? AND id IN (`+marks+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete questions: %w", err)
	}

	return res.RowsAffected()
}
