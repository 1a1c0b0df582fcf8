package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/skilltrials/internal/models"
	"github.com/garnizeh/skilltrials/pkg/repository"
)

// Account table statements are fixed per role; the table name never comes
// from request data.
type accountQueries struct {
	setResetToken string
	resetPassword string
}

var (
	companyQueries = accountQueries{
		setResetToken: `UPDATE companies SET reset_token = ? WHERE email = ?`,
		resetPassword: `UPDATE companies SET password = ?, reset_token = NULL WHERE email = ? AND reset_token = ?`,
	}
	candidateQueries = accountQueries{
		setResetToken: `UPDATE candidates SET reset_token = ? WHERE email = ?`,
		resetPassword: `UPDATE candidates SET password = ?, reset_token = NULL WHERE email = ? AND reset_token = ?`,
	}
)

func queriesFor(role models.Role) (accountQueries, error) {
	switch role {
	case models.RoleCompany:
		return companyQueries, nil
	case models.RoleCandidate:
		return candidateQueries, nil
	default:
		return accountQueries{}, fmt.Errorf("unknown role %d", int(role))
	}
}

func (r *SQLiteRepo) CreateCompany(ctx context.Context, c *models.Company) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("company is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO companies (name, email, password, website, phone, company_name, created) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.PasswordHash, c.Website, c.Phone, c.CompanyName, now())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrDuplicateEmail
		}
		return 0, fmt.Errorf("insert company: %w", err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) CreateCandidate(ctx context.Context, c *models.Candidate) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("candidate is nil")
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO candidates (name, email, password, phone, skills, experience, location, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.PasswordHash, c.Phone, c.Skills, c.Experience, c.Location, now())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrDuplicateEmail
		}
		return 0, fmt.Errorf("insert candidate: %w", err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) GetCompanyByEmail(ctx context.Context, email string) (*models.Company, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, email, password, website, phone, company_name, created FROM companies WHERE email = ?`, email)
	var c models.Company
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.Website, &c.Phone, &c.CompanyName, &c.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &c, nil
}

func (r *SQLiteRepo) GetCandidateByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, email, password, phone, skills, experience, location, created FROM candidates WHERE email = ?`, email)
	var c models.Candidate
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.Phone, &c.Skills, &c.Experience, &c.Location, &c.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &c, nil
}

func (r *SQLiteRepo) SetResetToken(ctx context.Context, role models.Role, email, token string) (bool, error) {
	q, err := queriesFor(role)
	if err != nil {
		return false, err
	}

	res, err := r.conn.Exec(ctx, q.setResetToken, token, email)
	if err != nil {
		return false, fmt.Errorf("set reset token: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepo) ResetPassword(ctx context.Context, role models.Role, email, token, passwordHash string) (bool, error) {
	q, err := queriesFor(role)
	if err != nil {
		return false, err
	}

	res, err := r.conn.Exec(ctx, q.resetPassword, passwordHash, email, token)
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
