package sqlite

import (
	"context"
	"fmt"

	"github.com/garnizeh/skilltrials/internal/models"
)

func (r *SQLiteRepo) CreateTicket(ctx context.Context, t *models.SupportTicket) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("ticket is nil")
	}
	if t.Status == "" {
		t.Status = "open"
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO support_tickets (user_id, subject, description, status, user_type, created) VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Subject, t.Description, t.Status, int(t.UserType), now())
	if err != nil {
		return 0, fmt.Errorf("insert ticket: %w", err)
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) ListTickets(ctx context.Context, userID int64, userType models.Role) ([]models.SupportTicket, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, user_id, subject, description, status, user_type, created FROM support_tickets WHERE user_id = ? AND user_type = ? ORDER BY created DESC, id DESC`, userID, int(userType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SupportTicket{}
	for rows.Next() {
		var t models.SupportTicket
		if err := rows.Scan(&t.ID, &t.UserID, &t.Subject, &t.Description, &t.Status, &t.UserType, &t.Created); err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}
