package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/skilltrials/internal/models"
)

// CreateTemplate inserts a prompt template or replaces the stored (name, version).
func (r *SQLiteRepo) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error) {
	ts := now()
	q := `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET template_text = excluded.template_text, schema_version = excluded.schema_version, metadata = excluded.metadata, updated = excluded.updated
		RETURNING id`
	var id int64
	if err := r.conn.QueryRow(ctx, q, name, version, templateText, schemaVersion, metadata, ts, ts).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert template %s/%s: %w", name, version, err)
	}

	return id, nil
}

func (r *SQLiteRepo) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, version, template_text, schema_version, metadata, created, updated FROM ai_templates WHERE name = ? AND version = ?`, name, version)
	var t models.Template
	if err := row.Scan(&t.ID, &t.Name, &t.Version, &t.TemplateTxt, &t.SchemaVer, &t.Metadata, &t.Created, &t.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &t, nil
}

func (r *SQLiteRepo) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, name, version, template_text, schema_version, metadata, created, updated FROM ai_templates ORDER BY name, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Template{}
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Version, &t.TemplateTxt, &t.SchemaVer, &t.Metadata, &t.Created, &t.Updated); err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteTemplate(ctx context.Context, name, version string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM ai_templates WHERE name = ? AND version = ?`, name, version)
	return err
}
