package db_test

import (
	"context"
	"testing"

	dbfs "github.com/garnizeh/skilltrials/db"
	"github.com/garnizeh/skilltrials/internal/db"
)

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("scan schema_migrations count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 migrations recorded, got %d", count)
	}

	for _, table := range []string{"companies", "candidates", "jobs", "questions", "tests", "answers", "support_tickets", "background_jobs", "dead_letter_jobs", "ai_schemas", "ai_templates"} {
		var name string
		if err := d.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("expected %s table exists: %v", table, err)
		}
	}

	var seeded int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM ai_templates WHERE name = 'questions' AND version = 'v1' AND schema_version = 'v1'`).Scan(&seeded); err != nil {
		t.Fatalf("count templates: %v", err)
	}
	if seeded != 1 {
		t.Fatalf("expected seeded questions template, got %d", seeded)
	}
}
