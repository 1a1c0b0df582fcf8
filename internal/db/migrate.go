package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// Migrate applies migrations and seed files. It creates a `schema_migrations`
// table to track applied migrations and applies any SQL files under
// `migrations/` that have not been recorded yet. Seeds are upserts and are
// safe to apply on every start.
func Migrate(ctx context.Context, d *DB, migrationFS embed.FS, seedFS embed.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("migration applied", "version", version)
	}

	// seeds are optional; a missing file is skipped
	ts := time.Now().UTC().UnixMilli()
	if b, err := fs.ReadFile(seedFS, path.Join("seed", "schema_questions_v1.json")); err == nil {
		if _, err := d.Exec(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated) VALUES ('v1', 'generated questions v1', ?, ?, ?) ON CONFLICT(version) DO NOTHING`, string(b), ts, ts); err != nil {
			return fmt.Errorf("seed schema exec: %w", err)
		}
	}

	if b, err := fs.ReadFile(seedFS, path.Join("seed", "template_questions_v1.txt")); err == nil {
		if _, err := d.Exec(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES ('questions', 'v1', ?, 'v1', ?, ?, ?) ON CONFLICT(name, version) DO NOTHING`, string(b), `{"owner":"system","description":"default question generation template"}`, ts, ts); err != nil {
			return fmt.Errorf("seed template exec: %w", err)
		}
	}

	return nil
}
