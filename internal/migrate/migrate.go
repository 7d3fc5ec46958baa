// Package migrate runs sonar's versioned schema migrations: numbered SQL
// scripts read from an embed.FS, recorded in a schema_migrations table,
// applied inside a transaction, with an optional per-version data-backfill
// hook. Grounded on desertthunder-ytx's internal/shared/migrations.go,
// generalized from its paired up/down files to spec.md §4.13's simpler
// single forward-only script per version (sonar's migrations are never
// rolled back at runtime) plus a hook callback the source file's design
// left no room for.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Hook runs inside the same transaction as its migration's SQL script,
// after the script executes, for data backfills that plain SQL can't
// express cleanly (spec.md §4.13: "Hooks receive a transaction handle and
// may read/write rows").
type Hook func(ctx context.Context, tx *sql.Tx) error

// Migration is one numbered schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
	Hook    Hook
}

// Load reads all "NNN_name.sql" files from dir within fsys and returns them
// sorted by version. A hooks map keyed by version attaches optional
// backfill hooks; versions absent from hooks get none.
func Load(fsys fs.FS, dir string, hooks map[int]Hook) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %q: %w", dir, err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, name, err := parseFilename(entry.Name())
		if err != nil {
			return nil, err
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %q: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    name,
			SQL:     string(content),
			Hook:    hooks[version],
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func parseFilename(filename string) (version int, name string, err error) {
	base := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("migration filename %q must be NNN_name.sql", filename)
	}
	version, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("migration filename %q has a non-numeric version: %w", filename, err)
	}
	return version, parts[1], nil
}

// Run applies every migration in migrations whose version is not yet
// recorded in schema_migrations, in order, each inside its own transaction.
// A failing migration aborts the whole run (spec.md §4.13: "a failed
// migration aborts startup").
func Run(ctx context.Context, db *sql.DB, migrations []Migration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if err := createSchemaMigrationsTable(ctx, db); err != nil {
		return err
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("migration %03d_%s failed: %w", m.Version, m.Name, err)
		}
		log.Info("applied migration", zap.Int("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}

func createSchemaMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w\n%s", err, stmt)
		}
	}

	if m.Hook != nil {
		if err := m.Hook(ctx, tx); err != nil {
			return fmt.Errorf("backfill hook failed: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements splits a script on ";" after stripping "--" comments,
// skipping empty fragments.
func splitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if idx := strings.Index(line, "--"); idx >= 0 {
				line = line[:idx]
			}
			line = strings.TrimRight(line, " \t\r")
			if line != "" {
				lines = append(lines, line)
			}
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
