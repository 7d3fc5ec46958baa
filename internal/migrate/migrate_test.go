package migrate

import (
	"context"
	"database/sql"
	"embed"
	"testing"

	_ "modernc.org/sqlite"
)

//go:embed testdata/*.sql
var testMigrations embed.FS

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesInOrderAndIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	migrations, err := Load(testMigrations, "testdata", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}

	if err := Run(context.Background(), db, migrations, nil); err != nil {
		t.Fatalf("Run #1: %v", err)
	}
	// Running again must be a no-op, not a duplicate-column error.
	if err := Run(context.Background(), db, migrations, nil); err != nil {
		t.Fatalf("Run #2: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count); err != nil {
		t.Fatalf("querying migrated table: %v", err)
	}
}

func TestRunInvokesHook(t *testing.T) {
	db := openTestDB(t)
	migrations, err := Load(testMigrations, "testdata", map[int]Hook{
		1: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO widgets (name) VALUES ('seeded')`)
			return err
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := Run(context.Background(), db, migrations, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var name string
	if err := db.QueryRow(`SELECT name FROM widgets WHERE name = 'seeded'`).Scan(&name); err != nil {
		t.Fatalf("expected hook-inserted row: %v", err)
	}
}
