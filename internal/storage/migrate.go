package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
)

// Dialect names a supported SQL backend
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

//go:embed migrations
var embeddedMigrations embed.FS

// Migrations returns the migration files for a dialect. A non-empty dir
// overrides the embedded set.
func Migrations(dialect Dialect, dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	switch dialect {
	case DialectPostgres, DialectSQLite:
		return fs.Sub(embeddedMigrations, "migrations/"+string(dialect))
	}
	return nil, fmt.Errorf("unsupported dialect %q", dialect)
}

func (d Dialect) flavor() sqlbuilder.Flavor {
	if d == DialectSQLite {
		return sqlbuilder.SQLite
	}
	return sqlbuilder.PostgreSQL
}

// RunMigrations executes all .sql migrations not yet recorded in schema_migrations
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect, migrations fs.FS) error {
	// Ensure migrations table exists
	if err := createMigrationsTable(ctx, db, dialect); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get applied migrations
	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	// Filter and sort .sql files
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			slog.Debug("migration already applied", "migration", name)
			continue
		}

		slog.Info("applying migration", "migration", name, "dialect", dialect)

		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		if err := applyMigration(ctx, db, dialect, name, string(content)); err != nil {
			return err
		}

		slog.Info("migration applied successfully", "migration", name)
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, dialect Dialect, name, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, content); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}

	ib := dialect.flavor().NewInsertBuilder()
	ib.InsertInto("schema_migrations").Cols("name").Values(name)
	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", name, err)
	}
	return nil
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist
func createMigrationsTable(ctx context.Context, db *sql.DB, dialect Dialect) error {
	appliedAt := "TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()"
	if dialect == DialectSQLite {
		appliedAt = "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
	}
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at `+appliedAt+`
		)
	`)
	return err
}

// getAppliedMigrations returns a set of applied migration names
func getAppliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}

	return applied, rows.Err()
}

// MigrateFromDSN opens a PostgreSQL connection through lib/pq and runs its migrations
func MigrateFromDSN(ctx context.Context, dsn, migrationsDir string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	migrations, err := Migrations(DialectPostgres, migrationsDir)
	if err != nil {
		return err
	}
	return RunMigrations(ctx, db, DialectPostgres, migrations)
}

// Migrate runs the SQLite migrations on the repository's own connection
func (r *SQLiteRepository) Migrate(ctx context.Context, migrationsDir string) error {
	migrations, err := Migrations(DialectSQLite, migrationsDir)
	if err != nil {
		return err
	}
	return RunMigrations(ctx, r.db, DialectSQLite, migrations)
}
