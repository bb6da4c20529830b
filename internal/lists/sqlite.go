package lists

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSequence is a Sequence persisted in a SQLite database.
type SQLiteSequence struct {
	db *sql.DB
}

// OpenSQLiteSequence opens or creates the sequence database at path and
// applies pending migrations.
func OpenSQLiteSequence(path string) (*SQLiteSequence, error) {
	// Enable WAL mode so concurrent runners do not block each other for long
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sequence database: %w", err)
	}

	// A single writer keeps read-modify-write updates serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sequence database: %w", err)
	}

	s := &SQLiteSequence{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSequence) Current(ctx context.Context, list string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT post_id FROM post_sequences WHERE list_name = ?", list,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSequence
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read post id: %w", err)
	}
	return n, nil
}

func (s *SQLiteSequence) Next(ctx context.Context, list string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		UPDATE post_sequences
		SET post_id = post_id + 1, updated_at = CURRENT_TIMESTAMP
		WHERE list_name = ?
		RETURNING post_id`, list,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoSequence
	}
	if err != nil {
		return 0, fmt.Errorf("failed to advance post id: %w", err)
	}
	return n, nil
}

func (s *SQLiteSequence) Set(ctx context.Context, list string, n int) error {
	if n < 0 {
		return fmt.Errorf("post id cannot be negative: %d", n)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_sequences (list_name, post_id) VALUES (?, ?)
		ON CONFLICT(list_name) DO UPDATE SET post_id = excluded.post_id, updated_at = CURRENT_TIMESTAMP`,
		list, n,
	)
	if err != nil {
		return fmt.Errorf("failed to set post id: %w", err)
	}
	return nil
}

func (s *SQLiteSequence) Init(ctx context.Context, list string, start int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO post_sequences (list_name, post_id) VALUES (?, ?)",
		list, start,
	)
	if err != nil {
		return fmt.Errorf("failed to init post id: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteSequence) Close() error {
	return s.db.Close()
}

type migration struct {
	version int
	name    string
	sql     string
}

// migrate runs all pending database migrations
func (s *SQLiteSequence) migrate(ctx context.Context) error {
	currentVersion, err := s.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
	}

	return nil
}

func (s *SQLiteSequence) schemaVersion(ctx context.Context) (int, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'",
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations",
	).Scan(&version)
	return version, err
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Version comes from the filename, e.g. "001_post_sequences.sql"
		version, err := strconv.Atoi(strings.SplitN(entry.Name(), "_", 2)[0])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, migration{
			version: version,
			name:    entry.Name(),
			sql:     string(content),
		})
	}

	return migrations, nil
}

func (s *SQLiteSequence) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration SQL error: %w", err)
	}

	return tx.Commit()
}
