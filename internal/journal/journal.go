// Package journal records Subject rewrites in SQLite so list owners can
// see what the pipeline did to each post.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded rewrite
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	List      string    `json:"list"`
	ListID    string    `json:"list_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Strategy  string    `json:"strategy"`
	Original  string    `json:"original"`  // Raw Subject before the rewrite
	Rewritten string    `json:"rewritten"` // Raw Subject after the rewrite
	Stripped  string    `json:"stripped"`  // Decoded subject without prefix or reply markers
	Charsets  []string  `json:"charsets,omitempty"`
}

// Journal stores rewrite entries
type Journal struct {
	db    *sql.DB
	owned bool
}

// New creates a journal on db. A nil db yields a nil Journal, whose
// methods do nothing.
func New(db *sql.DB) (*Journal, error) {
	if db == nil {
		return nil, nil
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rewrite_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			list TEXT NOT NULL,
			list_id TEXT,
			message_id TEXT,
			strategy TEXT NOT NULL,
			original TEXT,
			rewritten TEXT,
			stripped TEXT,
			charsets TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON rewrite_journal(timestamp);
		CREATE INDEX IF NOT EXISTS idx_journal_list ON rewrite_journal(list);
		CREATE INDEX IF NOT EXISTS idx_journal_strategy ON rewrite_journal(strategy);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Open opens or creates a journal database at path.
func Open(path string) (*Journal, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	j.owned = true
	return j, nil
}

// Record stores e. A zero timestamp is replaced with the current time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if j == nil || j.db == nil {
		return nil
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	var charsets string
	if len(e.Charsets) > 0 {
		data, err := json.Marshal(e.Charsets)
		if err != nil {
			return err
		}
		charsets = string(data)
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO rewrite_journal (timestamp, list, list_id, message_id, strategy, original, rewritten, stripped, charsets)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC(), e.List, e.ListID, e.MessageID, e.Strategy, e.Original, e.Rewritten, e.Stripped, charsets,
	)
	return err
}

// Filter selects journal entries
type Filter struct {
	List     string
	Strategy string
	Since    time.Time
	Limit    int
}

// Query returns matching entries, newest first.
func (j *Journal) Query(ctx context.Context, f Filter) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}

	query := `SELECT id, timestamp, list, list_id, message_id, strategy, original, rewritten, stripped, charsets
		FROM rewrite_journal WHERE 1=1`
	where, args := f.where()
	query += where + " ORDER BY timestamp DESC, id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var listID, msgID, original, rewritten, stripped, charsets sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.List, &listID, &msgID, &e.Strategy,
			&original, &rewritten, &stripped, &charsets); err != nil {
			return nil, err
		}
		e.ListID = listID.String
		e.MessageID = msgID.String
		e.Original = original.String
		e.Rewritten = rewritten.String
		e.Stripped = stripped.String
		if charsets.String != "" {
			if err := json.Unmarshal([]byte(charsets.String), &e.Charsets); err != nil {
				return nil, fmt.Errorf("entry %d: bad charsets: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Count returns the number of entries matching f. The limit is ignored.
func (j *Journal) Count(ctx context.Context, f Filter) (int, error) {
	if j == nil || j.db == nil {
		return 0, nil
	}

	where, args := f.where()
	var count int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rewrite_journal WHERE 1=1`+where, args...).Scan(&count)
	return count, err
}

func (f Filter) where() (string, []interface{}) {
	var where string
	args := []interface{}{}

	if f.List != "" {
		where += " AND list = ?"
		args = append(args, f.List)
	}
	if f.Strategy != "" {
		where += " AND strategy = ?"
		args = append(args, f.Strategy)
	}
	if !f.Since.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, f.Since.UTC())
	}
	return where, args
}

// Close closes the database if the journal opened it.
func (j *Journal) Close() error {
	if j == nil || !j.owned {
		return nil
	}
	return j.db.Close()
}
