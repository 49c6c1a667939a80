package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ArchiveSink stores submissions in a SQLite database.
type ArchiveSink struct {
	db *sql.DB
}

// OpenArchive opens (or creates) the archive at path. ":memory:" is
// accepted for tests.
func OpenArchive(path string) (*ArchiveSink, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	a := &ArchiveSink{db: db}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *ArchiveSink) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		form TEXT NOT NULL,
		session_id TEXT,
		payload TEXT NOT NULL,
		submitted_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_form ON submissions(form);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("creating submissions table: %w", err)
	}
	return nil
}

// Submit stores the submission. Re-submitting the same ID is a no-op.
func (a *ArchiveSink) Submit(ctx context.Context, sub Submission) error {
	payload, err := json.Marshal(sub.Values)
	if err != nil {
		return fmt.Errorf("encoding values: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO submissions (id, form, session_id, payload, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Form, sub.SessionID, string(payload), sub.SubmittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Unavailable(err)
	}
	return nil
}

// List returns the most recent submissions, newest first. An empty form
// lists every form.
func (a *ArchiveSink) List(ctx context.Context, form string, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, form, session_id, payload, submitted_at FROM submissions
		 WHERE (? = '' OR form = ?)
		 ORDER BY submitted_at DESC LIMIT ?`,
		form, form, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var (
			sub       Submission
			sessionID sql.NullString
			payload   string
			at        string
		)
		if err := rows.Scan(&sub.ID, &sub.Form, &sessionID, &payload, &at); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		sub.SessionID = sessionID.String
		if err := json.Unmarshal([]byte(payload), &sub.Values); err != nil {
			return nil, fmt.Errorf("decoding submission %s: %w", sub.ID, err)
		}
		for k, v := range sub.Values {
			sub.Values.Set(k, v)
		}
		if sub.SubmittedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("decoding submission %s time: %w", sub.ID, err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Count returns the number of stored submissions.
func (a *ArchiveSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Ping checks the database connection.
func (a *ArchiveSink) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database.
func (a *ArchiveSink) Close() error {
	return a.db.Close()
}
