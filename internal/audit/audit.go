// Package audit implements the operator console's SQLite-backed audit
// trail: every executed console command is appended to a local table that
// survives restarts, queryable for the console's own history reporting.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"
)

// Entry is one recorded console invocation.
type Entry struct {
	ID        string
	Operator  string
	Level     int
	Line      string
	Success   bool
	Message   string
	CreatedAt time.Time
}

// Trail wraps a SQLite database holding the audit log.
type Trail struct {
	db *sql.DB
}

// Open opens (creating if necessary) the audit database at path and
// ensures its schema exists.
func Open(path string) (*Trail, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		// Non-fatal: some filesystems (e.g. network mounts) reject WAL.
		_ = err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Trail{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS console_commands (
    id TEXT PRIMARY KEY,
    operator TEXT NOT NULL,
    level INTEGER NOT NULL,
    line TEXT NOT NULL,
    success INTEGER NOT NULL,
    message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_console_commands_created_at ON console_commands(created_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

// Record appends one executed command to the trail.
func (t *Trail) Record(operator string, level int, line string, success bool, message string) error {
	_, err := t.db.Exec(
		`INSERT INTO console_commands (id, operator, level, line, success, message) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), operator, level, line, success, message,
	)
	return err
}

// Recent returns the n most recently recorded entries, newest first.
func (t *Trail) Recent(n int) ([]Entry, error) {
	rows, err := t.db.Query(
		`SELECT id, operator, level, line, success, message, created_at FROM console_commands ORDER BY created_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var successInt int
		var message sql.NullString
		if err := rows.Scan(&e.ID, &e.Operator, &e.Level, &e.Line, &successInt, &message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Success = successInt != 0
		e.Message = message.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (t *Trail) Close() error {
	return t.db.Close()
}
