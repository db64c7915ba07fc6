// Package ledger records which files the drop watcher has already uploaded,
// keyed by content checksum, in a SQLite database.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS uploads (
	checksum    TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	doc_id      TEXT NOT NULL,
	uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_uploads_doc_id ON uploads(doc_id);
`

// Entry is one recorded upload.
type Entry struct {
	Checksum   string
	Path       string
	DocID      string
	UploadedAt time.Time
}

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the ledger database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Has reports whether content with this checksum was already uploaded.
func (db *DB) Has(checksum string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM uploads WHERE checksum = ?`, checksum).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: has: %w", err)
	}
	return true, nil
}

// Record stores an upload. Recording the same checksum again updates the row.
func (db *DB) Record(e Entry) error {
	if e.UploadedAt.IsZero() {
		e.UploadedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO uploads (checksum, path, doc_id, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(checksum) DO UPDATE SET
			path        = excluded.path,
			doc_id      = excluded.doc_id,
			uploaded_at = excluded.uploaded_at
	`, e.Checksum, e.Path, e.DocID, e.UploadedAt)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// List returns recorded uploads, newest first. docID filters when non-empty.
func (db *DB) List(docID string) ([]Entry, error) {
	q := `SELECT checksum, path, doc_id, uploaded_at FROM uploads`
	var args []any
	if docID != "" {
		q += ` WHERE doc_id = ?`
		args = append(args, docID)
	}
	q += ` ORDER BY uploaded_at DESC, rowid DESC`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Checksum, &e.Path, &e.DocID, &e.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
