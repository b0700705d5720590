// Package runstore persists per-document extraction outcomes in a local
// SQLite database so an interrupted run can resume without re-submitting
// unchanged PDFs. Documents are keyed by content hash, not by name, so a
// replaced file with the same name is extracted again.
package runstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry records one successfully extracted document.
type Entry struct {
	Hash        string // blake2b content hash of the PDF
	Name        string // source file name at extraction time
	TEIPath     string // path of the cached TEI result
	RefCount    int    // references parsed from the TEI
	CompletedAt time.Time
}

// Store wraps the SQLite run cache.
type Store struct {
	db *sql.DB
}

// Open opens or creates the run cache at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run cache: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			hash TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			tei_path TEXT NOT NULL,
			ref_count INTEGER NOT NULL,
			completed_at INTEGER NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached entry for a content hash, or (nil, nil) when
// the document has not been extracted before.
func (s *Store) Get(hash string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT hash, name, tei_path, ref_count, completed_at FROM documents WHERE hash = ?`,
		hash,
	)

	var e Entry
	var completedAt int64
	err := row.Scan(&e.Hash, &e.Name, &e.TEIPath, &e.RefCount, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying run cache: %w", err)
	}

	e.CompletedAt = time.Unix(completedAt, 0)
	return &e, nil
}

// Put records a completed extraction, replacing any previous entry for
// the same content hash.
func (s *Store) Put(e Entry) error {
	completedAt := e.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO documents (hash, name, tei_path, ref_count, completed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Hash, e.Name, e.TEIPath, e.RefCount, completedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("updating run cache: %w", err)
	}
	return nil
}

// Count returns the number of cached documents.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("querying run cache: %w", err)
	}
	return n, nil
}
