package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ydideh810/nidamllm/pkg/bundle"
)

// BundleSQLiteStore implements bundle.Store using SQLite
type BundleSQLiteStore struct {
	db *sql.DB
}

var _ bundle.Store = (*BundleSQLiteStore)(nil)

// NewBundleSQLiteStore creates a new SQLite-backed bundle store
func NewBundleSQLiteStore(dbPath string) (*BundleSQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &BundleSQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *BundleSQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS bundles (
		content_hash TEXT PRIMARY KEY,
		location TEXT,
		status TEXT NOT NULL,
		reason TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bundles_status ON bundles(status);
	`
	_, err := s.db.Exec(query)
	return err
}

// Get implements bundle.Store.Get
func (s *BundleSQLiteStore) Get(ctx context.Context, hash string) (bundle.Bundle, bool, error) {
	query := `SELECT content_hash, location, status, reason, created_at, updated_at FROM bundles WHERE content_hash = ?`
	row := s.db.QueryRowContext(ctx, query, hash)

	var b bundle.Bundle
	var status string
	var created, updated int64
	err := row.Scan(&b.ContentHash, &b.Location, &status, &b.Reason, &created, &updated)
	if err == sql.ErrNoRows {
		return bundle.Bundle{}, false, nil
	}
	if err != nil {
		return bundle.Bundle{}, false, fmt.Errorf("scan bundle: %w", err)
	}

	b.Status = bundle.Status(status)
	b.CreatedAt = time.Unix(created, 0).UTC()
	b.UpdatedAt = time.Unix(updated, 0).UTC()
	return b, true, nil
}

// Put implements bundle.Store.Put
func (s *BundleSQLiteStore) Put(ctx context.Context, b bundle.Bundle) error {
	query := `
		INSERT INTO bundles (content_hash, location, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			location = excluded.location,
			status = excluded.status,
			reason = excluded.reason,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ContentHash, b.Location, string(b.Status), b.Reason,
		b.CreatedAt.Unix(), b.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert bundle: %w", err)
	}
	return nil
}

// Delete implements bundle.Store.Delete
func (s *BundleSQLiteStore) Delete(ctx context.Context, hash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bundles WHERE content_hash = ?`, hash); err != nil {
		return fmt.Errorf("delete bundle: %w", err)
	}
	return nil
}

// List implements bundle.Store.List
func (s *BundleSQLiteStore) List(ctx context.Context) ([]bundle.Bundle, error) {
	query := `SELECT content_hash, location, status, reason, created_at, updated_at FROM bundles ORDER BY content_hash`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	var out []bundle.Bundle
	for rows.Next() {
		var b bundle.Bundle
		var status string
		var created, updated int64
		if err := rows.Scan(&b.ContentHash, &b.Location, &status, &b.Reason, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		b.Status = bundle.Status(status)
		b.CreatedAt = time.Unix(created, 0).UTC()
		b.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *BundleSQLiteStore) Close() error {
	return s.db.Close()
}
