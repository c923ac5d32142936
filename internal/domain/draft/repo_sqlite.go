package draft

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

type sqliteRepo struct {
	db   *sql.DB
	path string
}

// NewSQLiteRepo opens (creating if needed) a SQLite file holding one row per
// workspace and storage key.
func NewSQLiteRepo(path string) (Repository, error) {
	if path == "" {
		path = "upo-drafts.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer keeps saves ordered.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS form_draft (
		workspace   TEXT    NOT NULL,
		storage_key TEXT    NOT NULL,
		payload     BLOB    NOT NULL,
		saved_at    INTEGER NOT NULL,
		PRIMARY KEY (workspace, storage_key)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create form_draft table: %w", err)
	}
	return &sqliteRepo{db: db, path: path}, nil
}

func (r *sqliteRepo) Put(ctx context.Context, e *Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO form_draft (workspace, storage_key, payload, saved_at) VALUES (?,?,?,?)
		ON CONFLICT(workspace, storage_key) DO UPDATE SET payload=excluded.payload, saved_at=excluded.saved_at`,
		e.Workspace, e.Key, e.Payload, e.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert draft %s/%s: %w", e.Workspace, e.Key, err)
	}
	return nil
}

func (r *sqliteRepo) Get(ctx context.Context, workspace, key string) (*Entry, error) {
	e := &Entry{Workspace: workspace, Key: key}
	var savedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT payload, saved_at FROM form_draft WHERE workspace = ? AND storage_key = ?`,
		workspace, key).Scan(&e.Payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("draft %s/%s: %w", workspace, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select draft: %w", err)
	}
	e.SavedAt = time.UnixMilli(savedAt).UTC()
	e.Size = len(e.Payload)
	return e, nil
}

func (r *sqliteRepo) Delete(ctx context.Context, workspace, key string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM form_draft WHERE workspace = ? AND storage_key = ?`, workspace, key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (r *sqliteRepo) List(ctx context.Context, workspace string, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM form_draft WHERE workspace = ?`, workspace).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count drafts: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT storage_key, length(payload), saved_at FROM form_draft
		WHERE workspace = ? ORDER BY saved_at DESC LIMIT ? OFFSET ?`, workspace, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list drafts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var items []*Entry
	for rows.Next() {
		e := &Entry{Workspace: workspace}
		var savedAt int64
		if err := rows.Scan(&e.Key, &e.Size, &savedAt); err != nil {
			return nil, 0, fmt.Errorf("scan draft: %w", err)
		}
		e.SavedAt = time.UnixMilli(savedAt).UTC()
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *sqliteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (r *sqliteRepo) Close() error {
	return r.db.Close()
}
