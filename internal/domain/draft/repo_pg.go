package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type draftRepoPG struct{ pool *pgxpool.Pool }

// NewDraftRepoPG stores drafts in the form_draft table created by
// migrations/001_drafts.sql.
func NewDraftRepoPG(pool *pgxpool.Pool) Repository {
	return &draftRepoPG{pool: pool}
}

func (r *draftRepoPG) Put(ctx context.Context, e *Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO form_draft (workspace, storage_key, payload, saved_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (workspace, storage_key) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
		e.Workspace, e.Key, string(e.Payload), e.SavedAt)
	if err != nil {
		return fmt.Errorf("upsert draft %s/%s: %w", e.Workspace, e.Key, err)
	}
	return nil
}

func (r *draftRepoPG) Get(ctx context.Context, workspace, key string) (*Entry, error) {
	e := &Entry{Workspace: workspace, Key: key}
	var payload string
	err := r.pool.QueryRow(ctx,
		`SELECT payload::text, saved_at FROM form_draft WHERE workspace = $1 AND storage_key = $2`,
		workspace, key).Scan(&payload, &e.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("draft %s/%s: %w", workspace, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select draft: %w", err)
	}
	e.Payload = []byte(payload)
	e.Size = len(e.Payload)
	return e, nil
}

func (r *draftRepoPG) Delete(ctx context.Context, workspace, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM form_draft WHERE workspace = $1 AND storage_key = $2`, workspace, key)
	return err
}

func (r *draftRepoPG) List(ctx context.Context, workspace string, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM form_draft WHERE workspace = $1`, workspace).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT storage_key, octet_length(payload::text), saved_at FROM form_draft
		WHERE workspace = $1 ORDER BY saved_at DESC LIMIT $2 OFFSET $3`, workspace, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e := &Entry{Workspace: workspace}
		if err := rows.Scan(&e.Key, &e.Size, &e.SavedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *draftRepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
