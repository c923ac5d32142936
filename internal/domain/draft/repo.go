package draft

import "context"

// Repository is the key-value store drafts are persisted in. Keys are scoped
// by workspace; a Put overwrites any previous payload for the same key.
type Repository interface {
	Put(ctx context.Context, e *Entry) error
	Get(ctx context.Context, workspace, key string) (*Entry, error)
	Delete(ctx context.Context, workspace, key string) error
	List(ctx context.Context, workspace string, limit, offset int) ([]*Entry, int, error)
	Ping(ctx context.Context) error
}
