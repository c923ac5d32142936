package draft

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) *sqliteRepo {
	t.Helper()
	repo, err := NewSQLiteRepo(filepath.Join(t.TempDir(), "nested", "drafts.db"))
	require.NoError(t, err)
	r := repo.(*sqliteRepo)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRepo_PutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	require.NoError(t, repo.Put(ctx, &Entry{Workspace: "ws", Key: "k", Payload: []byte(`{"a":"1"}`), SavedAt: fixedNow}))
	require.NoError(t, repo.Put(ctx, &Entry{Workspace: "ws", Key: "k", Payload: []byte(`{"a":"2"}`), SavedAt: fixedNow.Add(time.Second)}))

	e, err := repo.Get(ctx, "ws", "k")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"2"}`, string(e.Payload))
	require.True(t, e.SavedAt.Equal(fixedNow.Add(time.Second)))
	require.Equal(t, len(e.Payload), e.Size)
}

func TestSQLiteRepo_GetMissing(t *testing.T) {
	repo := newSQLiteRepo(t)
	_, err := repo.Get(context.Background(), "ws", "missing")
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestSQLiteRepo_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	require.NoError(t, repo.Put(ctx, &Entry{Workspace: "ws", Key: "old", Payload: []byte(`{}`), SavedAt: fixedNow}))
	require.NoError(t, repo.Put(ctx, &Entry{Workspace: "ws", Key: "new", Payload: []byte(`{"x":"y"}`), SavedAt: fixedNow.Add(time.Hour)}))
	require.NoError(t, repo.Put(ctx, &Entry{Workspace: "other", Key: "old", Payload: []byte(`{}`), SavedAt: fixedNow}))

	items, total, err := repo.List(ctx, "ws", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 2)
	require.Equal(t, "new", items[0].Key)
	require.Equal(t, 9, items[0].Size)

	require.NoError(t, repo.Delete(ctx, "ws", "new"))
	require.NoError(t, repo.Delete(ctx, "ws", "never-existed"))
	_, total, err = repo.List(ctx, "ws", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.NoError(t, repo.Ping(ctx))
}
