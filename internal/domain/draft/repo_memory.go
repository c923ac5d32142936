package draft

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryRepo struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry
}

// NewMemoryRepo returns a process-local repository. Drafts do not survive a
// restart.
func NewMemoryRepo() Repository {
	return &memoryRepo{entries: make(map[string]map[string]*Entry)}
}

func (r *memoryRepo) Put(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.entries[e.Workspace]
	if !ok {
		ws = make(map[string]*Entry)
		r.entries[e.Workspace] = ws
	}
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	cp.Size = len(cp.Payload)
	ws[e.Key] = &cp
	return nil
}

func (r *memoryRepo) Get(_ context.Context, workspace, key string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[workspace][key]
	if !ok {
		return nil, fmt.Errorf("draft %s/%s: %w", workspace, key, ErrNotFound)
	}
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	return &cp, nil
}

func (r *memoryRepo) Delete(_ context.Context, workspace, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries[workspace], key)
	return nil
}

func (r *memoryRepo) List(_ context.Context, workspace string, limit, offset int) ([]*Entry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Entry
	for _, e := range r.entries[workspace] {
		cp := *e
		cp.Payload = nil
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SavedAt.After(all[j].SavedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memoryRepo) Ping(context.Context) error { return nil }
