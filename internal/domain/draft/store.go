package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/upo/upo/internal/domain/form"
	"github.com/upo/upo/internal/platform/metrics"
	"github.com/upo/upo/internal/platform/websocket"
)

// EventPublisher receives a notice for every draft written or cleared.
type EventPublisher interface {
	Publish(ctx context.Context, ev websocket.Event) error
}

// Store persists one draft per workspace and draft group. It owns no live
// form state.
type Store struct {
	repo    Repository
	catalog *form.Catalog
	clock   func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
	events  EventPublisher
}

func NewStore(repo Repository, catalog *form.Catalog, logger zerolog.Logger) *Store {
	return &Store{
		repo:    repo,
		catalog: catalog,
		clock:   time.Now,
		logger:  logger.With().Str("component", "draft_store").Logger(),
	}
}

// SetMetrics attaches optional Prometheus collectors.
func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Store) SetPublisher(p EventPublisher) {
	s.events = p
}

// SetClock overrides the clock used for the last-saved timestamp.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *Store) Catalog() *form.Catalog { return s.catalog }

// Save captures every form of the group and overwrites the stored draft.
func (s *Store) Save(ctx context.Context, workspace string, g *form.Group, forms ...*form.State) error {
	return s.Put(ctx, workspace, g, Capture(forms...))
}

// Put stamps the draft with the current time and writes it.
func (s *Store) Put(ctx context.Context, workspace string, g *form.Group, d *Draft) error {
	d.LastSaved = s.clock()
	payload, err := Encode(d)
	if err != nil {
		s.metrics.DraftSaved(g.Name, metrics.ResultError)
		return fmt.Errorf("encode draft %s: %w", g.Name, err)
	}
	err = s.repo.Put(ctx, &Entry{
		Workspace: workspace,
		Key:       g.Key,
		Payload:   payload,
		SavedAt:   d.LastSaved,
	})
	if err != nil {
		s.metrics.DraftSaved(g.Name, metrics.ResultError)
		return fmt.Errorf("save draft %s: %w", g.Name, err)
	}
	s.metrics.DraftSaved(g.Name, metrics.ResultOK)
	s.publish(ctx, websocket.EventDraftSaved, workspace, g, d.LastSaved)
	return nil
}

// Load reads and decodes the group's draft. It returns ErrNoDraft when
// nothing is stored and ErrMalformedDraft when the payload cannot be parsed.
func (s *Store) Load(ctx context.Context, workspace string, g *form.Group) (*Draft, error) {
	e, err := s.repo.Get(ctx, workspace, g.Key)
	if errors.Is(err, ErrNotFound) {
		s.metrics.DraftLoaded(g.Name, "missing")
		return nil, ErrNoDraft
	}
	if err != nil {
		s.metrics.DraftLoaded(g.Name, metrics.ResultError)
		return nil, fmt.Errorf("load draft %s: %w", g.Name, err)
	}
	d, err := Decode(e.Payload, s.catalog.Schemas(g))
	if err != nil {
		s.metrics.DraftLoaded(g.Name, "malformed")
		s.logger.Error().Err(err).
			Str("workspace", workspace).
			Str("group", g.Name).
			Int("size", e.Size).
			Msg("stored draft could not be decoded")
		return nil, err
	}
	s.metrics.DraftLoaded(g.Name, metrics.ResultOK)
	return d, nil
}

// Raw returns the stored entry as is, payload included.
func (s *Store) Raw(ctx context.Context, workspace string, g *form.Group) (*Entry, error) {
	e, err := s.repo.Get(ctx, workspace, g.Key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoDraft
	}
	if err != nil {
		return nil, err
	}
	e.Group = g.Name
	return e, nil
}

// Clear removes the group's draft. Clearing an absent draft is not an error.
func (s *Store) Clear(ctx context.Context, workspace string, g *form.Group) error {
	if err := s.repo.Delete(ctx, workspace, g.Key); err != nil {
		return fmt.Errorf("clear draft %s: %w", g.Name, err)
	}
	s.publish(ctx, websocket.EventDraftCleared, workspace, g, s.clock())
	return nil
}

func (s *Store) publish(ctx context.Context, kind, workspace string, g *form.Group, at time.Time) {
	if s.events == nil {
		return
	}
	ev := websocket.Event{Type: kind, Workspace: workspace, Group: g.Name, At: at.UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", kind).Str("group", g.Name).Msg("draft event not published")
	}
}

// List returns the drafts stored in the workspace, newest first.
func (s *Store) List(ctx context.Context, workspace string, limit, offset int) ([]*Entry, int, error) {
	items, total, err := s.repo.List(ctx, workspace, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list drafts: %w", err)
	}
	for _, e := range items {
		if g, ok := s.catalog.GroupByKey(e.Key); ok {
			e.Group = g.Name
		}
	}
	return items, total, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
