package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/upo/upo/internal/domain/form"
)

// Messages returned alongside a resume or reset.
const (
	MsgRestored    = "Sessão restaurada"
	MsgNoDraft     = "Nenhum rascunho encontrado"
	MsgLoadFailed  = "Erro ao carregar rascunho"
	MsgFormCleared = "Formulário limpo"
)

// Outcome is the result of a resume or reset: the form to show, an
// ephemeral message, and the state of that form.
type Outcome struct {
	View     string         `json:"view"`
	Message  string         `json:"message"`
	Restored bool           `json:"restored"`
	Form     *form.Snapshot `json:"form"`
}

type benchKey struct {
	workspace string
	group     string
}

// workbench holds the live forms of one draft group in one workspace, the
// server-side counterpart of an open page.
type workbench struct {
	mu    sync.Mutex
	group *form.Group
	forms map[string]*form.State
	order []*form.State
	saver *Autosaver
	// dirty is set once the forms hold user state: an edit, a toggle or a
	// restored draft. Reset clears it.
	dirty bool
}

func (w *workbench) isDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

func (w *workbench) capture() *Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Capture(w.order...)
}

// Service manages live forms and keeps their drafts in sync with the store.
type Service struct {
	store  *Store
	clock  func() time.Time
	delay  time.Duration
	logger zerolog.Logger

	mu      sync.Mutex
	benches map[benchKey]*workbench
}

func NewService(store *Store, delay time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		clock:   time.Now,
		delay:   delay,
		logger:  logger.With().Str("component", "draft_service").Logger(),
		benches: make(map[benchKey]*workbench),
	}
}

// SetClock overrides the clock used for date and time defaults.
func (s *Service) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *Service) Store() *Store { return s.store }

func (s *Service) bench(workspace, formName string) (*workbench, *form.State, error) {
	cat := s.store.Catalog()
	g, err := cat.GroupOf(formName)
	if err != nil {
		return nil, nil, err
	}
	key := benchKey{workspace: workspace, group: g.Name}

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.benches[key]
	if !ok {
		w = &workbench{group: g, forms: make(map[string]*form.State)}
		for _, schema := range cat.Schemas(g) {
			st := form.NewState(schema, s.clock)
			w.forms[schema.Name] = st
			w.order = append(w.order, st)
		}
		logger := s.logger.With().Str("workspace", workspace).Str("group", g.Name).Logger()
		w.saver = NewAutosaver(s.delay, func(ctx context.Context) error {
			return s.store.Put(ctx, workspace, g, w.capture())
		}, logger)
		s.benches[key] = w
	}
	return w, w.forms[formName], nil
}

// lookup returns the existing workbench of the form's group, or nil when the
// group has no live forms in the workspace.
func (s *Service) lookup(workspace, formName string) (*workbench, error) {
	g, err := s.store.Catalog().GroupOf(formName)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.benches[benchKey{workspace: workspace, group: g.Name}], nil
}

// Snapshot returns the live state of a form.
func (s *Service) Snapshot(_ context.Context, workspace, formName string) (*form.Snapshot, error) {
	w, st, err := s.bench(workspace, formName)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return st.Snapshot(), nil
}

// Edit applies a user edit and schedules a debounced save.
func (s *Service) Edit(_ context.Context, workspace, formName, field string, values ...string) (*form.Snapshot, error) {
	w, st, err := s.bench(workspace, formName)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	if err := st.Set(field, values...); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.dirty = true
	snap := st.Snapshot()
	w.mu.Unlock()

	w.saver.Touch()
	return snap, nil
}

// Toggle flips a toggle checkbox. Toggles marked save_now are persisted
// immediately, the rest go through the debounce.
func (s *Service) Toggle(ctx context.Context, workspace, formName, toggle string, on bool) (*form.Snapshot, error) {
	w, st, err := s.bench(workspace, formName)
	if err != nil {
		return nil, err
	}
	t, ok := st.Schema().Toggle(toggle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", form.ErrUnknownToggle, toggle)
	}
	w.mu.Lock()
	if err := st.SetToggle(toggle, on); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	w.dirty = true
	snap := st.Snapshot()
	w.mu.Unlock()

	if t.SaveNow {
		_ = w.saver.Flush(ctx)
	} else {
		w.saver.Touch()
	}
	return snap, nil
}

// Hide is called when the page loses visibility; the draft is saved at once.
// A group nobody edited or resumed is not saved, so a repeated or late
// notice cannot overwrite the stored draft with defaults.
func (s *Service) Hide(ctx context.Context, workspace, formName string) error {
	w, err := s.lookup(workspace, formName)
	if err != nil || w == nil {
		return err
	}
	if !w.isDirty() {
		return nil
	}
	return w.saver.Flush(ctx)
}

// Teardown is called when the page is torn down: the draft is saved and the
// live forms are released.
func (s *Service) Teardown(ctx context.Context, workspace, formName string) error {
	w, err := s.lookup(workspace, formName)
	if err != nil || w == nil {
		return err
	}
	if w.isDirty() {
		err = w.saver.Flush(ctx)
	}
	w.saver.Stop()

	s.mu.Lock()
	key := benchKey{workspace: workspace, group: w.group.Name}
	if s.benches[key] == w {
		delete(s.benches, key)
	}
	s.mu.Unlock()
	return err
}

// Resume restores the stored draft into the live forms. A missing or
// unreadable draft leaves the forms untouched and is reported through the
// outcome message, not as an error.
func (s *Service) Resume(ctx context.Context, workspace, formName string) (*Outcome, error) {
	w, st, err := s.bench(workspace, formName)
	if err != nil {
		return nil, err
	}

	// Loading and restoring exclude every save of the group, so neither a
	// scheduled nor a running save can land on top of the restored state.
	var d *Draft
	loadErr := w.saver.Exclusive(func() error {
		var err error
		if d, err = s.store.Load(ctx, workspace, w.group); err != nil {
			return err
		}
		w.mu.Lock()
		Restore(d, w.order...)
		w.dirty = true
		w.mu.Unlock()
		return nil
	})
	if loadErr != nil && w.isDirty() {
		// Edits whose save was dropped above still need one.
		w.saver.Touch()
	}
	switch {
	case errors.Is(loadErr, ErrNoDraft):
		return s.outcome(w, st, MsgNoDraft, false), nil
	case errors.Is(loadErr, ErrMalformedDraft):
		return s.outcome(w, st, MsgLoadFailed, false), nil
	case loadErr != nil:
		return nil, loadErr
	}

	view := s.store.Catalog().ResumeView(w.group, d.Record)
	return s.outcome(w, w.forms[view], MsgRestored, true), nil
}

// Reset returns every form of the group to its defaults and deletes the
// stored draft.
func (s *Service) Reset(ctx context.Context, workspace, formName string) (*Outcome, error) {
	w, st, err := s.bench(workspace, formName)
	if err != nil {
		return nil, err
	}
	err = w.saver.Exclusive(func() error {
		w.mu.Lock()
		for _, f := range w.order {
			f.Reset()
		}
		w.dirty = false
		w.mu.Unlock()
		return s.store.Clear(ctx, workspace, w.group)
	})
	if err != nil {
		return nil, err
	}
	return s.outcome(w, st, MsgFormCleared, false), nil
}

func (s *Service) outcome(w *workbench, st *form.State, msg string, restored bool) *Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Outcome{
		View:     st.Schema().Name,
		Message:  msg,
		Restored: restored,
		Form:     st.Snapshot(),
	}
}

// Record returns the live record of a form, as the composer consumes it.
func (s *Service) Record(_ context.Context, workspace, formName string) (form.Record, error) {
	w, st, err := s.bench(workspace, formName)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return st.Record(), nil
}

// FlushAll saves every workbench holding user state and stops its autosaver.
// Used on shutdown.
func (s *Service) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	benches := make([]*workbench, 0, len(s.benches))
	for _, w := range s.benches {
		benches = append(benches, w)
	}
	s.mu.Unlock()

	var errs []error
	for _, w := range benches {
		if w.isDirty() {
			if err := w.saver.Flush(ctx); err != nil {
				errs = append(errs, fmt.Errorf("flush %s: %w", w.group.Name, err))
			}
		}
		w.saver.Stop()
	}
	return errors.Join(errs...)
}

// Drafts lists the stored drafts of a workspace.
func (s *Service) Drafts(ctx context.Context, workspace string, limit, offset int) ([]*Entry, int, error) {
	return s.store.List(ctx, workspace, limit, offset)
}

// StoredDraft returns the raw stored draft of a group.
func (s *Service) StoredDraft(ctx context.Context, workspace, group string) (*Entry, error) {
	g, err := s.store.Catalog().Group(group)
	if err != nil {
		return nil, err
	}
	return s.store.Raw(ctx, workspace, g)
}

// DiscardDraft deletes a group's stored draft without touching live forms.
func (s *Service) DiscardDraft(ctx context.Context, workspace, group string) error {
	g, err := s.store.Catalog().Group(group)
	if err != nil {
		return err
	}
	s.mu.Lock()
	w := s.benches[benchKey{workspace: workspace, group: g.Name}]
	s.mu.Unlock()
	if w == nil {
		return s.store.Clear(ctx, workspace, g)
	}
	return w.saver.Exclusive(func() error {
		return s.store.Clear(ctx, workspace, g)
	})
}
