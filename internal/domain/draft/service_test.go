package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/upo/upo/internal/domain/form"
)

func newTestService(t *testing.T) (*Service, Repository) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := NewService(newTestStore(repo, nil), testDelay, zerolog.Nop())
	svc.SetClock(fixedClock)
	t.Cleanup(func() { _ = svc.FlushAll(context.Background()) })
	return svc, repo
}

func admissionGroup(t *testing.T) *form.Group {
	t.Helper()
	g, err := form.DefaultCatalog().Group("admission")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

func TestService_EditIsDebounced(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	if _, err := svc.Edit(ctx, "ws", "surgical", "peso", "80"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.Get(ctx, "ws", "upo_admission_form_data"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected nothing saved yet, got %v", err)
	}
	waitFor(t, func() bool {
		_, err := repo.Get(ctx, "ws", "upo_admission_form_data")
		return err == nil
	})
	d, err := svc.Store().Load(ctx, "ws", admissionGroup(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Record.Get("peso") != "80" {
		t.Errorf("expected peso 80, got %q", d.Record.Get("peso"))
	}
}

func TestService_SaveNowToggleFlushes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	snap, err := svc.Toggle(ctx, "ws", "surgical", "nega_alergia", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Values["alergia_detalhe"] != "Nega" {
		t.Errorf("expected Nega, got %v", snap.Values["alergia_detalhe"])
	}
	d, err := svc.Store().Load(ctx, "ws", admissionGroup(t))
	if err != nil {
		t.Fatalf("expected immediate save, got %v", err)
	}
	if !d.Record.On("nega_alergia") {
		t.Error("expected toggle flag in draft")
	}
	if _, ok := d.Record["alergia_detalhe"]; ok {
		t.Error("expected disabled field to be left out of the draft")
	}
}

func TestService_HideFlushes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, _ = svc.Edit(ctx, "ws", "clinical", "clin_leito", "12")
	if err := svc.Hide(ctx, "ws", "clinical"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := svc.Store().Load(ctx, "ws", admissionGroup(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Record.Get("clin_leito") != "12" {
		t.Errorf("expected leito 12, got %q", d.Record.Get("clin_leito"))
	}
}

func TestService_ResumeNoDraft(t *testing.T) {
	svc, _ := newTestService(t)
	out, err := svc.Resume(context.Background(), "ws", "surgical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Message != MsgNoDraft || out.Restored {
		t.Errorf("unexpected outcome %+v", out)
	}
	if out.View != "surgical" {
		t.Errorf("expected to stay on surgical, got %s", out.View)
	}
}

func TestService_ResumeMalformedLeavesFormsUntouched(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	_, _ = svc.Edit(ctx, "ws", "surgical", "idade", "33")
	svc.benches[benchKey{"ws", "admission"}].saver.Cancel()
	_ = repo.Put(ctx, &Entry{Workspace: "ws", Key: "upo_admission_form_data", Payload: []byte("not json"), SavedAt: fixedNow})

	out, err := svc.Resume(ctx, "ws", "surgical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Message != MsgLoadFailed {
		t.Errorf("expected load failure message, got %q", out.Message)
	}
	if out.Form.Values["idade"] != "33" {
		t.Errorf("expected live value kept, got %v", out.Form.Values["idade"])
	}
}

func TestService_ResumeAfterTeardownOpensClinical(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Edit(ctx, "ws", "clinical", "inst_neuro", "Sim")
	_, _ = svc.Toggle(ctx, "ws", "clinical", "pvp", true)
	_, _ = svc.Edit(ctx, "ws", "clinical", "clin_pvp_loc", "MSD")
	if err := svc.Teardown(ctx, "ws", "clinical"); err != nil {
		t.Fatalf("teardown: %v", err)
	}

	fresh, _ := svc.Snapshot(ctx, "ws", "clinical")
	if fresh.Values["inst_neuro"] != "" {
		t.Fatalf("expected a fresh form after teardown, got %v", fresh.Values["inst_neuro"])
	}

	out, err := svc.Resume(ctx, "ws", "surgical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.View != "clinical" || out.Message != MsgRestored || !out.Restored {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Form.Values["inst_neuro"] != "Sim" || out.Form.Values["clin_pvp_loc"] != "MSD" {
		t.Errorf("unexpected restored values %v", out.Form.Values)
	}
	if !out.Form.Toggles["pvp"] {
		t.Error("expected pvp toggle replayed")
	}
}

func TestService_ResumeOpensSurgicalByDefault(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Edit(ctx, "ws", "surgical", "cirurgia", "Colecistectomia")
	_ = svc.Hide(ctx, "ws", "surgical")

	out, err := svc.Resume(ctx, "ws", "clinical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.View != "surgical" {
		t.Errorf("expected surgical view, got %s", out.View)
	}
}

func TestService_ResetClearsDraftAndCancelsPending(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	_, _ = svc.Edit(ctx, "ws", "surgical", "peso", "80")
	_ = svc.Hide(ctx, "ws", "surgical")
	_, _ = svc.Edit(ctx, "ws", "surgical", "peso", "81")

	out, err := svc.Reset(ctx, "ws", "surgical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Message != MsgFormCleared {
		t.Errorf("expected cleared message, got %q", out.Message)
	}
	if out.Form.Values["peso"] != "" {
		t.Errorf("expected peso reset, got %v", out.Form.Values["peso"])
	}
	time.Sleep(3 * testDelay)
	if _, err := repo.Get(ctx, "ws", "upo_admission_form_data"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no draft after reset, got %v", err)
	}
}

func TestService_WorkspacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Edit(ctx, "a", "surgical", "idade", "40")

	snap, err := svc.Snapshot(ctx, "b", "surgical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Values["idade"] != "" {
		t.Errorf("expected workspace b untouched, got %v", snap.Values["idade"])
	}
}

func TestService_FlushAll(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Edit(ctx, "a", "surgical", "idade", "40")
	_, _ = svc.Edit(ctx, "b", "reassessment", "reav_leito", "3")

	if err := svc.FlushAll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, total, _ := svc.Drafts(ctx, "b", 10, 0)
	if total != 1 || items[0].Group != "reassessment" {
		t.Errorf("expected reassessment draft in b, got %d", total)
	}
	if _, err := svc.StoredDraft(ctx, "a", "admission"); err != nil {
		t.Errorf("expected admission draft in a, got %v", err)
	}
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	if _, err := svc.Edit(ctx, "ws", "nope", "x", "1"); !errors.Is(err, form.ErrUnknownForm) {
		t.Errorf("expected ErrUnknownForm, got %v", err)
	}
	if _, err := svc.Edit(ctx, "ws", "surgical", "nope", "1"); !errors.Is(err, form.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	if _, err := svc.Toggle(ctx, "ws", "surgical", "nope", true); !errors.Is(err, form.ErrUnknownToggle) {
		t.Errorf("expected ErrUnknownToggle, got %v", err)
	}
	if _, err := svc.StoredDraft(ctx, "ws", "admission"); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}
	if err := svc.DiscardDraft(ctx, "ws", "nope"); !errors.Is(err, form.ErrUnknownGroup) {
		t.Errorf("expected ErrUnknownGroup, got %v", err)
	}
}

// slowRepo delays every Put and reports when one starts.
type slowRepo struct {
	Repository
	delay   time.Duration
	started chan struct{}
}

func (r *slowRepo) Put(ctx context.Context, e *Entry) error {
	select {
	case r.started <- struct{}{}:
	default:
	}
	time.Sleep(r.delay)
	return r.Repository.Put(ctx, e)
}

func newSlowService(t *testing.T) (*Service, *slowRepo) {
	t.Helper()
	repo := &slowRepo{Repository: NewMemoryRepo(), delay: 100 * time.Millisecond, started: make(chan struct{}, 1)}
	svc := NewService(newTestStore(repo, nil), testDelay, zerolog.Nop())
	svc.SetClock(fixedClock)
	t.Cleanup(func() { _ = svc.FlushAll(context.Background()) })
	return svc, repo
}

func waitStarted(t *testing.T, repo *slowRepo) {
	t.Helper()
	select {
	case <-repo.started:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced save never started")
	}
}

func TestService_ResetWaitsForRunningSave(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSlowService(t)
	_, _ = svc.Edit(ctx, "ws", "clinical", "clin_leito", "12")
	waitStarted(t, repo)

	out, err := svc.Reset(ctx, "ws", "clinical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Message != MsgFormCleared {
		t.Errorf("expected cleared message, got %q", out.Message)
	}
	time.Sleep(2 * repo.delay)
	if _, err := svc.Store().Load(ctx, "ws", admissionGroup(t)); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected no draft after reset, got %v", err)
	}
}

func TestService_DiscardWaitsForRunningSave(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSlowService(t)
	_, _ = svc.Edit(ctx, "ws", "reassessment", "reav_leito", "4")
	waitStarted(t, repo)

	if err := svc.DiscardDraft(ctx, "ws", "reassessment"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.StoredDraft(ctx, "ws", "reassessment"); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected draft discarded, got %v", err)
	}
}

func TestService_ResumeWaitsForRunningSave(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSlowService(t)
	_, _ = svc.Edit(ctx, "ws", "clinical", "clin_leito", "12")
	waitStarted(t, repo)

	out, err := svc.Resume(ctx, "ws", "clinical")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Restored || out.Form.Values["clin_leito"] != "12" {
		t.Errorf("expected the running save to be restored, got %+v", out)
	}
}

func TestService_RepeatedTeardownKeepsDraft(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Edit(ctx, "ws", "clinical", "clin_leito", "12")
	_, _ = svc.Edit(ctx, "ws", "clinical", "inst_neuro", "Sim")

	for i := 0; i < 2; i++ {
		if err := svc.Teardown(ctx, "ws", "clinical"); err != nil {
			t.Fatalf("teardown %d: %v", i, err)
		}
	}
	_ = svc.Hide(ctx, "ws", "clinical")

	d, err := svc.Store().Load(ctx, "ws", admissionGroup(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Record.Get("clin_leito") != "12" || d.Record.Get("inst_neuro") != "Sim" {
		t.Errorf("expected draft kept, got %v", d.Record)
	}
}

func TestService_UntouchedFormsAreNeverSaved(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	first := NewService(newTestStore(repo, nil), testDelay, zerolog.Nop())
	_, _ = first.Edit(ctx, "ws", "surgical", "peso", "70")
	if err := first.FlushAll(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	restarted := NewService(newTestStore(repo, nil), testDelay, zerolog.Nop())
	_, _ = restarted.Snapshot(ctx, "ws", "surgical")
	_ = restarted.Hide(ctx, "ws", "surgical")
	_ = restarted.FlushAll(ctx)

	d, err := restarted.Store().Load(ctx, "ws", admissionGroup(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Record.Get("peso") != "70" {
		t.Errorf("expected stored draft kept after restart, got %q", d.Record.Get("peso"))
	}
}
