package draft

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/upo/upo/internal/domain/form"
	"github.com/upo/upo/internal/platform/websocket"
)

func newTestStore(repo Repository, logs *bytes.Buffer) *Store {
	logger := zerolog.Nop()
	if logs != nil {
		logger = zerolog.New(logs)
	}
	s := NewStore(repo, form.DefaultCatalog(), logger)
	s.SetClock(fixedClock)
	return s
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(NewMemoryRepo(), nil)
	g, surg, clin := admissionForms(t)
	mustSet(t, surg, "idade", "54")
	mustSet(t, clin, "clin_leito", "7")

	if err := store.Save(ctx, "ws1", g, surg, clin); err != nil {
		t.Fatalf("save: %v", err)
	}
	d, err := store.Load(ctx, "ws1", g)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Record.Get("idade") != "54" || d.Record.Get("clin_leito") != "7" {
		t.Errorf("unexpected record %v", d.Record)
	}
	if !d.LastSaved.Equal(fixedNow) {
		t.Errorf("expected last saved stamped by store clock, got %v", d.LastSaved)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(NewMemoryRepo(), nil)
	g, _, _ := admissionForms(t)
	if _, err := store.Load(context.Background(), "ws1", g); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}
}

func TestStore_LoadMalformedIsLogged(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	var logs bytes.Buffer
	store := newTestStore(repo, &logs)
	g, _, _ := admissionForms(t)
	_ = repo.Put(ctx, &Entry{Workspace: "ws1", Key: g.Key, Payload: []byte("{oops"), SavedAt: fixedNow})

	if _, err := store.Load(ctx, "ws1", g); !errors.Is(err, ErrMalformedDraft) {
		t.Fatalf("expected ErrMalformedDraft, got %v", err)
	}
	if !strings.Contains(logs.String(), `"level":"error"`) {
		t.Errorf("expected an error log line, got %s", logs.String())
	}
}

func TestStore_ClearAbsentIsNoop(t *testing.T) {
	store := newTestStore(NewMemoryRepo(), nil)
	g, _, _ := admissionForms(t)
	if err := store.Clear(context.Background(), "ws1", g); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(NewMemoryRepo(), nil)
	g, surg, clin := admissionForms(t)
	mustSet(t, surg, "idade", "54")
	_ = store.Save(ctx, "ws1", g, surg, clin)
	mustSet(t, surg, "idade", "55")
	_ = store.Save(ctx, "ws1", g, surg, clin)

	d, err := store.Load(ctx, "ws1", g)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Record.Get("idade") != "55" {
		t.Errorf("expected latest save, got %q", d.Record.Get("idade"))
	}
}

func TestStore_ListNamesGroups(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(NewMemoryRepo(), nil)
	cat := form.DefaultCatalog()
	adm, _ := cat.Group("admission")
	reav, _ := cat.Group("reassessment")
	schema, _ := cat.Form("reassessment")

	store.SetClock(func() time.Time { return fixedNow })
	_ = store.Put(ctx, "ws1", adm, &Draft{Record: form.Record{}})
	store.SetClock(func() time.Time { return fixedNow.Add(time.Minute) })
	_ = store.Save(ctx, "ws1", reav, form.NewState(schema, fixedClock))
	_ = store.Put(ctx, "ws2", adm, &Draft{Record: form.Record{}})

	items, total, err := store.List(ctx, "ws1", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 drafts, got %d/%d", len(items), total)
	}
	if items[0].Group != "reassessment" || items[1].Group != "admission" {
		t.Errorf("expected newest first, got %s then %s", items[0].Group, items[1].Group)
	}
	if items[0].Size == 0 {
		t.Error("expected payload size")
	}
}

type recordingPublisher struct{ events []websocket.Event }

func (p *recordingPublisher) Publish(_ context.Context, ev websocket.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func TestStore_PublishesSaveAndClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(NewMemoryRepo(), nil)
	pub := &recordingPublisher{}
	store.SetPublisher(pub)
	g, surg, clin := admissionForms(t)

	if err := store.Save(ctx, "ws1", g, surg, clin); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx, "ws1", g); err != nil {
		t.Fatalf("clear: %v", err)
	}

	want := []websocket.Event{
		{Type: websocket.EventDraftSaved, Workspace: "ws1", Group: g.Name, At: fixedNow.UTC()},
		{Type: websocket.EventDraftCleared, Workspace: "ws1", Group: g.Name, At: fixedNow.UTC()},
	}
	if len(pub.events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), pub.events)
	}
	for i := range want {
		if pub.events[i] != want[i] {
			t.Errorf("event %d: got %+v, want %+v", i, pub.events[i], want[i])
		}
	}
}
