package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/events"
	"promptbuilder/internal/gateway/repository/snapshot"
	taxonomyrepo "promptbuilder/internal/gateway/repository/taxonomy"
	"promptbuilder/internal/gateway/settings"
	model "promptbuilder/internal/taxonomy"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TaxonomySaved
}

func (p *recordingPublisher) PublishTaxonomySaved(_ context.Context, ev events.TaxonomySaved) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type saveCounter struct{ ok, failed int }

func (c *saveCounter) ObserveSave(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

type failingStore struct {
	taxonomyrepo.Store
	err error
}

func (f failingStore) Save(context.Context, []model.Item) error { return f.err }

func seed() []model.Item {
	return []model.Item{
		{ID: "d1", Category: "dress_colour", Label: "Red", PromptText: "a red dress", Order: model.OrderOf(0)},
		{ID: "d2", Category: "dress_colour", Label: "Blue", PromptText: "a blue dress", Order: model.OrderOf(1)},
	}
}

func newService(t *testing.T, store taxonomyrepo.Store) (*Service, *recordingPublisher, *snapshot.MemoryStore, *saveCounter) {
	t.Helper()
	pub := &recordingPublisher{}
	snaps := snapshot.NewMemoryStore()
	counter := &saveCounter{}
	svc, err := New(Deps{Catalog: catalog.Default(), Store: store, Snapshots: snaps, Events: pub, Metrics: counter})
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) })
	return svc, pub, snaps, counter
}

func TestSaveArchivesAndPublishes(t *testing.T) {
	store := taxonomyrepo.NewMemoryStore(seed())
	svc, pub, snaps, counter := newService(t, store)
	ctx := context.Background()

	data, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Len(t, data["dress_colour"], 2)
	require.Equal(t, model.StateClean, svc.Status().State)

	created, err := svc.Upsert(ctx, model.Item{Category: "dress_colour", Label: "Green", PromptText: "a green dress"})
	require.NoError(t, err)
	require.Equal(t, 2, *created.Order)
	require.Equal(t, model.StateDirty, svc.Status().State)

	res, err := svc.Save(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, res.Items)
	require.Equal(t, model.StateClean, svc.Status().State)
	require.Equal(t, 1, store.Saves())
	require.Equal(t, 1, counter.ok)

	require.Len(t, pub.events, 1)
	require.Equal(t, res.RequestID, pub.events[0].RequestID)

	infos, err := svc.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, res.Snapshot, infos[0].Name)

	raw, err := snaps.Get(ctx, res.Snapshot)
	require.NoError(t, err)
	items, err := model.DecodeItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestSaveFailureKeepsDirty(t *testing.T) {
	boom := &taxonomyrepo.RemoteError{Status: 403, Message: "Invalid API key"}
	store := failingStore{Store: taxonomyrepo.NewMemoryStore(seed()), err: boom}
	svc, pub, _, counter := newService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "dress_colour", "d1"))
	_, err := svc.Save(ctx)
	var remote *taxonomyrepo.RemoteError
	require.True(t, errors.As(err, &remote))

	st := svc.Status()
	require.Equal(t, model.StateDirty, st.State)
	require.Equal(t, "Invalid API key", st.LastError)
	require.Equal(t, 1, st.Items)
	require.Empty(t, pub.events)
	require.Equal(t, 1, counter.failed)
}

func TestReorderAndDuplicate(t *testing.T) {
	svc, _, _, _ := newService(t, taxonomyrepo.NewMemoryStore(seed()))
	ctx := context.Background()

	moved, err := svc.Reorder(ctx, "dress_colour", 1, model.Up)
	require.NoError(t, err)
	require.True(t, moved)
	data, _ := svc.Get(ctx)
	require.Equal(t, "Blue", data["dress_colour"][0].Label)

	moved, err = svc.Reorder(ctx, "dress_colour", 0, model.Up)
	require.NoError(t, err)
	require.False(t, moved)

	_, err = svc.Reorder(ctx, "nope", 0, model.Up)
	require.ErrorIs(t, err, ErrUnknownCategory)

	draft, err := svc.Duplicate(ctx, "dress_colour", "d1")
	require.NoError(t, err)
	require.Equal(t, "Red Copy", draft.Label)
	require.Empty(t, draft.ID)
}

func TestUpsertRejectsUnknownCategory(t *testing.T) {
	svc, _, _, _ := newService(t, taxonomyrepo.NewMemoryStore(nil))
	_, err := svc.Upsert(context.Background(), model.Item{Category: "spaceship", Label: "X", PromptText: "x"})
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestRestoreSnapshot(t *testing.T) {
	store := taxonomyrepo.NewMemoryStore(seed())
	svc, _, _, _ := newService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Ensure(ctx))
	res, err := svc.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "dress_colour", "d1"))
	_, err = svc.Save(ctx)
	require.NoError(t, err)

	data, err := svc.Restore(ctx, res.Snapshot)
	require.NoError(t, err)
	require.Len(t, data["dress_colour"], 2)
	require.Equal(t, model.StateDirty, svc.Status().State)

	_, err = svc.Restore(ctx, "missing.json")
	require.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestSaveBeforeLoad(t *testing.T) {
	svc, _, _, _ := newService(t, taxonomyrepo.NewMemoryStore(nil))
	_, err := svc.Save(context.Background())
	require.ErrorIs(t, err, ErrNotLoaded)
}

// fakeSheet serves one item labelled label and records the last save.
type fakeSheet struct {
	*httptest.Server
	mu    sync.Mutex
	saved []model.Item
}

func newFakeSheet(t *testing.T, label string) *fakeSheet {
	t.Helper()
	f := &fakeSheet{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			items, err := model.DecodeItems([]byte(r.PostForm.Get("items")))
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			f.saved = items
			f.mu.Unlock()
			fmt.Fprint(w, `{"success":true}`)
			return
		}
		fmt.Fprintf(w, `{"items":[{"id":"%s1","category":"dress_colour","label":"%s","prompt_text":"p","tags":"","order":0}]}`, label, label)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSheet) lastSave() []model.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved
}

func TestEndpointChangeReloadsBeforeSave(t *testing.T) {
	sheetA := newFakeSheet(t, "FromA")
	sheetB := newFakeSheet(t, "FromB")
	set, err := settings.New("", settings.Endpoint{URL: sheetA.URL + "/exec", APIKey: "k"}, nil)
	require.NoError(t, err)

	svc, _, _, _ := newService(t, taxonomyrepo.NewSheetStore(set, nil, nil))
	set.OnChange(func(settings.Endpoint) { svc.Invalidate() })
	ctx := context.Background()

	data, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "FromA", data.Items("dress_colour")[0].Label)

	require.NoError(t, set.Update(settings.Endpoint{URL: sheetB.URL + "/exec", APIKey: "k"}))

	_, err = svc.Save(ctx)
	require.ErrorIs(t, err, ErrNotLoaded)
	require.Nil(t, sheetB.lastSave())

	data, err = svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "FromB", data.Items("dress_colour")[0].Label)

	_, err = svc.Upsert(ctx, model.Item{Category: "dress_colour", Label: "Green", PromptText: "a green dress"})
	require.NoError(t, err)
	_, err = svc.Save(ctx)
	require.NoError(t, err)

	saved := sheetB.lastSave()
	require.Len(t, saved, 2)
	for _, it := range saved {
		require.NotEqual(t, "FromA", it.Label)
	}
	require.Nil(t, sheetA.lastSave())
}

func TestSavePrunesOldSnapshots(t *testing.T) {
	snaps := snapshot.NewMemoryStore()
	svc, err := New(Deps{
		Catalog:       catalog.Default(),
		Store:         taxonomyrepo.NewMemoryStore(seed()),
		Snapshots:     snaps,
		KeepSnapshots: 2,
	})
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, svc.Ensure(ctx))

	var last SaveResult
	for i := 0; i < 4; i++ {
		now = now.Add(time.Minute)
		last, err = svc.Save(ctx)
		require.NoError(t, err)
	}

	infos, err := svc.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, last.Snapshot, infos[0].Name)
}
