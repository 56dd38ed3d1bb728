// Package taxonomy owns the shared editable working copy of the taxonomy
// and persists it through the configured store.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/events"
	"promptbuilder/internal/gateway/repository/snapshot"
	taxonomyrepo "promptbuilder/internal/gateway/repository/taxonomy"
	model "promptbuilder/internal/taxonomy"
)

var (
	ErrUnknownCategory = errors.New("taxonomy: unknown category")
	// ErrNotLoaded means the working copy does not come from the current
	// store, so a wholesale save would overwrite it with foreign data.
	ErrNotLoaded = errors.New("taxonomy: nothing loaded to save")
)

type SaveObserver interface {
	ObserveSave(err error)
}

type Deps struct {
	Catalog   *catalog.Catalog
	Store     taxonomyrepo.Store
	Snapshots snapshot.Store
	Events    events.Publisher
	Metrics   SaveObserver
	Log       *zap.Logger

	// KeepSnapshots bounds the archive; zero keeps every snapshot.
	KeepSnapshots int
}

// SaveResult describes a completed save.
type SaveResult struct {
	RequestID string
	Items     int
	Snapshot  string
	SavedAt   time.Time
}

type Service struct {
	deps   Deps
	handle *model.Handle
	loads  singleflight.Group
	now    func() time.Time

	loaded atomic.Bool
	// gen counts invalidations; a load started before one does not mark
	// the working copy as loaded.
	gen atomic.Uint64
}

func New(d Deps) (*Service, error) {
	if d.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if d.Store == nil {
		return nil, fmt.Errorf("taxonomy store is required")
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Service{
		deps:   d,
		handle: model.NewHandle(d.Catalog.IDs()),
		now:    time.Now,
	}, nil
}

// SetClock is used by tests to pin generated ids and timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.handle.SetClock(now)
}

// Load replaces the working copy with the store's data. Concurrent calls
// share one fetch.
func (s *Service) Load(ctx context.Context) (model.Data, error) {
	_, err, shared := s.loads.Do("load", func() (any, error) {
		gen := s.gen.Load()
		data, err := s.deps.Store.Load(ctx)
		if err != nil {
			return nil, err
		}
		s.handle.Replace(data)
		if s.gen.Load() == gen {
			s.loaded.Store(true)
		}
		return nil, nil
	})
	if err != nil {
		s.deps.Log.Warn("taxonomy: load failed", zap.Error(err))
		return nil, err
	}
	if !shared {
		s.deps.Log.Info("taxonomy: loaded", zap.Int("items", s.handle.Status().Items))
	}
	return s.handle.Snapshot(), nil
}

// Invalidate forgets that the working copy was loaded. The next read
// reloads it and Save refuses until then. Called when the store endpoint
// changes.
func (s *Service) Invalidate() {
	s.gen.Add(1)
	if s.loaded.Swap(false) {
		s.deps.Log.Info("taxonomy: store changed, working copy will reload")
	}
}

// Ensure loads once on first use.
func (s *Service) Ensure(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}
	_, err := s.Load(ctx)
	return err
}

func (s *Service) Get(ctx context.Context) (model.Data, error) {
	if err := s.Ensure(ctx); err != nil {
		return nil, err
	}
	return s.handle.Snapshot(), nil
}

func (s *Service) checkCategory(category string) error {
	if _, ok := s.deps.Catalog.Lookup(strings.TrimSpace(category)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return nil
}

func (s *Service) Upsert(ctx context.Context, it model.Item) (model.Item, error) {
	if err := s.Ensure(ctx); err != nil {
		return model.Item{}, err
	}
	if strings.TrimSpace(it.Category) != "" {
		if err := s.checkCategory(it.Category); err != nil {
			return model.Item{}, err
		}
	}
	return s.handle.Upsert(it)
}

func (s *Service) Delete(ctx context.Context, category, id string) error {
	if err := s.Ensure(ctx); err != nil {
		return err
	}
	return s.handle.Delete(category, id)
}

// Reorder reports whether the item moved; out-of-range moves are no-ops.
func (s *Service) Reorder(ctx context.Context, category string, index int, dir model.Direction) (bool, error) {
	if err := s.Ensure(ctx); err != nil {
		return false, err
	}
	if err := s.checkCategory(category); err != nil {
		return false, err
	}
	return s.handle.Reorder(category, index, dir), nil
}

func (s *Service) Duplicate(ctx context.Context, category, id string) (model.Item, error) {
	if err := s.Ensure(ctx); err != nil {
		return model.Item{}, err
	}
	return s.handle.Duplicate(category, id)
}

func (s *Service) Status() model.Status {
	return s.handle.Status()
}

// Save writes the full working copy. After the store accepts it, a snapshot
// is archived and a change event published; failures there are logged only.
func (s *Service) Save(ctx context.Context) (SaveResult, error) {
	if !s.loaded.Load() {
		return SaveResult{}, ErrNotLoaded
	}
	res := SaveResult{RequestID: uuid.NewString()}
	var written []model.Item
	err := s.handle.Save(ctx, model.SaverFunc(func(ctx context.Context, items []model.Item) error {
		written = items
		return s.deps.Store.Save(ctx, items)
	}))
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveSave(err)
	}
	log := s.deps.Log.With(zap.String("request_id", res.RequestID))
	if err != nil {
		log.Warn("taxonomy: save failed", zap.Error(err))
		return res, err
	}
	res.Items = len(written)
	res.SavedAt = s.now()
	res.Snapshot = s.archive(ctx, log, written, res)

	ev := events.TaxonomySaved{RequestID: res.RequestID, Items: res.Items, Snapshot: res.Snapshot, SavedAt: res.SavedAt}
	if err := s.deps.Events.PublishTaxonomySaved(ctx, ev); err != nil {
		log.Warn("taxonomy: publish failed", zap.Error(err))
	}
	log.Info("taxonomy: saved", zap.Int("items", res.Items))
	return res, nil
}

func (s *Service) archive(ctx context.Context, log *zap.Logger, items []model.Item, res SaveResult) string {
	if s.deps.Snapshots == nil {
		return ""
	}
	raw, err := model.EncodeItems(items)
	if err != nil {
		log.Warn("taxonomy: encode snapshot", zap.Error(err))
		return ""
	}
	name := snapshot.Name(res.SavedAt, res.RequestID)
	if err := s.deps.Snapshots.Put(ctx, name, raw); err != nil {
		log.Warn("taxonomy: snapshot failed", zap.Error(err))
		return ""
	}
	if n, err := snapshot.Prune(ctx, s.deps.Snapshots, s.deps.KeepSnapshots); err != nil {
		log.Warn("taxonomy: snapshot prune failed", zap.Error(err))
	} else if n > 0 {
		log.Debug("taxonomy: pruned snapshots", zap.Int("removed", n))
	}
	return name
}

// Snapshots lists archived saves, newest first.
func (s *Service) Snapshots(ctx context.Context) ([]snapshot.Info, error) {
	if s.deps.Snapshots == nil {
		return nil, nil
	}
	return s.deps.Snapshots.List(ctx)
}

// Restore loads an archived save into the working copy as unsaved edits.
func (s *Service) Restore(ctx context.Context, name string) (model.Data, error) {
	if s.deps.Snapshots == nil {
		return nil, snapshot.ErrNotFound
	}
	raw, err := s.deps.Snapshots.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	items, err := model.DecodeItems(raw)
	if err != nil {
		return nil, err
	}
	s.handle.Restore(model.Group(items))
	s.loaded.Store(true)
	return s.handle.Snapshot(), nil
}
