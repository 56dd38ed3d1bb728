package taxonomy

import (
	"context"
	"errors"
	"sync"
	"time"
)

// PersistState tracks whether local edits have reached the store.
type PersistState string

const (
	StateClean  PersistState = "clean"
	StateDirty  PersistState = "dirty"
	StateSaving PersistState = "saving"
)

var ErrSaveInProgress = errors.New("taxonomy: save already in progress")

// Saver writes the full item set.
type Saver interface {
	Save(ctx context.Context, items []Item) error
}

type SaverFunc func(ctx context.Context, items []Item) error

func (f SaverFunc) Save(ctx context.Context, items []Item) error { return f(ctx, items) }

// Status is a point-in-time view of a Handle.
type Status struct {
	State     PersistState
	Items     int
	LastError string
	SavedAt   time.Time
}

// Handle owns the local working copy of the taxonomy. All methods are safe
// for concurrent use; mutations are applied to a fresh copy so readers never
// observe partial updates.
type Handle struct {
	mu      sync.Mutex
	data    Data
	state   PersistState
	version uint64
	lastErr string
	savedAt time.Time
	order   []string
	now     func() time.Time
}

// NewHandle creates an empty clean handle. categoryOrder fixes the order in
// which Flatten emits categories on save.
func NewHandle(categoryOrder []string) *Handle {
	return &Handle{
		data:  Data{},
		state: StateClean,
		order: append([]string(nil), categoryOrder...),
		now:   time.Now,
	}
}

// SetClock overrides the clock used for new item ids.
func (h *Handle) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Replace installs freshly loaded data and marks the handle clean.
func (h *Handle) Replace(d Data) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = sortedCopy(d)
	h.state = StateClean
	h.lastErr = ""
	h.version++
}

// Restore installs d as unsaved local edits, e.g. an older snapshot.
func (h *Handle) Restore(d Data) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commit(sortedCopy(d))
}

func sortedCopy(d Data) Data {
	next := Data{}
	for cat, items := range d {
		next[cat] = Sorted(items)
	}
	return next
}

// Snapshot returns a deep copy of the working data.
func (h *Handle) Snapshot() Data {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data.Clone()
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{State: h.state, Items: h.data.Len(), LastError: h.lastErr, SavedAt: h.savedAt}
}

func (h *Handle) commit(d Data) {
	h.data = d
	h.version++
	if h.state != StateSaving {
		h.state = StateDirty
	}
}

func (h *Handle) Upsert(it Item) (Item, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, saved, err := Upsert(h.data, it, h.now())
	if err != nil {
		return Item{}, err
	}
	h.commit(next)
	return saved, nil
}

func (h *Handle) Delete(category, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, err := Delete(h.data, category, id)
	if err != nil {
		return err
	}
	h.commit(next)
	return nil
}

// Reorder reports whether anything moved.
func (h *Handle) Reorder(category string, index int, dir Direction) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, moved := Reorder(h.data, category, index, dir)
	if moved {
		h.commit(next)
	}
	return moved
}

// Duplicate returns a draft copy; the handle is not modified.
func (h *Handle) Duplicate(category, id string) (Item, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return DuplicateDraft(h.data, category, id)
}

// Save writes every item through s. While the write is pending the state is
// saving; edits made meanwhile leave the handle dirty afterwards. On failure
// the local data is kept and the handle returns to dirty.
func (h *Handle) Save(ctx context.Context, s Saver) error {
	h.mu.Lock()
	if h.state == StateSaving {
		h.mu.Unlock()
		return ErrSaveInProgress
	}
	items := h.data.Flatten(h.order)
	started := h.version
	h.state = StateSaving
	h.mu.Unlock()

	err := s.Save(ctx, items)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.lastErr = err.Error()
		h.state = StateDirty
		return err
	}
	h.lastErr = ""
	h.savedAt = h.now()
	if h.version == started {
		h.state = StateClean
	} else {
		h.state = StateDirty
	}
	return nil
}
