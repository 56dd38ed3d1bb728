package prompt

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/taxonomy"
)

var ErrUnknownSegment = errors.New("prompt: unknown segment")

// Session holds one user's composition state. A manual edit to a segment
// survives recomputes until the selection controlling that segment changes;
// for the consistency segment that is any toggle change. A refined prompt
// replaces all segments until the next selection or toggle change.
type Session struct {
	mu      sync.Mutex
	cat     *catalog.Catalog
	sel     Selections
	opts    Options
	edits   map[string]string
	refined *string
}

func NewSession(cat *catalog.Catalog) *Session {
	return &Session{
		cat:   cat,
		sel:   Selections{},
		opts:  DefaultOptions(),
		edits: map[string]string{},
	}
}

// Select sets the change selection of a category.
func (s *Session) Select(category string, items ...taxonomy.Item) (Result, error) {
	if len(items) == 0 {
		return s.Clear(category)
	}
	return s.set(category, Change(items...))
}

// Remove sets the remove marker.
func (s *Session) Remove(category string) (Result, error) {
	return s.set(category, Remove())
}

// Clear returns the category to keep.
func (s *Session) Clear(category string) (Result, error) {
	return s.set(category, Selection{Kind: KindKeep})
}

func (s *Session) set(category string, next Selection) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validateOne(s.cat, category, next); err != nil {
		return Result{}, err
	}
	prev, had := s.sel[category]
	if !had {
		prev = Selection{Kind: KindKeep}
	}
	if !prev.equal(next) {
		delete(s.edits, category)
		s.refined = nil
	}
	if next.Kind == KindKeep {
		delete(s.sel, category)
	} else {
		s.sel[category] = next
	}
	return s.render(), nil
}

// SetOptions updates the consistency toggles.
func (s *Session) SetOptions(opts Options) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts != s.opts {
		delete(s.edits, ConsistencySegmentID)
		s.refined = nil
		s.opts = opts
	}
	return s.render()
}

// EditSegment overrides the text of a visible segment.
func (s *Session) EditSegment(id, text string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refined != nil {
		if id != RefinedSegmentID {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownSegment, id)
		}
		s.refined = &text
		return s.render(), nil
	}
	found := false
	for _, seg := range Compose(s.cat, s.sel, s.opts).Segments {
		if seg.ID == id {
			found = true
			break
		}
	}
	if !found {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSegment, id)
	}
	s.edits[id] = text
	return s.render(), nil
}

// ApplyRefined replaces the prompt by refined model output.
func (s *Session) ApplyRefined(text string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	text = strings.TrimSpace(text)
	s.refined = &text
	return s.render()
}

// Reset restores the defaults and drops every edit.
func (s *Session) Reset() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = Selections{}
	s.opts = DefaultOptions()
	s.edits = map[string]string{}
	s.refined = nil
	return s.render()
}

func (s *Session) Snapshot() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

func (s *Session) Selections() Selections {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Clone()
}

func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func (s *Session) render() Result {
	if s.refined != nil {
		seg := Segment{ID: RefinedSegmentID, Label: "Refined", Text: *s.refined, Mode: ModeRefined}
		return Result{Text: strings.TrimSpace(*s.refined), Segments: []Segment{seg}}
	}
	res := Compose(s.cat, s.sel, s.opts)
	if len(s.edits) == 0 {
		return res
	}
	for i, seg := range res.Segments {
		if text, ok := s.edits[seg.ID]; ok {
			res.Segments[i].Text = text
			res.Segments[i].Mode = ModeCustom
		}
	}
	res.Text = Join(res.Segments)
	return res
}
