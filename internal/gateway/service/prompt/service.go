// Package prompt serves composition, refinement, image analysis and live
// compose sessions on top of the shared taxonomy.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/prompt"
	"promptbuilder/internal/refine"
	model "promptbuilder/internal/taxonomy"
)

const DefaultMaxSessions = 256

var ErrUnknownSession = errors.New("prompt: unknown session")

// TaxonomySource yields the current working taxonomy.
type TaxonomySource interface {
	Get(ctx context.Context) (model.Data, error)
}

type SessionGauge interface {
	SetSessions(n int)
}

type Deps struct {
	Catalog     *catalog.Catalog
	Taxonomy    TaxonomySource
	Refiner     *refine.Refiner
	Analyzer    *refine.Analyzer
	MaxSessions int
	Gauge       SessionGauge
	Log         *zap.Logger
}

type Service struct {
	deps     Deps
	sessions *lru.Cache[string, *prompt.Session]
}

func New(d Deps) (*Service, error) {
	if d.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if d.Taxonomy == nil {
		return nil, fmt.Errorf("taxonomy source is required")
	}
	if d.MaxSessions <= 0 {
		d.MaxSessions = DefaultMaxSessions
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	sessions, err := lru.New[string, *prompt.Session](d.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &Service{deps: d, sessions: sessions}, nil
}

func (s *Service) Catalog() *catalog.Catalog { return s.deps.Catalog }

// AIEnabled reports whether refine and analyze have a primary model.
func (s *Service) AIEnabled() bool {
	return s.deps.Refiner.Enabled()
}

// Compose resolves item ids against the taxonomy and renders the prompt.
func (s *Service) Compose(ctx context.Context, choices map[string][]string, opts prompt.Options) (prompt.Result, error) {
	sel, err := s.resolve(ctx, choices)
	if err != nil {
		return prompt.Result{}, err
	}
	return prompt.Compose(s.deps.Catalog, sel, opts), nil
}

func (s *Service) resolve(ctx context.Context, choices map[string][]string) (prompt.Selections, error) {
	var data model.Data
	if needsItems(choices) {
		d, err := s.deps.Taxonomy.Get(ctx)
		if err != nil {
			return nil, err
		}
		data = d
	}
	return prompt.Resolve(s.deps.Catalog, data, choices)
}

func needsItems(choices map[string][]string) bool {
	for _, ids := range choices {
		for _, id := range ids {
			if id != prompt.RemoveID {
				return true
			}
		}
	}
	return false
}

func (s *Service) Refine(ctx context.Context, text string) (refine.Result, error) {
	return s.deps.Refiner.Refine(ctx, text)
}

func (s *Service) Analyze(ctx context.Context, image []byte, mimeType string) (refine.AnalysisResult, error) {
	return s.deps.Analyzer.Analyze(ctx, image, mimeType)
}

// OpenSession starts a live compose session. The least recently used
// session is dropped once MaxSessions is reached.
func (s *Service) OpenSession() (string, *prompt.Session) {
	id := uuid.NewString()
	sess := prompt.NewSession(s.deps.Catalog)
	s.sessions.Add(id, sess)
	s.updateGauge()
	s.deps.Log.Debug("prompt: session opened", zap.String("session_id", id))
	return id, sess
}

func (s *Service) Session(id string) (*prompt.Session, error) {
	sess, ok := s.sessions.Get(strings.TrimSpace(id))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return sess, nil
}

func (s *Service) CloseSession(id string) {
	s.sessions.Remove(strings.TrimSpace(id))
	s.updateGauge()
}

func (s *Service) SessionCount() int {
	return s.sessions.Len()
}

func (s *Service) updateGauge() {
	if s.deps.Gauge != nil {
		s.deps.Gauge.SetSessions(s.sessions.Len())
	}
}

// SelectInSession applies ids to one category of a session: an empty list
// keeps it, a lone remove marker removes it, anything else changes it.
func (s *Service) SelectInSession(ctx context.Context, sessionID, category string, ids []string) (prompt.Result, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return prompt.Result{}, err
	}
	sel, err := s.resolve(ctx, map[string][]string{category: ids})
	if err != nil {
		return prompt.Result{}, err
	}
	choice, ok := sel[category]
	if !ok {
		return sess.Clear(category)
	}
	switch choice.Kind {
	case prompt.KindRemove:
		return sess.Remove(category)
	case prompt.KindChange:
		return sess.Select(category, choice.Items...)
	}
	return sess.Clear(category)
}
