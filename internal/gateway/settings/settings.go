// Package settings resolves the taxonomy endpoint credentials: a persisted
// user override takes precedence over the process defaults.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// ErrUnconfigured means the endpoint URL or key is missing and must be
	// supplied before any taxonomy operation.
	ErrUnconfigured = errors.New("settings: taxonomy endpoint is not configured")
	ErrInvalid      = errors.New("settings: both API URL and API key are required")
)

const (
	keyURL = "api_url"
	keyKey = "api_key"

	SourceOverride = "override"
	SourceDefault  = "default"
)

// Endpoint addresses the remote taxonomy sheet.
type Endpoint struct {
	URL    string `json:"api_url"`
	APIKey string `json:"api_key"`
}

func (e Endpoint) complete() bool {
	return strings.TrimSpace(e.URL) != "" && strings.TrimSpace(e.APIKey) != ""
}

// View is what a settings screen may show. The key is never returned whole.
type View struct {
	URL        string `json:"api_url"`
	URLSource  string `json:"api_url_source,omitempty"`
	MaskedKey  string `json:"api_key_masked,omitempty"`
	KeySource  string `json:"api_key_source,omitempty"`
	Configured bool   `json:"configured"`
}

// Service holds the override file and the defaults. Safe for concurrent use.
type Service struct {
	mu        sync.RWMutex
	path      string
	defaults  Endpoint
	override  Endpoint
	callbacks []func(Endpoint)
	log       *zap.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New loads the override file at path if it exists. An empty path keeps
// overrides in memory only.
func New(path string, defaults Endpoint, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		path:     strings.TrimSpace(path),
		defaults: trim(defaults),
		log:      log,
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if s.path != "" {
		v.SetConfigFile(s.path)
		if _, err := os.Stat(s.path); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read settings %s: %w", s.path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat settings %s: %w", s.path, err)
		}
	}
	s.override = fromViper(v)
	return s, nil
}

func trim(e Endpoint) Endpoint {
	return Endpoint{URL: strings.TrimSpace(e.URL), APIKey: strings.TrimSpace(e.APIKey)}
}

func fromViper(v *viper.Viper) Endpoint {
	return trim(Endpoint{URL: v.GetString(keyURL), APIKey: v.GetString(keyKey)})
}

func (s *Service) effective() Endpoint {
	out := s.defaults
	if s.override.URL != "" {
		out.URL = s.override.URL
	}
	if s.override.APIKey != "" {
		out.APIKey = s.override.APIKey
	}
	return out
}

// Resolve returns the effective endpoint or ErrUnconfigured.
func (s *Service) Resolve() (Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.effective()
	if !e.complete() {
		return Endpoint{}, ErrUnconfigured
	}
	return e, nil
}

func (s *Service) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.effective()
	v := View{URL: e.URL, MaskedKey: mask(e.APIKey), Configured: e.complete()}
	v.URLSource = source(s.override.URL, s.defaults.URL)
	v.KeySource = source(s.override.APIKey, s.defaults.APIKey)
	return v
}

func source(override, def string) string {
	switch {
	case override != "":
		return SourceOverride
	case def != "":
		return SourceDefault
	}
	return ""
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// Update stores a new override and persists it. Both values are required.
func (s *Service) Update(e Endpoint) error {
	e = trim(e)
	if !e.complete() {
		return ErrInvalid
	}
	s.mu.Lock()
	if err := s.persistLocked(e); err != nil {
		s.mu.Unlock()
		return err
	}
	s.override = e
	eff := s.effective()
	callbacks := append([]func(Endpoint){}, s.callbacks...)
	s.mu.Unlock()

	s.log.Info("settings: override updated", zap.String("api_url", e.URL))
	for _, fn := range callbacks {
		fn(eff)
	}
	return nil
}

// Clear drops the override and falls back to the defaults.
func (s *Service) Clear() error {
	s.mu.Lock()
	if err := s.persistLocked(Endpoint{}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.override = Endpoint{}
	eff := s.effective()
	callbacks := append([]func(Endpoint){}, s.callbacks...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(eff)
	}
	return nil
}

// persistLocked writes e through a scratch viper. The watcher sees the
// write; reload finds the override unchanged and stays quiet.
func (s *Service) persistLocked(e Endpoint) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	w := viper.New()
	w.SetConfigType("yaml")
	w.Set(keyURL, e.URL)
	w.Set(keyKey, e.APIKey)
	if err := w.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	return nil
}

// OnChange registers fn to run with the effective endpoint after every
// update or reload.
func (s *Service) OnChange(fn func(Endpoint)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Watch reloads the override file when it changes on disk until Close.
// The directory is watched so editors that replace the file are seen.
func (s *Service) Watch() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watcher = w
	s.done = make(chan struct{})
	go s.watchLoop(w, s.done)
	return nil
}

func (s *Service) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	target := filepath.Clean(s.path)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			s.reload(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warn("settings: watch error", zap.Error(err))
		}
	}
}

// Close stops the watcher started by Watch and waits for it to exit.
func (s *Service) Close() error {
	s.mu.Lock()
	w, done := s.watcher, s.done
	s.watcher, s.done = nil, nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	err := w.Close()
	<-done
	return err
}

// reload reads the file into a scratch viper so a half-written file never
// touches the loaded one.
func (s *Service) reload(name string) {
	r := viper.New()
	r.SetConfigFile(s.path)
	r.SetConfigType("yaml")
	if err := r.ReadInConfig(); err != nil {
		s.log.Warn("settings: reload failed", zap.String("file", name), zap.Error(err))
		return
	}
	next := fromViper(r)

	s.mu.Lock()
	if next == s.override {
		s.mu.Unlock()
		return
	}
	s.override = next
	eff := s.effective()
	callbacks := append([]func(Endpoint){}, s.callbacks...)
	s.mu.Unlock()

	s.log.Info("settings: reloaded", zap.String("file", name))
	for _, fn := range callbacks {
		fn(eff)
	}
}
