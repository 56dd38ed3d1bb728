package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"promptbuilder/internal/catalog"
	"promptbuilder/internal/gateway/config"
	"promptbuilder/internal/gateway/handler/rpc"
	"promptbuilder/internal/gateway/server"
	promptsvc "promptbuilder/internal/gateway/service/prompt"
	taxonomysvc "promptbuilder/internal/gateway/service/taxonomy"
	"promptbuilder/internal/gateway/settings"
	"promptbuilder/internal/llm"
	llmclient "promptbuilder/internal/llmClient"
	"promptbuilder/internal/metrics"
	"promptbuilder/internal/refine"
)

type App struct {
	server   *server.Server
	stores   *gatewayStores
	taxonomy *taxonomysvc.Service
	models   aiModels
	log      *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := metrics.New()
	cat := catalog.Default()

	// Dependencies
	set, err := settings.New(cfg.Taxonomy.SettingsPath, settings.Endpoint{URL: cfg.Taxonomy.APIURL, APIKey: cfg.Taxonomy.APIKey}, log.Named("settings"))
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := set.Watch(); err != nil {
		log.Warn("settings: watch disabled", zap.Error(err))
	}

	stores, err := initStores(ctx, cfg, set, log.Named("store"))
	if err != nil {
		_ = set.Close()
		return nil, err
	}
	stores.closers = append([]func() error{set.Close}, stores.closers...)

	models, err := initModels(ctx, cfg.AI, m, log.Named("llm"))
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	refineOpts := []refine.Option{refine.WithLogger(log.Named("refine")), refine.WithRecorder(m)}
	analyzer, err := refine.NewAnalyzer(cat, models.primary, models.analyzeFallback, refineOpts...)
	if err != nil {
		models.close()
		_ = stores.Close()
		return nil, fmt.Errorf("failed to build analyzer: %w", err)
	}

	taxSvc, err := taxonomysvc.New(taxonomysvc.Deps{
		Catalog:       cat,
		Store:         stores.taxonomy,
		Snapshots:     stores.snapshots,
		KeepSnapshots: cfg.Snapshot.Keep,
		Events:        stores.events,
		Metrics:       m,
		Log:           log.Named("taxonomy"),
	})
	if err != nil {
		models.close()
		_ = stores.Close()
		return nil, err
	}
	// Registered after the cache invalidation in initStores, so the reload
	// reaches the new endpoint.
	set.OnChange(func(settings.Endpoint) { taxSvc.Invalidate() })

	promptSvc, err := promptsvc.New(promptsvc.Deps{
		Catalog:     cat,
		Taxonomy:    taxSvc,
		Refiner:     refine.NewRefiner(models.primary, models.fallback, refineOpts...),
		Analyzer:    analyzer,
		MaxSessions: cfg.MaxSessions,
		Gauge:       m,
		Log:         log.Named("prompt"),
	})
	if err != nil {
		models.close()
		_ = stores.Close()
		return nil, err
	}

	// Routing & Server
	mux := server.NewMux(server.Handlers{
		Prompt:   rpc.NewPromptHandler(promptSvc),
		Taxonomy: rpc.NewTaxonomyHandler(taxSvc),
		Settings: rpc.NewSettingsHandler(set),
		Compose:  rpc.NewComposeHandler(promptSvc, log.Named("ws"), cfg.AllowedOrigins...),
		Metrics:  m.Handler(),
		Observer: m,
		Ready:    stores.ready,
		Origins:  cfg.AllowedOrigins,
	}, log.Named("http"))

	return &App{
		server:   server.New(cfg.Port, mux, log.Named("server")),
		stores:   stores,
		taxonomy: taxSvc,
		models:   models,
		log:      log,
	}, nil
}

// aiModels are the wrapped provider clients. All are nil when AI is off.
type aiModels struct {
	primary         llmclient.Client
	fallback        llmclient.Client
	analyzeFallback llmclient.Client
}

func (m aiModels) all() []llmclient.Client {
	var out []llmclient.Client
	for _, c := range []llmclient.Client{m.primary, m.fallback, m.analyzeFallback} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (m aiModels) close() {
	for _, c := range m.all() {
		_ = c.Close()
	}
}

// initModels returns nil clients when AI is off; the services then report
// AI as unavailable instead of failing.
func initModels(ctx context.Context, cfg config.AIConfig, m *metrics.Metrics, log *zap.Logger) (aiModels, error) {
	if !cfg.Enabled {
		log.Info("AI features disabled")
		return aiModels{}, nil
	}
	if cfg.APIKey == "" && cfg.Provider != llmclient.ProviderFake {
		log.Warn("AI features disabled: no API key configured", zap.String("provider", cfg.Provider))
		return aiModels{}, nil
	}
	pc := llmclient.ProviderConfig{Provider: cfg.Provider, APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}
	mws := []llm.Middleware{llm.WithTimeout(cfg.Timeout), llm.WithLogging(log), llm.WithMetrics(m)}

	var out aiModels
	for _, spec := range []struct {
		role  string
		model string
		dst   *llmclient.Client
	}{
		{"primary", cfg.PrimaryModel, &out.primary},
		{"fallback", cfg.FallbackModel, &out.fallback},
		{"analyze fallback", cfg.AnalyzeFallbackModel, &out.analyzeFallback},
	} {
		c, err := llmclient.New(ctx, pc, spec.model)
		if err != nil {
			out.close()
			return aiModels{}, fmt.Errorf("failed to build %s model client: %w", spec.role, err)
		}
		*spec.dst = llm.Wrap(c, mws...)
	}
	log.Info("AI features enabled",
		zap.String("provider", cfg.Provider),
		zap.String("primary", cfg.PrimaryModel),
		zap.String("fallback", cfg.FallbackModel),
		zap.String("analyze_fallback", cfg.AnalyzeFallbackModel))
	return out, nil
}

func (s *gatewayStores) ready() error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping()
}

// Run serves until ctx ends or the server fails. The taxonomy is loaded in
// the background so a slow sheet does not delay the listener.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Start)
	g.Go(func() error {
		if err := a.taxonomy.Ensure(gctx); err != nil {
			a.log.Warn("initial taxonomy load failed", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	for _, c := range a.models.all() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.stores.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Handler exposes the fully wired root handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }
