package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	taxonomycache "promptbuilder/internal/cache/taxonomy"
	"promptbuilder/internal/events"
	"promptbuilder/internal/gateway/config"
	"promptbuilder/internal/gateway/repository/snapshot"
	taxonomyrepo "promptbuilder/internal/gateway/repository/taxonomy"
	"promptbuilder/internal/gateway/settings"
)

type gatewayStores struct {
	taxonomy  *taxonomycache.CachedStore
	snapshots snapshot.Store
	events    events.Publisher
	db        *sql.DB
	closers   []func() error
}

func initStores(ctx context.Context, cfg *config.Config, set *settings.Service, log *zap.Logger) (*gatewayStores, error) {
	stores := &gatewayStores{}

	origin, err := initTaxonomyOrigin(ctx, cfg, set, stores, log)
	if err != nil {
		return nil, err
	}
	stores.taxonomy = taxonomycache.NewCachedStore(origin, taxonomycache.CacheConfig{TTL: cfg.Taxonomy.CacheTTL})
	// A new endpoint points at a different sheet; the cached copy is stale.
	set.OnChange(func(settings.Endpoint) { stores.taxonomy.Invalidate() })

	snapshots, err := chooseSnapshotStore(cfg, log)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.snapshots = snapshots
	stores.events = initEvents(ctx, cfg, stores, log)
	return stores, nil
}

func initTaxonomyOrigin(ctx context.Context, cfg *config.Config, set *settings.Service, stores *gatewayStores, log *zap.Logger) (taxonomyrepo.Store, error) {
	switch cfg.Taxonomy.Backend {
	case config.BackendMemory:
		log.Info("taxonomy store: in-memory")
		return taxonomyrepo.NewMemoryStore(nil), nil
	case config.BackendPostgres:
		return openSQLStore(ctx, taxonomyrepo.DialectPostgres, cfg.Taxonomy.PostgresDSN, stores, log)
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Taxonomy.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
		}
		return openSQLStore(ctx, taxonomyrepo.DialectSQLite, cfg.Taxonomy.SQLitePath, stores, log)
	}
	log.Info("taxonomy store: remote sheet")
	return taxonomyrepo.NewSheetStore(set, &http.Client{Timeout: 30 * time.Second}, log), nil
}

func openSQLStore(ctx context.Context, d taxonomyrepo.Dialect, dsn string, stores *gatewayStores, log *zap.Logger) (taxonomyrepo.Store, error) {
	db, err := taxonomyrepo.OpenDB(d, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	store := taxonomyrepo.NewSQLStore(db, d)
	err = retry.Do(
		func() error { return store.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("taxonomy store: waiting for database", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach %s: %w", d, err)
	}
	stores.db = db
	stores.closers = append(stores.closers, db.Close)
	log.Info("taxonomy store: sql", zap.String("driver", string(d)))
	return store, nil
}

func chooseSnapshotStore(cfg *config.Config, log *zap.Logger) (snapshot.Store, error) {
	if !cfg.Snapshot.CanUseS3() {
		log.Info("snapshot store: in-memory")
		return snapshot.NewMemoryStore(), nil
	}
	s3Cfg := snapshot.S3Config{
		Endpoint:  cfg.Snapshot.Endpoint,
		Region:    cfg.Snapshot.Region,
		AccessKey: cfg.Snapshot.AccessKey,
		SecretKey: cfg.Snapshot.SecretKey,
		Bucket:    cfg.Snapshot.Bucket,
		UseSSL:    cfg.Snapshot.UseSSL,
	}
	store, err := snapshot.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot s3 store: %w", err)
	}
	log.Info("snapshot store: s3", zap.String("bucket", s3Cfg.Bucket), zap.String("endpoint", s3Cfg.Endpoint))
	return store, nil
}

// initEvents never fails startup: without a broker, saves simply are not
// announced.
func initEvents(ctx context.Context, cfg *config.Config, stores *gatewayStores, log *zap.Logger) events.Publisher {
	if cfg.NATS.URL == "" {
		return events.Nop{}
	}
	var pub *events.NATSPublisher
	err := retry.Do(
		func() error {
			p, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject, log)
			if err != nil {
				return err
			}
			pub = p
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
	)
	if err != nil {
		log.Warn("events: NATS unavailable, save events disabled", zap.String("url", cfg.NATS.URL), zap.Error(err))
		return events.Nop{}
	}
	stores.closers = append(stores.closers, pub.Close)
	log.Info("events: publishing to NATS", zap.String("url", cfg.NATS.URL))
	return pub
}

func (s *gatewayStores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
