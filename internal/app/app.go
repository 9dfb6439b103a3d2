// Package app assembles the storage, catalog and ingestion components that
// every binary shares, according to the loaded configuration.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/archive"
	"github.com/dharsanguruparan/vaultlink/internal/catalog"
	"github.com/dharsanguruparan/vaultlink/internal/config"
	"github.com/dharsanguruparan/vaultlink/internal/database"
	"github.com/dharsanguruparan/vaultlink/internal/ingest"
	"github.com/dharsanguruparan/vaultlink/internal/repository"
	"github.com/dharsanguruparan/vaultlink/internal/search"
	"github.com/dharsanguruparan/vaultlink/internal/storage"
)

// Store is everything the core needs from persistence.
type Store interface {
	catalog.ItemStore
	catalog.LinkStore
	search.Store
	Ping(ctx context.Context) error
	Close()
}

type pgStore struct {
	*repository.Store
	pool *pgxpool.Pool
}

func (s pgStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s pgStore) Close()                         { s.pool.Close() }

var (
	_ Store = pgStore{}
	_ Store = (*storage.MemoryStore)(nil)
)

// OpenStore connects to the configured store. Postgres schemas are migrated
// to the latest version when migrate is true.
func OpenStore(ctx context.Context, cfg *config.Config, migrate bool) (Store, error) {
	if cfg.Store == config.StoreMemory {
		return storage.NewMemoryStore(), nil
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return pgStore{Store: repository.New(pool), pool: pool}, nil
}

// Core bundles the components built on top of a Store.
type Core struct {
	Store    Store
	Items    *catalog.Items
	Links    *catalog.Links
	Search   *search.Engine
	Pipeline *ingest.Pipeline
	// Archive is nil when no object storage is configured.
	Archive *archive.Storage
}

// Build wires a Core over store. The archive bucket is created on demand.
func Build(ctx context.Context, cfg *config.Config, store Store, log zerolog.Logger) (*Core, error) {
	c := &Core{
		Store:  store,
		Items:  catalog.NewItems(store, log),
		Search: search.NewEngine(store),
	}
	c.Links = catalog.NewLinks(store, store, catalog.LinkOptions{
		CacheSize: cfg.LinkCacheSize,
		CacheTTL:  cfg.LinkCacheTTL,
		Logger:    log,
	})

	opt := ingest.PipelineOptions{DeepLink: cfg.DeepLink, Logger: log}
	if cfg.ArchiveEnabled() {
		arch, err := archive.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := arch.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		c.Archive = arch
		opt.Archive = arch
	}
	c.Pipeline = ingest.NewPipeline(c.Items, c.Links, opt)
	return c, nil
}
