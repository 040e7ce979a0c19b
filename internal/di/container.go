package di

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/blocks"
	"github.com/goliatone/go-blocksync/internal/editor"
	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/internal/logging/console"
	"github.com/goliatone/go-blocksync/internal/logging/gologger"
	"github.com/goliatone/go-blocksync/internal/outbox"
	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/goliatone/go-blocksync/internal/refresh"
	"github.com/goliatone/go-blocksync/internal/runtimeconfig"
	"github.com/goliatone/go-blocksync/internal/server"
	"github.com/goliatone/go-blocksync/internal/syncclient"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/goliatone/go-blocksync/pkg/storage"
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// Container wires the backend services and the editing runtime from a
// Config. Backend and editor parts are built lazily, so a CLI command only
// pays for what it uses.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider

	bunDB         *bun.DB
	ownsDB        bool
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	definitionRepo blocks.DefinitionRepository
	blockRepo      blocks.BlockRepository
	blockSvc       blocks.Service
	definitions    *blocks.Registry

	apiOnce sync.Once
	api     *server.API

	editorMu   sync.Mutex
	syncClient interfaces.SyncClient
	outbox     *outbox.Outbox
	registry   *editor.Registry
	refresher  *refresh.Refresher
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider selected from the logging config.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithBunDB uses db instead of opening Storage.DSN. The caller keeps
// ownership of db.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the default cache service.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithBlockService replaces the block service built from the repositories.
func WithBlockService(svc blocks.Service) Option {
	return func(c *Container) {
		c.blockSvc = svc
	}
}

// WithSyncClient replaces the HTTP sync client built from Sync.BaseURL.
func WithSyncClient(client interfaces.SyncClient) Option {
	return func(c *Container) {
		c.syncClient = client
	}
}

// WithDefinitionRegistry seeds block definitions at service start.
func WithDefinitionRegistry(registry *blocks.Registry) Option {
	return func(c *Container) {
		c.definitions = registry
	}
}

func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		Config:         cfg,
		definitionRepo: blocks.NewMemoryDefinitionRepository(),
		blockRepo:      blocks.NewMemoryBlockRepository(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.configureLoggerProvider(); err != nil {
		return nil, err
	}
	c.configureCacheDefaults()
	if err := c.configureRepositories(); err != nil {
		return nil, err
	}

	if c.blockSvc == nil {
		serviceOpts := []blocks.ServiceOption{}
		if c.definitions != nil {
			serviceOpts = append(serviceOpts, blocks.WithRegistry(c.definitions))
		}
		c.blockSvc = blocks.NewService(c.definitionRepo, c.blockRepo, serviceOpts...)
	}
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	if !c.Config.Features.Logger {
		c.loggerProvider = nil
		return nil
	}
	cfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     cfg.Level,
			Format:    cfg.Format,
			AddSource: cfg.AddSource,
			Focus:     cfg.Focus,
		})
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	default:
		opts := console.Options{Writer: os.Stderr}
		if level, ok := console.ParseLevel(cfg.Level); ok {
			opts.MinLevel = &level
		}
		c.loggerProvider = console.NewProvider(opts)
	}
	return nil
}

func (c *Container) configureCacheDefaults() {
	if !c.Config.Cache.Enabled {
		return
	}

	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if ttl := c.Config.Cache.DefaultTTL; ttl > 0 {
			cfg.TTL = ttl
		}
		service, err := repocache.NewCacheService(cfg)
		if err == nil {
			c.cacheService = service
		} else {
			logging.ModuleLogger(c.loggerProvider, "blocksync.di").Warn("cache.configure.failed", "error", err)
		}
	}

	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
}

func (c *Container) configureRepositories() error {
	if c.bunDB == nil && strings.EqualFold(strings.TrimSpace(c.Config.Storage.Provider), "bun") {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		db, err := storage.Open(ctx, c.Config.Storage.DSN)
		if err != nil {
			return err
		}
		if err := storage.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return err
		}
		c.bunDB = db
		c.ownsDB = true
	}
	if c.bunDB == nil {
		return nil
	}

	if c.cacheService != nil {
		c.definitionRepo = blocks.NewBunDefinitionRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	} else {
		c.definitionRepo = blocks.NewBunDefinitionRepository(c.bunDB)
	}
	c.blockRepo = blocks.NewBunBlockRepository(c.bunDB)
	logging.ModuleLogger(c.loggerProvider, "blocksync.di").Info("storage.configured",
		"provider", "bun",
		"driver", storage.Driver(c.Config.Storage.DSN),
		"cache", c.cacheService != nil,
	)
	return nil
}

// LoggerProvider returns the configured provider, nil when logging is off.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// BlockService returns the backend block service.
func (c *Container) BlockService() blocks.Service {
	return c.blockSvc
}

// API returns the HTTP API of the reference backend.
func (c *Container) API() *server.API {
	c.apiOnce.Do(func() {
		logger := logging.ServerLogger(c.loggerProvider)
		c.api = server.NewAPI(c.blockSvc,
			server.WithBasePath(c.Config.Server.BasePath),
			server.WithLogger(logger),
			server.WithHub(server.NewHub(logger)),
		)
	})
	return c.api
}

// SyncClient returns the client used by editing sessions.
func (c *Container) SyncClient() (interfaces.SyncClient, error) {
	c.editorMu.Lock()
	defer c.editorMu.Unlock()
	return c.syncClientLocked()
}

func (c *Container) syncClientLocked() (interfaces.SyncClient, error) {
	if c.syncClient != nil {
		return c.syncClient, nil
	}
	client, err := syncclient.New(c.Config.Sync.BaseURL, syncclient.WithLogger(logging.SyncLogger(c.loggerProvider)))
	if err != nil {
		return nil, err
	}
	c.syncClient = client
	return client, nil
}

// Outbox returns the queue that carries teardown flushes.
func (c *Container) Outbox() (*outbox.Outbox, error) {
	c.editorMu.Lock()
	defer c.editorMu.Unlock()
	return c.outboxLocked()
}

func (c *Container) outboxLocked() (*outbox.Outbox, error) {
	if c.outbox != nil {
		return c.outbox, nil
	}
	client, err := c.syncClientLocked()
	if err != nil {
		return nil, err
	}
	box, err := outbox.New(client,
		outbox.WithLogger(logging.OutboxLogger(c.loggerProvider)),
		outbox.WithMaxAttempts(c.Config.Sync.FlushMaxAttempts),
		outbox.WithSendTimeout(c.Config.Sync.FlushTimeout),
	)
	if err != nil {
		return nil, err
	}
	c.outbox = box
	return box, nil
}

// EditorRegistry returns the registry of editing sessions, configured with
// the sync settings and merge policy of the Config.
func (c *Container) EditorRegistry() (*editor.Registry, error) {
	c.editorMu.Lock()
	defer c.editorMu.Unlock()
	return c.editorRegistryLocked()
}

func (c *Container) editorRegistryLocked() (*editor.Registry, error) {
	if c.registry != nil {
		return c.registry, nil
	}
	client, err := c.syncClientLocked()
	if err != nil {
		return nil, err
	}
	box, err := c.outboxLocked()
	if err != nil {
		return nil, err
	}
	registry, err := editor.NewRegistry(client,
		editor.WithDebounceDelay(c.Config.Sync.DebounceDelay),
		editor.WithRequestTimeout(c.Config.Sync.RequestTimeout),
		editor.WithFlusher(box),
		editor.WithPolicy(c.Policy()),
		editor.WithLogger(logging.EditorLogger(c.loggerProvider)),
	)
	if err != nil {
		return nil, err
	}
	c.registry = registry
	return registry, nil
}

// Refresher returns the server-baseline refresher of the editor registry.
func (c *Container) Refresher() (*refresh.Refresher, error) {
	c.editorMu.Lock()
	defer c.editorMu.Unlock()
	if c.refresher != nil {
		return c.refresher, nil
	}
	client, err := c.syncClientLocked()
	if err != nil {
		return nil, err
	}
	registry, err := c.editorRegistryLocked()
	if err != nil {
		return nil, err
	}
	refresher, err := refresh.New(client, registry,
		refresh.WithLogger(logging.RefreshLogger(c.loggerProvider)),
		refresh.WithFetchTimeout(c.Config.Sync.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}
	c.refresher = refresher
	return refresher, nil
}

// Policy returns the merge policy of the Config.
func (c *Container) Policy() reconcile.Policy {
	p := c.Config.Policy
	if len(p.Assign) == 0 && len(p.ReplaceObject) == 0 && len(p.AssignArray) == 0 {
		return reconcile.DefaultPolicy()
	}
	return reconcile.NewPolicy(p.Assign, p.ReplaceObject, p.AssignArray)
}

// Close tears down the editing runtime and the database opened by the
// container. Open sessions are closed first so their flushes reach the
// outbox before it drains.
func (c *Container) Close(ctx context.Context) error {
	c.editorMu.Lock()
	registry, box, refresher := c.registry, c.outbox, c.refresher
	c.editorMu.Unlock()

	var errs []error
	if refresher != nil {
		refresher.Stop()
	}
	if registry != nil {
		if err := registry.CloseAll(); err != nil {
			errs = append(errs, err)
		}
	}
	if box != nil {
		box.Stop()
		if err := box.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain outbox: %w", err))
		}
	}
	if c.ownsDB && c.bunDB != nil {
		if err := c.bunDB.Close(); err != nil {
			errs = append(errs, err)
		}
		c.bunDB = nil
	}
	return errors.Join(errs...)
}
