package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bcic-ai/knowledge-sdk/config"
	"github.com/bcic-ai/knowledge-sdk/coreerr"
	"github.com/bcic-ai/knowledge-sdk/graph"
	"github.com/bcic-ai/knowledge-sdk/persist"
	"github.com/bcic-ai/knowledge-sdk/plugin"
	"github.com/bcic-ai/knowledge-sdk/query"
	"github.com/bcic-ai/knowledge-sdk/store"
	"github.com/bcic-ai/knowledge-sdk/telemetry"
)

// System composes the capsule store, graph index, query service, and
// plugin pipeline behind a single facade.
type System struct {
	logger   *slog.Logger
	cfg      *config.Config
	backend  persist.Backend
	memory   *store.MemoryStore
	store    store.Store
	graph    *graph.Index
	query    *query.Service
	pipeline *plugin.Pipeline
}

// NewSystem creates a system from the provided options.
//
// Example:
//
//	system, err := sdk.NewSystem(
//	    sdk.WithLogger(logger),
//	    sdk.WithConfigPath("knowledge.yaml"),
//	)
func NewSystem(opts ...Option) (*System, error) {
	sc := &systemConfig{}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.logger == nil {
		sc.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	cfg := sc.cfg
	if cfg == nil && sc.configPath != "" {
		loaded, err := config.Load(sc.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend := sc.backend
	if backend == nil && cfg.Persistence != nil {
		b, err := newBackend(cfg.Persistence)
		if err != nil {
			return nil, err
		}
		backend = b
	}

	pipeline, err := plugin.NewPipeline(sc.plugins...)
	if err != nil {
		return nil, err
	}
	pipeline.SetLogger(sc.logger)

	memory := store.NewMemoryStore(
		store.WithLogger(sc.logger),
		store.WithBackend(backend),
		store.WithMaxCapsules(cfg.Store.MaxCapsules),
		store.WithPageSize(cfg.Store.PageSize),
		store.WithTransform(pipeline.Apply),
	)

	var capsuleStore store.Store = memory
	if sc.tracer != nil || sc.meter != nil {
		var telOpts []telemetry.Option
		if sc.tracer != nil {
			telOpts = append(telOpts, telemetry.WithTracer(sc.tracer))
		}
		if sc.meter != nil {
			telOpts = append(telOpts, telemetry.WithMeter(sc.meter))
		}
		instrumented, err := telemetry.NewInstrumentedStore(memory, telOpts...)
		if err != nil {
			return nil, err
		}
		capsuleStore = instrumented
	}

	index := graph.NewIndex(
		graph.WithLogger(sc.logger),
		graph.WithBackend(backend),
	)

	return &System{
		logger:   sc.logger,
		cfg:      cfg,
		backend:  backend,
		memory:   memory,
		store:    capsuleStore,
		graph:    index,
		query:    query.NewService(capsuleStore, index, query.WithLogger(sc.logger)),
		pipeline: pipeline,
	}, nil
}

// newBackend constructs the persistence backend selected by the
// configuration.
func newBackend(pc *config.PersistenceConfig) (persist.Backend, error) {
	switch pc.Backend {
	case "redis":
		opts := persist.RedisOptions{Namespace: pc.Namespace}
		if pc.Redis != nil {
			opts.URL = pc.Redis.URL
			opts.ConnectTimeout = pc.Redis.GetConnectTimeout()
		}
		return persist.NewRedisBackend(opts)
	case "etcd":
		opts := persist.EtcdOptions{Namespace: pc.Namespace}
		if pc.Etcd != nil {
			opts.Endpoints = pc.Etcd.Endpoints
			opts.DialTimeout = pc.Etcd.GetDialTimeout()
		}
		return persist.NewEtcdBackend(opts)
	default:
		return nil, fmt.Errorf("%w: unknown persistence backend %q",
			coreerr.ErrInvalidConfig, pc.Backend)
	}
}

// Start rebuilds in-memory state from the persistence backend. Call it
// once before serving requests; without a backend it is a no-op.
func (s *System) Start(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	if err := s.memory.Hydrate(ctx); err != nil {
		return err
	}
	return s.graph.Hydrate(ctx)
}

// Shutdown releases the system's resources.
func (s *System) Shutdown(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("failed to close persistence backend: %w", err)
	}
	return nil
}

// Store returns the capsule store.
func (s *System) Store() store.Store { return s.store }

// Graph returns the graph index.
func (s *System) Graph() *graph.Index { return s.graph }

// Query returns the query service.
func (s *System) Query() *query.Service { return s.query }

// Pipeline returns the plugin pipeline.
func (s *System) Pipeline() *plugin.Pipeline { return s.pipeline }

// Config returns the effective configuration.
func (s *System) Config() *config.Config { return s.cfg }
