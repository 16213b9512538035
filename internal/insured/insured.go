package insured

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"insured/internal/insured/handler"
	insuredmetrics "insured/internal/insured/metrics"
	"insured/internal/insured/service"
	"insured/internal/insured/store"
	"insured/pkg/platform/circuit"
)

// Service exposes the insured registry operations.
type Service = service.Service

// Handler wires HTTP endpoints to the registry service.
type Handler = handler.Handler

// Dependencies selects the storage the registry runs on. A nil DB keeps
// records in memory; a nil Cache disables the Redis read-through cache.
type Dependencies struct {
	Driver   string
	DB       *sql.DB
	Cache    redis.Cmdable
	CacheTTL time.Duration
	Logger   *slog.Logger
	Metrics  *insuredmetrics.Metrics
}

// Module is the assembled registry: store, service and HTTP handler.
type Module struct {
	Service *Service
	Handler *Handler
}

// New assembles the registry. SQL backends get their schema ensured and
// their writes run in database transactions.
func New(ctx context.Context, deps Dependencies) (*Module, error) {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var (
		backend store.Backend
		opts    = []service.Option{service.WithLogger(deps.Logger), service.WithMetrics(deps.Metrics)}
	)

	if deps.DB == nil {
		backend = store.NewInMemory()
	} else {
		dialect, err := store.DialectFor(deps.Driver)
		if err != nil {
			return nil, err
		}
		sqlStore := store.NewSQL(deps.DB, dialect)
		if err := sqlStore.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("prepare insured store: %w", err)
		}
		backend = sqlStore
		opts = append(opts, service.WithTx(store.NewSQLTx(deps.DB)))
	}

	if deps.Cache != nil {
		cacheOpts := []store.CacheOption{
			store.WithCacheLogger(deps.Logger),
			store.WithCacheBreaker(circuit.New("insured-cache", circuit.WithCooldown(10*time.Second))),
		}
		if deps.Metrics != nil {
			cacheOpts = append(cacheOpts, store.WithCacheObserver(deps.Metrics))
		}
		backend = store.NewCached(backend, deps.Cache, deps.CacheTTL, cacheOpts...)
	}

	svc := service.New(backend, opts...)
	return &Module{
		Service: svc,
		Handler: handler.New(svc, deps.Logger),
	}, nil
}
