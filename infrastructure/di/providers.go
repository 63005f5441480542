package di

import (
	"context"
	"fmt"
	"time"

	"kgraph/application/ports"
	"kgraph/application/queries"
	"kgraph/application/services"
	"kgraph/infrastructure/config"
	dynamostore "kgraph/infrastructure/persistence/dynamodb"
	memstore "kgraph/infrastructure/persistence/memory"
	redisstore "kgraph/infrastructure/persistence/redis"
	"kgraph/infrastructure/search"
	memindex "kgraph/infrastructure/search/memory"
	sqliteindex "kgraph/infrastructure/search/sqlite"
	"kgraph/infrastructure/snapshot"
	"kgraph/interfaces/http/rest"
	"kgraph/pkg/observability"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// ServiceName identifies this process in traces
const ServiceName = "kgraph"

// ProvideLogLevel parses the configured log level into a runtime-adjustable one
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	return zap.ParseAtomicLevel(cfg.LogLevel)
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	logger, err := config.BuildLogger(cfg, level)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("kgraph")
}

// ProvideTracing installs the OTLP exporter when tracing is enabled. The
// returned provider is nil otherwise and spans are no-ops.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideAttributeStore connects the configured store backend. Failing to
// reach it is fatal to startup.
func ProvideAttributeStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.AttributeStore, func(), error) {
	var store ports.AttributeStore

	switch cfg.StoreBackend {
	case config.StoreMemory:
		store = memstore.NewStore()

	case config.StoreRedis:
		s, err := redisstore.NewStore(redisstore.Options{
			URL:            cfg.RedisURL,
			Prefix:         cfg.RedisPrefix,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s

	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s := dynamostore.NewStore(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, "", logger)
		if err := s.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("dynamodb table %s unreachable: %w", cfg.DynamoDBTable, err)
		}
		store = s

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	logger.Info("Attribute store ready", zap.String("backend", cfg.StoreBackend))
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close attribute store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideSearchIndex opens the configured search backend behind a circuit breaker
func ProvideSearchIndex(cfg *config.Config, logger *zap.Logger) (ports.SearchIndex, func(), error) {
	var index ports.SearchIndex

	switch cfg.SearchBackend {
	case config.SearchMemory:
		index = memindex.NewIndex()
	case config.SearchSQLite:
		idx, err := sqliteindex.Open(cfg.SearchDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open search index: %w", err)
		}
		index = idx
	default:
		return nil, nil, fmt.Errorf("unknown search backend %q", cfg.SearchBackend)
	}

	guarded := search.NewBreakerIndex(index, search.DefaultBreakerConfig(), logger)
	cleanup := func() {
		if err := guarded.Close(); err != nil {
			logger.Warn("Failed to close search index", zap.Error(err))
		}
	}
	return guarded, cleanup, nil
}

// ProvideGraphEngine creates the engine. Bootstrap is left to the caller,
// which decides whether a snapshot is loaded.
func ProvideGraphEngine(
	store ports.AttributeStore,
	index ports.SearchIndex,
	logger *zap.Logger,
	metrics *observability.Collector,
) *services.GraphEngine {
	return services.NewGraphEngine(store, index, logger, metrics)
}

// ProvideQueryFacade creates the read side
func ProvideQueryFacade(engine *services.GraphEngine, index ports.SearchIndex, logger *zap.Logger) *queries.QueryFacade {
	return queries.NewQueryFacade(engine, index, logger)
}

// ProvideSnapshotStore creates the snapshot file store
func ProvideSnapshotStore(cfg *config.Config, logger *zap.Logger) *snapshot.FileStore {
	return snapshot.NewFileStore(cfg.SnapshotPath, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	engine *services.GraphEngine,
	facade *queries.QueryFacade,
	store ports.AttributeStore,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(engine, facade, store, metrics, rest.Options{
		EnableCORS:    cfg.EnableCORS,
		EnableMetrics: cfg.EnableMetrics,
		Debug:         cfg.IsDevelopment(),

		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)
}
