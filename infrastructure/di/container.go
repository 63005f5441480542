package di

import (
	"context"

	"kgraph/application/ports"
	"kgraph/application/queries"
	"kgraph/application/services"
	"kgraph/domain/core/entities"
	"kgraph/infrastructure/config"
	"kgraph/infrastructure/snapshot"
	"kgraph/interfaces/http/rest"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	LogLevel  zap.AtomicLevel
	Metrics   *observability.Collector
	Tracing   *observability.TracerProvider
	Store     ports.AttributeStore
	Index     ports.SearchIndex
	Engine    *services.GraphEngine
	Queries   *queries.QueryFacade
	Snapshots *snapshot.FileStore
	Router    *rest.Router
}

// Bootstrap prepares the graph for serving: an initialized store is resumed,
// otherwise the configured snapshot is restored or a fresh graph is created.
// A snapshot that cannot be read is logged and treated as absent.
func (c *Container) Bootstrap(ctx context.Context) (services.BootstrapMode, error) {
	var snap *entities.Snapshot
	if c.Config.SnapshotPath != "" {
		loaded, err := c.Snapshots.Load()
		if err != nil {
			c.Logger.Warn("Ignoring unreadable snapshot", zap.Error(err))
		}
		snap = loaded
	}

	mode, err := c.Engine.Bootstrap(ctx, snap)
	if err != nil && !pkgerrors.IsNonFatal(err) {
		return "", err
	}
	if err != nil {
		c.Logger.Warn("Graph ready but search index is behind; run reindex", zap.Error(err))
	}
	c.Logger.Info("Graph ready", zap.String("mode", string(mode)))
	return mode, nil
}
