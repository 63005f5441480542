package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kgraph/application/ports"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GraphEngine owns node lifecycle, the linking invariant and attribute policy.
//
// All mutations and snapshot exports are serialized by one engine-wide lock;
// read projections share it in read mode. Every non-root live node always
// has at least one parent: when an operation removes a node's last parent,
// the node is re-linked under root.
//
// The AttributeStore is authoritative. The SearchIndex is a best-effort
// projection: when updating it fails after the graph mutation succeeded,
// methods return the result together with an INDEX_UNAVAILABLE error
// (see pkgerrors.IsNonFatal).
type GraphEngine struct {
	mu      sync.RWMutex
	keys    keyspace
	index   ports.SearchIndex
	logger  *zap.Logger
	metrics *observability.Collector
	clock   func() time.Time
}

// Option configures a GraphEngine
type Option func(*GraphEngine)

// WithClock replaces the wall clock used for node timestamps
func WithClock(clock func() time.Time) Option {
	return func(e *GraphEngine) {
		e.clock = clock
	}
}

// NewGraphEngine creates an engine. Call Bootstrap before any other operation.
func NewGraphEngine(
	store ports.AttributeStore,
	index ports.SearchIndex,
	logger *zap.Logger,
	metrics *observability.Collector,
	opts ...Option,
) *GraphEngine {
	if metrics == nil {
		metrics = observability.NewCollector("kgraph")
	}
	e := &GraphEngine{
		keys:    keyspace{store: store},
		index:   index,
		logger:  logger,
		metrics: metrics,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// now returns the clock reading at the precision timestamps are stored with
func (e *GraphEngine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}

// BootstrapMode reports how Bootstrap initialized the graph
type BootstrapMode string

const (
	BootstrapResumed  BootstrapMode = "resumed"
	BootstrapRestored BootstrapMode = "restored"
	BootstrapFresh    BootstrapMode = "fresh"
)

// Bootstrap prepares the store for use. An already initialized store is
// used as is. Otherwise snap, when given and valid, is imported; failing
// that a fresh graph holding only the root node is created.
func (e *GraphEngine) Bootstrap(ctx context.Context, snap *entities.Snapshot) (mode BootstrapMode, err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.Bootstrap")
	defer func() { observability.EndSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	initialized, err := e.keys.initialized(ctx)
	if err != nil {
		return "", err
	}
	if initialized {
		next, err := e.keys.nextID(ctx)
		if err != nil {
			return "", err
		}
		e.logger.Info("Resuming existing graph", zap.Int64("nextID", next.Int64()))
		return BootstrapResumed, nil
	}

	if snap != nil {
		if verr := validateSnapshot(snap); verr != nil {
			e.logger.Warn("Snapshot rejected, starting with a fresh graph", zap.Error(verr))
		} else {
			err = e.importLocked(ctx, snap)
			if err != nil && !pkgerrors.IsNonFatal(err) {
				return "", err
			}
			e.logger.Info("Graph restored from snapshot",
				zap.Int("nodes", len(snap.Nodes)),
				zap.Int("edges", len(snap.Edges)),
				zap.Int64("nextID", snap.NextID.Int64()),
			)
			return BootstrapRestored, err
		}
	}

	if err = e.keys.setNextID(ctx, 0); err != nil {
		return "", err
	}
	id, err := e.keys.allocate(ctx)
	if err != nil {
		return "", err
	}
	root := entities.NewNode(id, entities.TypeRoot, "root", "", "", e.now())
	if err = e.keys.putNode(ctx, root); err != nil {
		return "", err
	}
	e.logger.Info("Created fresh graph with root node")

	if ierr := e.index.Upsert(ctx, root.SearchDocument()); ierr != nil {
		err = e.indexFailure("upsert", root.ID(), ierr)
		return BootstrapFresh, err
	}
	return BootstrapFresh, nil
}

// indexFailure logs and counts a search index failure and returns it as
// a non-fatal INDEX_UNAVAILABLE error
func (e *GraphEngine) indexFailure(op string, id valueobjects.NodeID, err error) error {
	e.metrics.IndexFailures.WithLabelValues(op).Inc()
	e.logger.Warn("Search index update failed; graph mutation kept",
		zap.String("operation", op),
		zap.Int64("nodeID", id.Int64()),
		zap.Error(err),
	)
	if pkgerrors.IsIndexUnavailable(err) {
		return err
	}
	return pkgerrors.NewIndexUnavailableError(op, err).WithDetail("node_id", id.Int64())
}

// isLive reports whether id was allocated and not tombstoned
func (e *GraphEngine) isLive(ctx context.Context, id valueobjects.NodeID) (bool, error) {
	next, err := e.keys.nextID(ctx)
	if err != nil {
		return false, err
	}
	if id < 0 || id >= next {
		return false, nil
	}
	dead, err := e.keys.tombstones(ctx)
	if err != nil {
		return false, err
	}
	if _, gone := dead[id]; gone {
		return false, nil
	}
	return e.keys.hasNode(ctx, id)
}

func (e *GraphEngine) requireLive(ctx context.Context, id valueobjects.NodeID) error {
	live, err := e.isLive(ctx, id)
	if err != nil {
		return err
	}
	if !live {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %d", id))
	}
	return nil
}

func nodeAttr(key string, id valueobjects.NodeID) attribute.KeyValue {
	return attribute.Int64(key, id.Int64())
}
