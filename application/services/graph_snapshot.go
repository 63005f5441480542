package services

import (
	"context"
	"fmt"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/observability"

	"go.uber.org/zap"
)

// Export copies the whole graph. Mutations wait until it is done, so a
// snapshot never contains a half-applied change.
func (e *GraphEngine) Export(ctx context.Context) (snap *entities.Snapshot, err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.Export")
	defer func() { observability.EndSpan(span, err) }()

	err = e.Read(ctx, func(r GraphReader) error {
		snap = &entities.Snapshot{
			Version:    entities.SnapshotVersion,
			NextID:     r.NextID(),
			Nodes:      []map[string]string{},
			Edges:      []entities.Edge{},
			Tombstones: r.Tombstones(),
		}
		for _, id := range r.LiveIDs() {
			node, err := r.Node(id)
			if err != nil {
				return err
			}
			snap.Nodes = append(snap.Nodes, node.Attributes())

			children, err := r.Children(id)
			if err != nil {
				return err
			}
			for _, c := range children {
				if r.Exists(c) {
					snap.Edges = append(snap.Edges, entities.Edge{Parent: id, Child: c})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// validateSnapshot checks a snapshot without touching any store
func validateSnapshot(snap *entities.Snapshot) error {
	if snap.Version != entities.SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	live := make(map[valueobjects.NodeID]struct{}, len(snap.Nodes))
	for _, attrs := range snap.Nodes {
		node, err := entities.ReconstructNode(attrs)
		if err != nil {
			return fmt.Errorf("invalid node: %w", err)
		}
		if node.ID() >= snap.NextID {
			return fmt.Errorf("node %d is beyond next_id %d", node.ID(), snap.NextID)
		}
		if !node.ID().IsRoot() && node.Type() == entities.TypeRoot {
			return fmt.Errorf("node %d has the root type", node.ID())
		}
		if _, dup := live[node.ID()]; dup {
			return fmt.Errorf("node %d appears twice", node.ID())
		}
		live[node.ID()] = struct{}{}
	}
	if _, ok := live[valueobjects.RootID]; !ok {
		return fmt.Errorf("snapshot has no root node")
	}

	dead := make(map[valueobjects.NodeID]struct{}, len(snap.Tombstones))
	for _, id := range snap.Tombstones {
		if id.IsRoot() || id < 0 || id >= snap.NextID {
			return fmt.Errorf("invalid tombstone %d", id)
		}
		if _, ok := live[id]; ok {
			return fmt.Errorf("node %d is both live and tombstoned", id)
		}
		dead[id] = struct{}{}
	}
	for id := valueobjects.RootID; id < snap.NextID; id++ {
		_, isLive := live[id]
		_, isDead := dead[id]
		if !isLive && !isDead {
			return fmt.Errorf("id %d is neither a node nor a tombstone", id)
		}
	}

	for _, edge := range snap.Edges {
		if edge.Parent == edge.Child {
			return fmt.Errorf("self-loop on node %d", edge.Parent)
		}
		if _, ok := live[edge.Parent]; !ok {
			return fmt.Errorf("edge source %d is not a node", edge.Parent)
		}
		if _, ok := live[edge.Child]; !ok {
			return fmt.Errorf("edge target %d is not a node", edge.Child)
		}
	}
	return nil
}

// Import loads a snapshot into an uninitialized store
func (e *GraphEngine) Import(ctx context.Context, snap *entities.Snapshot) (err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.Import")
	defer func() { observability.EndSpan(span, err) }()

	if err = validateSnapshot(snap); err != nil {
		return pkgerrors.NewInvalidArgumentError("invalid snapshot").WithCause(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	initialized, err := e.keys.initialized(ctx)
	if err != nil {
		return err
	}
	if initialized {
		return pkgerrors.NewInvalidArgumentError("the store already holds a graph")
	}
	return e.importLocked(ctx, snap)
}

// importLocked writes a validated snapshot. next_id is written last so an
// interrupted import leaves the store uninitialized.
func (e *GraphEngine) importLocked(ctx context.Context, snap *entities.Snapshot) error {
	docs := make([]entities.SearchDocument, 0, len(snap.Nodes))
	hasParent := make(map[valueobjects.NodeID]bool, len(snap.Nodes))

	for _, attrs := range snap.Nodes {
		node, err := entities.ReconstructNode(attrs)
		if err != nil {
			return err
		}
		if err := e.keys.putNode(ctx, node); err != nil {
			return err
		}
		docs = append(docs, node.SearchDocument())
		hasParent[node.ID()] = false
	}
	for _, edge := range snap.Edges {
		if err := e.keys.addEdge(ctx, edge.Parent, edge.Child); err != nil {
			return err
		}
		hasParent[edge.Child] = true
	}
	for id, ok := range hasParent {
		if ok || id.IsRoot() {
			continue
		}
		e.logger.Warn("Snapshot node had no parent, linking to root", zap.Int64("nodeID", id.Int64()))
		if err := e.keys.addEdge(ctx, valueobjects.RootID, id); err != nil {
			return err
		}
	}
	for _, id := range snap.Tombstones {
		if err := e.keys.tombstone(ctx, id); err != nil {
			return err
		}
	}
	if err := e.keys.setNextID(ctx, snap.NextID); err != nil {
		return err
	}

	if err := e.index.Upsert(ctx, docs...); err != nil {
		return e.indexFailure("upsert", valueobjects.RootID, err)
	}
	return nil
}

// ReindexResult summarizes a Reindex sweep
type ReindexResult struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

// Reindex re-upserts the search document of every live node. Failures are
// logged and counted; they never stop the sweep.
func (e *GraphEngine) Reindex(ctx context.Context) (result ReindexResult, err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.Reindex")
	defer func() { observability.EndSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.newReader(ctx)
	if err != nil {
		return result, err
	}
	for _, id := range r.LiveIDs() {
		node, err := r.Node(id)
		if err != nil {
			return result, err
		}
		if ierr := e.index.Upsert(ctx, node.SearchDocument()); ierr != nil {
			result.Failed++
			e.metrics.IndexFailures.WithLabelValues("reindex").Inc()
			e.logger.Warn("Failed to index node", zap.Int64("nodeID", id.Int64()), zap.Error(ierr))
			continue
		}
		result.Indexed++
	}

	e.logger.Info("Reindex finished", zap.Int("indexed", result.Indexed), zap.Int("failed", result.Failed))
	return result, nil
}
