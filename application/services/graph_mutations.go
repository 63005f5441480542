package services

import (
	"context"
	"fmt"
	"time"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AddNode creates a node under parent and returns its id. A non-root node
// asking for the root type becomes a concept.
func (e *GraphEngine) AddNode(ctx context.Context, nodeType, title, content, tags string, parent valueobjects.NodeID) (id valueobjects.NodeID, err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.AddNode", nodeAttr("parent.id", parent))
	defer func() { observability.EndSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireLive(ctx, parent); err != nil {
		return 0, pkgerrors.Wrap(err, "parent")
	}

	id, err = e.keys.allocate(ctx)
	if err != nil {
		return 0, err
	}
	node := entities.NewNode(id, entities.NodeType(nodeType), title, content, tags, e.now())
	if err = e.keys.putNode(ctx, node); err != nil {
		e.abandon(ctx, parent, id, err)
		return 0, err
	}
	if err = e.link(ctx, parent, id, false); err != nil {
		e.abandon(ctx, parent, id, err)
		return 0, err
	}

	e.metrics.NodesCreated.Inc()
	e.logger.Debug("Node created",
		zap.Int64("nodeID", id.Int64()),
		zap.Int64("parentID", parent.Int64()),
		zap.String("type", string(node.Type())),
	)

	if ierr := e.index.Upsert(ctx, node.SearchDocument()); ierr != nil {
		err = e.indexFailure("upsert", id, ierr)
		return id, err
	}
	return id, nil
}

// abandon retires an id whose creation failed half way, so it never reads
// as a live node. Cleanup is best effort.
func (e *GraphEngine) abandon(ctx context.Context, parent, id valueobjects.NodeID, cause error) {
	e.logger.Warn("Node creation failed, retiring id",
		zap.Int64("nodeID", id.Int64()),
		zap.Error(cause),
	)
	if err := e.keys.removeEdge(ctx, parent, id); err != nil {
		e.logger.Warn("Failed to drop partial edge", zap.Int64("nodeID", id.Int64()), zap.Error(err))
	}
	if err := e.keys.tombstone(ctx, id); err != nil {
		e.logger.Error("Failed to tombstone abandoned id", zap.Int64("nodeID", id.Int64()), zap.Error(err))
	}
}

// link applies the linking algorithm without validation. The stale
// (root -> child) edge goes first, and is kept when either endpoint is root.
func (e *GraphEngine) link(ctx context.Context, parent, child valueobjects.NodeID, twoWay bool) error {
	if !parent.IsRoot() && !child.IsRoot() {
		if err := e.keys.removeEdge(ctx, valueobjects.RootID, child); err != nil {
			return err
		}
	}
	if err := e.keys.addEdge(ctx, parent, child); err != nil {
		return err
	}
	if twoWay {
		return e.keys.addEdge(ctx, child, parent)
	}
	return nil
}

// rehome re-links id under root when it has no parent left. The insert is
// raw: going through link would remove the very edge being added.
func (e *GraphEngine) rehome(ctx context.Context, id valueobjects.NodeID) error {
	if id.IsRoot() {
		return nil
	}
	parents, err := e.keys.parents(ctx, id)
	if err != nil {
		return err
	}
	if len(parents) > 0 {
		return nil
	}
	e.logger.Debug("Re-linking orphaned node to root", zap.Int64("nodeID", id.Int64()))
	return e.keys.addEdge(ctx, valueobjects.RootID, id)
}

// LinkNodes adds parent -> child, and child -> parent when twoWay is set.
// Linking an existing pair again is a no-op.
func (e *GraphEngine) LinkNodes(ctx context.Context, parent, child valueobjects.NodeID, twoWay bool) (err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.LinkNodes",
		nodeAttr("parent.id", parent), nodeAttr("child.id", child), attribute.Bool("two_way", twoWay))
	defer func() { observability.EndSpan(span, err) }()

	if parent == child {
		return pkgerrors.NewInvalidArgumentError("a node cannot be linked to itself")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireLive(ctx, parent); err != nil {
		return err
	}
	if err = e.requireLive(ctx, child); err != nil {
		return err
	}
	if err = e.link(ctx, parent, child, twoWay); err != nil {
		return err
	}

	e.metrics.Links.Inc()
	e.logger.Debug("Nodes linked",
		zap.Int64("parentID", parent.Int64()),
		zap.Int64("childID", child.Int64()),
		zap.Bool("twoWay", twoWay),
	)
	return nil
}

// UnlinkNodes removes parent -> child, and child -> parent when twoWay is set.
// Either endpoint left without a parent is re-linked under root.
func (e *GraphEngine) UnlinkNodes(ctx context.Context, parent, child valueobjects.NodeID, twoWay bool) (err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.UnlinkNodes",
		nodeAttr("parent.id", parent), nodeAttr("child.id", child), attribute.Bool("two_way", twoWay))
	defer func() { observability.EndSpan(span, err) }()

	if parent == child {
		return pkgerrors.NewInvalidArgumentError("a node cannot be unlinked from itself")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireLive(ctx, parent); err != nil {
		return err
	}
	if err = e.requireLive(ctx, child); err != nil {
		return err
	}

	if err = e.keys.removeEdge(ctx, parent, child); err != nil {
		return err
	}
	if twoWay {
		if err = e.keys.removeEdge(ctx, child, parent); err != nil {
			return err
		}
	}

	if err = e.rehome(ctx, child); err != nil {
		return err
	}
	if twoWay {
		if err = e.rehome(ctx, parent); err != nil {
			return err
		}
	}

	e.metrics.Unlinks.Inc()
	e.logger.Debug("Nodes unlinked",
		zap.Int64("parentID", parent.Int64()),
		zap.Int64("childID", child.Int64()),
		zap.Bool("twoWay", twoWay),
	)
	return nil
}

// SetNodeAttr changes one attribute of a non-root node and returns its id.
// Checks run in this order: missing attribute, immutable attribute, root or
// missing target, type set to root, attribute outside the schema.
func (e *GraphEngine) SetNodeAttr(ctx context.Context, id valueobjects.NodeID, attr, value string) (_ valueobjects.NodeID, err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.SetNodeAttr",
		nodeAttr("node.id", id), attribute.String("attr", attr))
	defer func() { observability.EndSpan(span, err) }()

	if attr == "" {
		return 0, pkgerrors.NewInvalidArgumentError("attribute name is required")
	}
	a, known := entities.ParseAttribute(attr)
	if a.IsImmutable() {
		return 0, pkgerrors.NewImmutableError(attr)
	}
	if id.IsRoot() {
		return 0, pkgerrors.NewInvalidTargetError("root node attributes cannot be changed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	live, err := e.isLive(ctx, id)
	if err != nil {
		return 0, err
	}
	if !live {
		return 0, pkgerrors.NewInvalidTargetError(fmt.Sprintf("node %d does not exist", id))
	}
	if !known {
		return 0, pkgerrors.NewUnknownAttributeError(attr)
	}

	node, err := e.keys.node(ctx, id)
	if err != nil {
		return 0, err
	}
	now := e.now()
	if !now.After(node.LastModified()) {
		now = node.LastModified().Add(time.Microsecond)
	}
	if err = node.Set(a, value, now); err != nil {
		return 0, err
	}

	if err = e.keys.putAttributes(ctx, id, map[string]string{
		attr:                             value,
		string(entities.AttrLastModified): node.Get(entities.AttrLastModified),
	}); err != nil {
		return 0, err
	}

	e.metrics.AttrUpdates.Inc()
	e.logger.Debug("Node attribute updated", zap.Int64("nodeID", id.Int64()), zap.String("attr", attr))

	if a.IsSearchable() {
		update := entities.SearchFieldUpdate{ID: id, Fields: map[entities.Attribute]string{a: value}}
		if ierr := e.index.UpdateFields(ctx, update); ierr != nil {
			err = e.indexFailure("update_fields", id, ierr)
			return id, err
		}
	}
	return id, nil
}

// RemoveNode unlinks a node from all its neighbours, re-homes children left
// without a parent, drops it from the search index and tombstones its id.
// The id stays reserved forever.
func (e *GraphEngine) RemoveNode(ctx context.Context, id valueobjects.NodeID) (err error) {
	ctx, span := observability.StartSpan(ctx, "GraphEngine.RemoveNode", nodeAttr("node.id", id))
	defer func() { observability.EndSpan(span, err) }()

	if id.IsRoot() {
		return pkgerrors.NewInvalidTargetError("the root node cannot be removed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err = e.requireLive(ctx, id); err != nil {
		return err
	}

	parents, err := e.keys.parents(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range parents {
		if err = e.keys.removeEdge(ctx, p, id); err != nil {
			return err
		}
	}

	children, err := e.keys.children(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err = e.keys.removeEdge(ctx, id, c); err != nil {
			return err
		}
	}
	for _, c := range children {
		if err = e.rehome(ctx, c); err != nil {
			return err
		}
	}

	if err = e.keys.tombstone(ctx, id); err != nil {
		return err
	}

	e.metrics.NodesRemoved.Inc()
	e.logger.Info("Node removed",
		zap.Int64("nodeID", id.Int64()),
		zap.Int("parents", len(parents)),
		zap.Int("children", len(children)),
	)

	if ierr := e.index.Delete(ctx, id); ierr != nil {
		err = e.indexFailure("delete", id, ierr)
		return err
	}
	return nil
}
