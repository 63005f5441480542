package queries

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"kgraph/application/ports"
	"kgraph/application/services"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"

	"go.uber.org/zap"
)

// Response size caps. Truncation keeps the entries for ids that come
// first in the caller's order.
const (
	MaxNodes = 100
	MaxEdges = 500
)

// GraphSource provides consistent read access to the graph
type GraphSource interface {
	Read(ctx context.Context, fn func(services.GraphReader) error) error
}

// QueryFacade serves read projections of the graph and search
type QueryFacade struct {
	graph  GraphSource
	index  ports.SearchIndex
	logger *zap.Logger
}

// NewQueryFacade creates a new query facade
func NewQueryFacade(graph GraphSource, index ports.SearchIndex, logger *zap.Logger) *QueryFacade {
	return &QueryFacade{
		graph:  graph,
		index:  index,
		logger: logger,
	}
}

// GetNode returns one node
func (q *QueryFacade) GetNode(ctx context.Context, id valueobjects.NodeID) (*NodeView, error) {
	var view NodeView
	err := q.graph.Read(ctx, func(r services.GraphReader) error {
		n, err := r.Node(id)
		if err != nil {
			return err
		}
		view = NewNodeView(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// AllIDs lists every live node id in ascending order
func (q *QueryFacade) AllIDs(ctx context.Context) ([]valueobjects.NodeID, error) {
	var out []valueobjects.NodeID
	err := q.graph.Read(ctx, func(r services.GraphReader) error {
		out = r.LiveIDs()
		return nil
	})
	return out, err
}

// NodesList returns up to MaxNodes nodes in caller order. Unknown,
// removed and repeated ids are skipped.
func (q *QueryFacade) NodesList(ctx context.Context, ids []valueobjects.NodeID) ([]NodeView, error) {
	var out []NodeView
	err := q.graph.Read(ctx, func(r services.GraphReader) error {
		var err error
		out, err = nodesList(r, ids)
		return err
	})
	return out, err
}

// EdgesList returns the deduplicated edges touching ids, capped at MaxEdges
func (q *QueryFacade) EdgesList(ctx context.Context, ids []valueobjects.NodeID) ([]entities.Edge, error) {
	var out []entities.Edge
	err := q.graph.Read(ctx, func(r services.GraphReader) error {
		var err error
		out, err = edgesList(r, ids)
		return err
	})
	return out, err
}

// NeighborIDs returns id followed by its successors and predecessors in
// ascending order
func (q *QueryFacade) NeighborIDs(ctx context.Context, id valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	var out []valueobjects.NodeID
	err := q.graph.Read(ctx, func(r services.GraphReader) error {
		var err error
		out, err = neighborIDs(r, id)
		return err
	})
	return out, err
}

// GraphProjection returns nodes and edges for ids; a nil ids selects the
// whole graph
func (q *QueryFacade) GraphProjection(ctx context.Context, ids []valueobjects.NodeID) (*GraphView, error) {
	view := &GraphView{}
	err := q.graph.Read(ctx, func(r services.GraphReader) error {
		if ids == nil {
			ids = r.LiveIDs()
		}
		var err error
		if view.Nodes, err = nodesList(r, ids); err != nil {
			return err
		}
		view.Edges, err = edgesList(r, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Neighborhood returns a node with its direct neighbours and the edges
// attached to it
func (q *QueryFacade) Neighborhood(ctx context.Context, id valueobjects.NodeID) (*GraphView, error) {
	view := &GraphView{}
	err := q.graph.Read(ctx, func(r services.GraphReader) error {
		neighbors, err := neighborIDs(r, id)
		if err != nil {
			return err
		}
		if view.Nodes, err = nodesList(r, neighbors); err != nil {
			return err
		}
		view.Edges, err = edgesList(r, []valueobjects.NodeID{id})
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Search runs a free-text query. Hits for nodes that no longer exist are
// dropped, which covers index deletes that failed earlier.
func (q *QueryFacade) Search(ctx context.Context, text string, limit int) ([]entities.SearchHit, error) {
	if strings.TrimSpace(text) == "" {
		return []entities.SearchHit{}, nil
	}

	hits, err := q.index.Query(ctx, text, limit)
	if err != nil {
		if !pkgerrors.IsIndexUnavailable(err) {
			err = pkgerrors.NewIndexUnavailableError("query", err)
		}
		q.logger.Warn("Search query failed", zap.String("query", text), zap.Error(err))
		return nil, err
	}

	out := make([]entities.SearchHit, 0, len(hits))
	err = q.graph.Read(ctx, func(r services.GraphReader) error {
		for _, h := range hits {
			if r.Exists(h.ID) {
				out = append(out, h)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if dropped := len(hits) - len(out); dropped > 0 {
		q.logger.Debug("Dropped stale search hits", zap.Int("count", dropped))
	}
	return out, nil
}

func nodesList(r services.GraphReader, ids []valueobjects.NodeID) ([]NodeView, error) {
	out := make([]NodeView, 0, min(len(ids), MaxNodes))
	seen := make(map[valueobjects.NodeID]struct{}, len(ids))
	for _, id := range ids {
		if len(out) >= MaxNodes {
			break
		}
		if _, dup := seen[id]; dup || !r.Exists(id) {
			continue
		}
		seen[id] = struct{}{}

		n, err := r.Node(id)
		if err != nil {
			return nil, err
		}
		out = append(out, NewNodeView(n))
	}
	return out, nil
}

func edgesList(r services.GraphReader, ids []valueobjects.NodeID) ([]entities.Edge, error) {
	out := make([]entities.Edge, 0)
	seen := make(map[entities.Edge]struct{})

	add := func(e entities.Edge) bool {
		if _, dup := seen[e]; dup {
			return true
		}
		if len(out) >= MaxEdges {
			return false
		}
		seen[e] = struct{}{}
		out = append(out, e)
		return true
	}

	for _, id := range ids {
		if !r.Exists(id) {
			continue
		}
		parents, err := r.Parents(id)
		if err != nil {
			return nil, err
		}
		children, err := r.Children(id)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if !add(entities.Edge{Parent: p, Child: id}) {
				return out, nil
			}
		}
		for _, c := range children {
			if !add(entities.Edge{Parent: id, Child: c}) {
				return out, nil
			}
		}
	}
	return out, nil
}

func neighborIDs(r services.GraphReader, id valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	if !r.Exists(id) {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("node %d", id))
	}
	parents, err := r.Parents(id)
	if err != nil {
		return nil, err
	}
	children, err := r.Children(id)
	if err != nil {
		return nil, err
	}

	set := make(map[valueobjects.NodeID]struct{}, len(parents)+len(children))
	for _, n := range append(children, parents...) {
		if n != id {
			set[n] = struct{}{}
		}
	}
	rest := make([]valueobjects.NodeID, 0, len(set))
	for n := range set {
		rest = append(rest, n)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })

	return append([]valueobjects.NodeID{id}, rest...), nil
}
