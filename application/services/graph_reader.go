package services

import (
	"context"
	"fmt"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"
)

// GraphReader is a consistent read-only view of the graph. It is only valid
// inside the callback passed to GraphEngine.Read.
type GraphReader interface {
	// NextID is the allocation counter; ids below it were assigned
	NextID() valueobjects.NodeID

	// Exists reports whether id is allocated, not tombstoned and has attributes
	Exists(id valueobjects.NodeID) bool

	// LiveIDs lists every existing node in ascending order
	LiveIDs() []valueobjects.NodeID

	// Tombstones lists allocated ids that hold no node, in ascending order
	Tombstones() []valueobjects.NodeID

	Node(id valueobjects.NodeID) (*entities.Node, error)
	Parents(id valueobjects.NodeID) ([]valueobjects.NodeID, error)
	Children(id valueobjects.NodeID) ([]valueobjects.NodeID, error)
}

type graphReader struct {
	ctx     context.Context
	keys    keyspace
	next    valueobjects.NodeID
	dead    map[valueobjects.NodeID]struct{}
	present map[valueobjects.NodeID]bool
}

// Read runs fn against a view that no mutation can interleave with.
// Reads may run concurrently with each other.
func (e *GraphEngine) Read(ctx context.Context, fn func(GraphReader) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, err := e.newReader(ctx)
	if err != nil {
		return err
	}
	return fn(r)
}

func (e *GraphEngine) newReader(ctx context.Context) (*graphReader, error) {
	next, err := e.keys.nextID(ctx)
	if err != nil {
		return nil, err
	}
	dead, err := e.keys.tombstones(ctx)
	if err != nil {
		return nil, err
	}
	return &graphReader{
		ctx:     ctx,
		keys:    e.keys,
		next:    next,
		dead:    dead,
		present: make(map[valueobjects.NodeID]bool),
	}, nil
}

func (r *graphReader) NextID() valueobjects.NodeID {
	return r.next
}

func (r *graphReader) Exists(id valueobjects.NodeID) bool {
	if id < 0 || id >= r.next {
		return false
	}
	if _, gone := r.dead[id]; gone {
		return false
	}
	return r.hasNode(id)
}

// hasNode treats an id with no attribute map as absent. A store error
// counts as present so that Node reports it.
func (r *graphReader) hasNode(id valueobjects.NodeID) bool {
	if ok, seen := r.present[id]; seen {
		return ok
	}
	ok, err := r.keys.hasNode(r.ctx, id)
	if err != nil {
		return true
	}
	r.present[id] = ok
	return ok
}

func (r *graphReader) LiveIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, max(0, int(r.next)-len(r.dead)))
	for id := valueobjects.RootID; id < r.next; id++ {
		if r.Exists(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *graphReader) Tombstones() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(r.dead))
	for id := valueobjects.RootID; id < r.next; id++ {
		if !r.Exists(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *graphReader) notFound(id valueobjects.NodeID) error {
	return pkgerrors.NewNotFoundError(fmt.Sprintf("node %d", id))
}

func (r *graphReader) Node(id valueobjects.NodeID) (*entities.Node, error) {
	if !r.Exists(id) {
		return nil, r.notFound(id)
	}
	return r.keys.node(r.ctx, id)
}

func (r *graphReader) Parents(id valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	if !r.Exists(id) {
		return nil, r.notFound(id)
	}
	return r.keys.parents(r.ctx, id)
}

func (r *graphReader) Children(id valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	if !r.Exists(id) {
		return nil, r.notFound(id)
	}
	return r.keys.children(r.ctx, id)
}
