package services

import (
	"context"
	"sort"

	"kgraph/application/ports"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"
)

// Store key layout:
//
//	"<id>"          node attribute map
//	"<id>.parents"  set of parent ids
//	"<id>.children" set of child ids
//	"next_id"       next id to allocate
//	"deleted"       set of tombstoned ids
const (
	counterKey   = "next_id"
	tombstoneKey = "deleted"
)

// keyspace is the typed view of the AttributeStore. Node ids become strings
// here and nowhere else.
type keyspace struct {
	store ports.AttributeStore
}

func nodeKey(id valueobjects.NodeID) string     { return id.String() }
func parentsKey(id valueobjects.NodeID) string  { return id.String() + ".parents" }
func childrenKey(id valueobjects.NodeID) string { return id.String() + ".children" }

func (k keyspace) initialized(ctx context.Context) (bool, error) {
	ok, err := k.store.Exists(ctx, counterKey)
	if err != nil {
		return false, pkgerrors.NewDatabaseError("exists", err)
	}
	return ok, nil
}

// nextID returns the allocation counter; zero when the graph is uninitialized
func (k keyspace) nextID(ctx context.Context) (valueobjects.NodeID, error) {
	raw, ok, err := k.store.GetValue(ctx, counterKey)
	if err != nil {
		return 0, pkgerrors.NewDatabaseError("get_value", err)
	}
	if !ok {
		return 0, nil
	}
	id, err := valueobjects.ParseNodeID(raw)
	if err != nil {
		return 0, pkgerrors.NewInternalError("stored next_id is malformed").WithCause(err)
	}
	return id, nil
}

func (k keyspace) setNextID(ctx context.Context, id valueobjects.NodeID) error {
	if err := k.store.SetValue(ctx, counterKey, id.String()); err != nil {
		return pkgerrors.NewDatabaseError("set_value", err)
	}
	return nil
}

// allocate advances the counter and returns the id it pointed at
func (k keyspace) allocate(ctx context.Context) (valueobjects.NodeID, error) {
	n, err := k.store.Increment(ctx, counterKey)
	if err != nil {
		return 0, pkgerrors.NewDatabaseError("increment", err)
	}
	return valueobjects.NodeID(n - 1), nil
}

func (k keyspace) node(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	attrs, err := k.store.GetAttributes(ctx, nodeKey(id))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get_attributes", err)
	}
	if len(attrs) == 0 {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}
	return entities.ReconstructNode(attrs)
}

// hasNode reports whether an attribute map is stored for id
func (k keyspace) hasNode(ctx context.Context, id valueobjects.NodeID) (bool, error) {
	ok, err := k.store.Exists(ctx, nodeKey(id))
	if err != nil {
		return false, pkgerrors.NewDatabaseError("exists", err)
	}
	return ok, nil
}

func (k keyspace) putAttributes(ctx context.Context, id valueobjects.NodeID, attrs map[string]string) error {
	if err := k.store.SetAttributes(ctx, nodeKey(id), attrs); err != nil {
		return pkgerrors.NewDatabaseError("set_attributes", err)
	}
	return nil
}

func (k keyspace) putNode(ctx context.Context, n *entities.Node) error {
	return k.putAttributes(ctx, n.ID(), n.Attributes())
}

func (k keyspace) idSet(ctx context.Context, key string) ([]valueobjects.NodeID, error) {
	members, err := k.store.GetSet(ctx, key)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get_set", err)
	}
	ids := make([]valueobjects.NodeID, 0, len(members))
	for _, m := range members {
		id, err := valueobjects.ParseNodeID(m)
		if err != nil {
			return nil, pkgerrors.NewInternalError("set " + key + " holds a malformed id").WithCause(err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (k keyspace) parents(ctx context.Context, id valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	return k.idSet(ctx, parentsKey(id))
}

func (k keyspace) children(ctx context.Context, id valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	return k.idSet(ctx, childrenKey(id))
}

func (k keyspace) tombstones(ctx context.Context) (map[valueobjects.NodeID]struct{}, error) {
	ids, err := k.idSet(ctx, tombstoneKey)
	if err != nil {
		return nil, err
	}
	set := make(map[valueobjects.NodeID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (k keyspace) tombstone(ctx context.Context, id valueobjects.NodeID) error {
	if err := k.store.AddToSet(ctx, tombstoneKey, id.String()); err != nil {
		return pkgerrors.NewDatabaseError("add_to_set", err)
	}
	return nil
}

// addEdge inserts parent -> child into both adjacency sets
func (k keyspace) addEdge(ctx context.Context, parent, child valueobjects.NodeID) error {
	if err := k.store.AddToSet(ctx, parentsKey(child), parent.String()); err != nil {
		return pkgerrors.NewDatabaseError("add_to_set", err)
	}
	if err := k.store.AddToSet(ctx, childrenKey(parent), child.String()); err != nil {
		return pkgerrors.NewDatabaseError("add_to_set", err)
	}
	return nil
}

// removeEdge deletes parent -> child from both adjacency sets; absent edges are a no-op
func (k keyspace) removeEdge(ctx context.Context, parent, child valueobjects.NodeID) error {
	if err := k.store.RemoveFromSet(ctx, parentsKey(child), parent.String()); err != nil {
		return pkgerrors.NewDatabaseError("remove_from_set", err)
	}
	if err := k.store.RemoveFromSet(ctx, childrenKey(parent), child.String()); err != nil {
		return pkgerrors.NewDatabaseError("remove_from_set", err)
	}
	return nil
}
