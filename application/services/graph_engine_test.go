package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	memstore "kgraph/infrastructure/persistence/memory"
	memindex "kgraph/infrastructure/search/memory"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

// flakyIndex is a memory index that can be switched off
type flakyIndex struct {
	*memindex.Index
	down    atomic.Bool
	updates []entities.SearchFieldUpdate
	mu      sync.Mutex
}

var errIndexDown = errors.New("index unreachable")

func newFlakyIndex() *flakyIndex {
	return &flakyIndex{Index: memindex.NewIndex()}
}

func (f *flakyIndex) Upsert(ctx context.Context, docs ...entities.SearchDocument) error {
	if f.down.Load() {
		return errIndexDown
	}
	return f.Index.Upsert(ctx, docs...)
}

func (f *flakyIndex) UpdateFields(ctx context.Context, update entities.SearchFieldUpdate) error {
	if f.down.Load() {
		return errIndexDown
	}
	f.mu.Lock()
	f.updates = append(f.updates, update)
	f.mu.Unlock()
	return f.Index.UpdateFields(ctx, update)
}

func (f *flakyIndex) Delete(ctx context.Context, id valueobjects.NodeID) error {
	if f.down.Load() {
		return errIndexDown
	}
	return f.Index.Delete(ctx, id)
}

func newTestEngine(t *testing.T, opts ...Option) (*GraphEngine, *flakyIndex) {
	t.Helper()
	idx := newFlakyIndex()
	e := NewGraphEngine(memstore.NewStore(), idx, zap.NewNop(), observability.NewCollector("test"), opts...)
	mode, err := e.Bootstrap(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, BootstrapFresh, mode)
	return e, idx
}

func mustAdd(t *testing.T, e *GraphEngine, title string, parent valueobjects.NodeID) valueobjects.NodeID {
	t.Helper()
	id, err := e.AddNode(context.Background(), "concept", title, "", "", parent)
	require.NoError(t, err)
	return id
}

func parentsOf(t *testing.T, e *GraphEngine, id valueobjects.NodeID) []valueobjects.NodeID {
	t.Helper()
	var out []valueobjects.NodeID
	require.NoError(t, e.Read(context.Background(), func(r GraphReader) error {
		var err error
		out, err = r.Parents(id)
		return err
	}))
	return out
}

func childrenOf(t *testing.T, e *GraphEngine, id valueobjects.NodeID) []valueobjects.NodeID {
	t.Helper()
	var out []valueobjects.NodeID
	require.NoError(t, e.Read(context.Background(), func(r GraphReader) error {
		var err error
		out, err = r.Children(id)
		return err
	}))
	return out
}

func nodeOf(t *testing.T, e *GraphEngine, id valueobjects.NodeID) *entities.Node {
	t.Helper()
	var n *entities.Node
	require.NoError(t, e.Read(context.Background(), func(r GraphReader) error {
		var err error
		n, err = r.Node(id)
		return err
	}))
	return n
}

func ids(v ...int64) []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, len(v))
	for i, x := range v {
		out[i] = valueobjects.NodeID(x)
	}
	return out
}

func TestBootstrap_Fresh(t *testing.T) {
	e, idx := newTestEngine(t)

	root := nodeOf(t, e, 0)
	assert.Equal(t, entities.TypeRoot, root.Type())
	assert.Equal(t, "root", root.Title())
	assert.Empty(t, parentsOf(t, e, 0), "root must not link to itself")
	assert.Empty(t, childrenOf(t, e, 0))

	_, ok := idx.Get(0)
	assert.True(t, ok)

	mode, err := e.Bootstrap(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, BootstrapResumed, mode)
}

func TestScenario_LinkUnlinkAndUpdate(t *testing.T) {
	ctx := context.Background()
	clock := t0
	e, idx := newTestEngine(t, WithClock(func() time.Time { return clock }))

	a := mustAdd(t, e, "A", 0)
	assert.Equal(t, valueobjects.NodeID(1), a)
	assert.Equal(t, ids(1), childrenOf(t, e, 0))

	b := mustAdd(t, e, "B", 1)
	assert.Equal(t, valueobjects.NodeID(2), b)
	assert.Equal(t, ids(1), parentsOf(t, e, 2))
	assert.NotContains(t, childrenOf(t, e, 0), valueobjects.NodeID(2))

	require.NoError(t, e.UnlinkNodes(ctx, 1, 2, false))
	assert.Empty(t, childrenOf(t, e, 1))
	assert.Equal(t, ids(0), parentsOf(t, e, 2))

	before := nodeOf(t, e, 1).LastModified()
	clock = t0.Add(time.Second)
	got, err := e.SetNodeAttr(ctx, 1, "title", "A2")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.NodeID(1), got)

	n := nodeOf(t, e, 1)
	assert.Equal(t, "A2", n.Title())
	assert.True(t, n.LastModified().After(before))
	assert.Equal(t, t0, n.Created())

	require.Len(t, idx.updates, 1)
	assert.Equal(t, entities.SearchFieldUpdate{
		ID:     1,
		Fields: map[entities.Attribute]string{entities.AttrTitle: "A2"},
	}, idx.updates[0])
}

func TestScenario_TwoWay(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	mustAdd(t, e, "A", 0)
	mustAdd(t, e, "B", 0)

	require.NoError(t, e.LinkNodes(ctx, 1, 2, true))
	assert.Equal(t, ids(1), parentsOf(t, e, 2))
	assert.Equal(t, ids(0, 2), parentsOf(t, e, 1))

	require.NoError(t, e.UnlinkNodes(ctx, 1, 2, true))
	assert.Empty(t, childrenOf(t, e, 1))
	assert.Empty(t, childrenOf(t, e, 2))
	assert.Equal(t, ids(0), parentsOf(t, e, 2))
	assert.Equal(t, ids(0), parentsOf(t, e, 1))
}

func TestUnlinkTwoWay_RehomesParentToo(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	mustAdd(t, e, "A", 0) // 1
	mustAdd(t, e, "B", 1) // 2
	require.NoError(t, e.LinkNodes(ctx, 2, 1, false))
	require.NoError(t, e.UnlinkNodes(ctx, 0, 1, false))
	assert.Equal(t, ids(2), parentsOf(t, e, 1))

	require.NoError(t, e.UnlinkNodes(ctx, 1, 2, true))
	assert.Equal(t, ids(0), parentsOf(t, e, 1))
	assert.Equal(t, ids(0), parentsOf(t, e, 2))
}

func TestLinkNodes_RootEdgeHandling(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	mustAdd(t, e, "A", 0) // 1
	mustAdd(t, e, "B", 0) // 2

	require.NoError(t, e.LinkNodes(ctx, 1, 2, false))
	assert.Equal(t, ids(1), parentsOf(t, e, 2), "stale root edge is removed")

	require.NoError(t, e.LinkNodes(ctx, 0, 2, false))
	assert.Equal(t, ids(0, 1), parentsOf(t, e, 2), "explicit root link keeps other parents")

	require.NoError(t, e.LinkNodes(ctx, 1, 0, false))
	assert.Equal(t, ids(1), parentsOf(t, e, 0))
	assert.Equal(t, ids(0, 2), childrenOf(t, e, 1))
}

func TestLinkNodes_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	mustAdd(t, e, "A", 0)
	mustAdd(t, e, "B", 0)

	require.NoError(t, e.LinkNodes(ctx, 1, 2, false))
	first, err := e.Export(ctx)
	require.NoError(t, err)

	require.NoError(t, e.LinkNodes(ctx, 1, 2, false))
	second, err := e.Export(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Edges, second.Edges)
}

func TestLinkAndUnlink_Validation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	mustAdd(t, e, "A", 0)
	mustAdd(t, e, "B", 0)
	require.NoError(t, e.RemoveNode(ctx, 2))

	tests := []struct {
		name  string
		run   func() error
		check func(error) bool
	}{
		{"link self", func() error { return e.LinkNodes(ctx, 1, 1, false) }, pkgerrors.IsInvalidArgument},
		{"unlink root from root", func() error { return e.UnlinkNodes(ctx, 0, 0, false) }, pkgerrors.IsInvalidArgument},
		{"link unknown child", func() error { return e.LinkNodes(ctx, 1, 42, false) }, pkgerrors.IsNotFound},
		{"link unknown parent", func() error { return e.LinkNodes(ctx, -1, 1, false) }, pkgerrors.IsNotFound},
		{"link tombstoned", func() error { return e.LinkNodes(ctx, 1, 2, false) }, pkgerrors.IsNotFound},
		{"unlink tombstoned", func() error { return e.UnlinkNodes(ctx, 2, 1, false) }, pkgerrors.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestAddNode(t *testing.T) {
	ctx := context.Background()
	e, idx := newTestEngine(t, WithClock(func() time.Time { return t0 }))

	id, err := e.AddNode(ctx, "root", "Sneaky", "body", "a,b", 0)
	require.NoError(t, err)

	n := nodeOf(t, e, id)
	assert.Equal(t, entities.TypeConcept, n.Type())
	assert.Equal(t, "body", n.Content())
	assert.Equal(t, "a,b", n.Tags())
	assert.Equal(t, t0, n.Created())
	assert.Equal(t, t0, n.LastModified())

	doc, ok := idx.Get(id)
	require.True(t, ok)
	assert.Equal(t, "concept", doc.Type)
	assert.Equal(t, "Sneaky", doc.Title)

	_, err = e.AddNode(ctx, "concept", "orphan", "", "", 77)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	next := mustAdd(t, e, "next", 0)
	assert.Equal(t, id+1, next, "a rejected create must not consume an id")
}

func TestAddNode_IDsMonotonic(t *testing.T) {
	e, _ := newTestEngine(t)

	prev := valueobjects.RootID
	for i := 0; i < 20; i++ {
		id := mustAdd(t, e, "n", 0)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestAddNode_ConcurrentIDsUnique(t *testing.T) {
	e, _ := newTestEngine(t)

	const workers = 16
	const perWorker = 25

	var wg sync.WaitGroup
	results := make(chan valueobjects.NodeID, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := e.AddNode(context.Background(), "concept", "c", "", "", 0)
				if err == nil {
					results <- id
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[valueobjects.NodeID]bool)
	for id := range results {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
	for i := int64(1); i <= workers*perWorker; i++ {
		assert.True(t, seen[valueobjects.NodeID(i)], "missing id %d", i)
	}
}

func TestSetNodeAttr_Errors(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	mustAdd(t, e, "A", 0)
	mustAdd(t, e, "B", 0)
	require.NoError(t, e.RemoveNode(ctx, 2))

	tests := []struct {
		name  string
		id    valueobjects.NodeID
		attr  string
		value string
		check func(error) bool
	}{
		{"missing attr", 1, "", "x", pkgerrors.IsInvalidArgument},
		{"id immutable", 1, "id", "9", pkgerrors.IsImmutable},
		{"created immutable", 1, "created", "0", pkgerrors.IsImmutable},
		{"last_modified immutable", 1, "last_modified", "0", pkgerrors.IsImmutable},
		{"immutable checked before target", 0, "id", "9", pkgerrors.IsImmutable},
		{"immutable on missing node", 99, "created", "0", pkgerrors.IsImmutable},
		{"root target", 0, "title", "x", pkgerrors.IsInvalidTarget},
		{"root target type", 0, "type", "root", pkgerrors.IsInvalidTarget},
		{"missing node", 99, "title", "x", pkgerrors.IsInvalidTarget},
		{"tombstoned node", 2, "title", "x", pkgerrors.IsInvalidTarget},
		{"type root", 1, "type", "root", pkgerrors.IsInvalidValue},
		{"unknown attribute", 1, "color", "red", pkgerrors.IsUnknownAttribute},
		{"unknown attribute with root value", 1, "color", "root", pkgerrors.IsUnknownAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.SetNodeAttr(ctx, tt.id, tt.attr, tt.value)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	assert.Equal(t, "A", nodeOf(t, e, 1).Title())
}

func TestSetNodeAttr_LastModifiedAlwaysAdvances(t *testing.T) {
	ctx := context.Background()
	e, idx := newTestEngine(t, WithClock(func() time.Time { return t0 }))
	mustAdd(t, e, "A", 0)

	_, err := e.SetNodeAttr(ctx, 1, "content", "one")
	require.NoError(t, err)
	first := nodeOf(t, e, 1).LastModified()
	assert.True(t, first.After(t0))

	_, err = e.SetNodeAttr(ctx, 1, "tags", "x")
	require.NoError(t, err)
	assert.True(t, nodeOf(t, e, 1).LastModified().After(first))

	_, err = e.SetNodeAttr(ctx, 1, "type", "explanation")
	require.NoError(t, err)
	assert.Equal(t, entities.TypeExplanation, nodeOf(t, e, 1).Type())

	doc, _ := idx.Get(1)
	assert.Equal(t, "explanation", doc.Type)
	assert.Equal(t, "x", doc.Tags)
}

func TestRemoveNode(t *testing.T) {
	ctx := context.Background()
	e, idx := newTestEngine(t)

	mustAdd(t, e, "A", 0) // 1
	mustAdd(t, e, "B", 1) // 2
	mustAdd(t, e, "C", 1) // 3
	mustAdd(t, e, "D", 0) // 4
	require.NoError(t, e.LinkNodes(ctx, 4, 3, false))

	require.NoError(t, e.RemoveNode(ctx, 1))

	assert.Equal(t, ids(0), parentsOf(t, e, 2), "orphaned child re-homed to root")
	assert.Equal(t, ids(4), parentsOf(t, e, 3), "child with another parent keeps it")
	assert.NotContains(t, childrenOf(t, e, 0), valueobjects.NodeID(1))

	_, ok := idx.Get(1)
	assert.False(t, ok)

	require.NoError(t, e.Read(ctx, func(r GraphReader) error {
		assert.False(t, r.Exists(1))
		assert.Equal(t, ids(0, 2, 3, 4), r.LiveIDs())
		assert.Equal(t, ids(1), r.Tombstones())
		_, err := r.Node(1)
		assert.True(t, pkgerrors.IsNotFound(err))
		return nil
	}))

	assert.Equal(t, valueobjects.NodeID(5), mustAdd(t, e, "E", 0), "ids are never reused")

	err := e.RemoveNode(ctx, 1)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = e.RemoveNode(ctx, 0)
	assert.True(t, pkgerrors.IsInvalidTarget(err))
}

func TestRemoveNode_TwoWayNeighbour(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	mustAdd(t, e, "A", 0) // 1
	mustAdd(t, e, "B", 1) // 2
	require.NoError(t, e.LinkNodes(ctx, 1, 2, true))

	require.NoError(t, e.RemoveNode(ctx, 2))
	assert.Equal(t, ids(0), parentsOf(t, e, 1))
	assert.Empty(t, childrenOf(t, e, 1))
}

func TestRootReachability_RandomOperations(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 12; i++ {
		mustAdd(t, e, "n", valueobjects.NodeID(rng.Intn(i+1)))
	}

	for step := 0; step < 400; step++ {
		var live []valueobjects.NodeID
		require.NoError(t, e.Read(ctx, func(r GraphReader) error {
			live = r.LiveIDs()
			return nil
		}))

		p := live[rng.Intn(len(live))]
		c := live[rng.Intn(len(live))]
		twoWay := rng.Intn(4) == 0

		var err error
		switch op := rng.Intn(10); {
		case op < 5:
			err = e.LinkNodes(ctx, p, c, twoWay)
		case op < 9:
			err = e.UnlinkNodes(ctx, p, c, twoWay)
		default:
			if !c.IsRoot() && len(live) > 4 {
				err = e.RemoveNode(ctx, c)
			}
		}
		if p == c && err != nil {
			require.True(t, pkgerrors.IsInvalidArgument(err))
		} else {
			require.NoError(t, err)
		}

		require.NoError(t, e.Read(ctx, func(r GraphReader) error {
			for _, id := range r.LiveIDs() {
				if id.IsRoot() {
					continue
				}
				parents, err := r.Parents(id)
				require.NoError(t, err)
				require.NotEmpty(t, parents, "node %d lost all parents at step %d", id, step)
				for _, p := range parents {
					require.True(t, r.Exists(p), "node %d has dead parent %d", id, p)
				}
			}
			return nil
		}))
	}
}

func TestIndexFailures_AreNonFatal(t *testing.T) {
	ctx := context.Background()
	e, idx := newTestEngine(t)
	mustAdd(t, e, "A", 0)

	idx.down.Store(true)

	id, err := e.AddNode(ctx, "concept", "B", "", "", 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNonFatal(err))
	assert.ErrorIs(t, err, errIndexDown)
	assert.Equal(t, valueobjects.NodeID(2), id)
	assert.Equal(t, "B", nodeOf(t, e, id).Title())

	got, err := e.SetNodeAttr(ctx, 1, "title", "A2")
	assert.True(t, pkgerrors.IsNonFatal(err))
	assert.Equal(t, valueobjects.NodeID(1), got)
	assert.Equal(t, "A2", nodeOf(t, e, 1).Title())

	err = e.RemoveNode(ctx, 2)
	assert.True(t, pkgerrors.IsNonFatal(err))

	_, err = e.SetNodeAttr(ctx, 1, "content", "not searchable? it is")
	assert.True(t, pkgerrors.IsNonFatal(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.IndexFailures.WithLabelValues("upsert")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.IndexFailures.WithLabelValues("update_fields")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.IndexFailures.WithLabelValues("delete")))
}

func TestReindex(t *testing.T) {
	ctx := context.Background()
	e, idx := newTestEngine(t)
	mustAdd(t, e, "A", 0)
	mustAdd(t, e, "B", 0)
	require.NoError(t, e.RemoveNode(ctx, 2))

	idx.down.Store(true)
	res, err := e.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReindexResult{Indexed: 0, Failed: 2}, res)

	idx.down.Store(false)
	res, err = e.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReindexResult{Indexed: 2, Failed: 0}, res)
}
