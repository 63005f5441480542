package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"kgraph/application/services"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	memstore "kgraph/infrastructure/persistence/memory"
	memindex "kgraph/infrastructure/search/memory"
	pkgerrors "kgraph/pkg/errors"
	"kgraph/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingIndex struct {
	*memindex.Index
}

func (failingIndex) Query(ctx context.Context, text string, limit int) ([]entities.SearchHit, error) {
	return nil, errors.New("connection reset")
}

type fixture struct {
	engine *services.GraphEngine
	index  *memindex.Index
	facade *QueryFacade
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx := memindex.NewIndex()
	clock := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	e := services.NewGraphEngine(memstore.NewStore(), idx, zap.NewNop(), observability.NewCollector("test"),
		services.WithClock(func() time.Time { return clock }))
	_, err := e.Bootstrap(context.Background(), nil)
	require.NoError(t, err)
	return &fixture{engine: e, index: idx, facade: NewQueryFacade(e, idx, zap.NewNop())}
}

func (f *fixture) add(t *testing.T, title string, parent valueobjects.NodeID) valueobjects.NodeID {
	t.Helper()
	id, err := f.engine.AddNode(context.Background(), "concept", title, "", "", parent)
	require.NoError(t, err)
	return id
}

func nodeIDs(views []NodeView) []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestQueryFacade_GetNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", 0)

	view, err := f.facade.GetNode(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "A", view.Title)
	assert.Equal(t, "concept", view.Type)
	assert.Equal(t, "1717200000.000000", view.Created.String())

	_, err = f.facade.GetNode(ctx, 42)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestQueryFacade_AllIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", 0)
	b := f.add(t, "B", a)
	require.NoError(t, f.engine.RemoveNode(ctx, a))

	got, err := f.facade.AllIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{0, b}, got)
}

func TestQueryFacade_NodesList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", 0)
	b := f.add(t, "B", 0)
	c := f.add(t, "C", 0)
	require.NoError(t, f.engine.RemoveNode(ctx, c))

	got, err := f.facade.NodesList(ctx, []valueobjects.NodeID{b, 99, a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{b, a}, nodeIDs(got))
}

func TestQueryFacade_NodesListCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var all []valueobjects.NodeID
	for i := 0; i < MaxNodes+20; i++ {
		all = append(all, f.add(t, "n", 0))
	}

	got, err := f.facade.NodesList(ctx, all)
	require.NoError(t, err)
	require.Len(t, got, MaxNodes)
	assert.Equal(t, all[:MaxNodes], nodeIDs(got))
}

func TestQueryFacade_EdgesList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", 0)
	b := f.add(t, "B", a)
	require.NoError(t, f.engine.LinkNodes(ctx, b, a, false))

	got, err := f.facade.EdgesList(ctx, []valueobjects.NodeID{a, b})
	require.NoError(t, err)
	// (0,a) was dropped when b became a's parent
	assert.ElementsMatch(t, []entities.Edge{
		{Parent: b, Child: a},
		{Parent: a, Child: b},
	}, got)
	assert.Len(t, got, 2)
}

func TestQueryFacade_EdgesListCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < MaxEdges+10; i++ {
		f.add(t, "leaf", 0)
	}

	got, err := f.facade.EdgesList(ctx, []valueobjects.NodeID{0})
	require.NoError(t, err)
	assert.Len(t, got, MaxEdges)
}

func TestQueryFacade_NeighborIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", 0)
	b := f.add(t, "B", a)
	c := f.add(t, "C", a)
	d := f.add(t, "D", 0)
	require.NoError(t, f.engine.LinkNodes(ctx, d, a, true))

	// linking d above a dropped the root edge
	got, err := f.facade.NeighborIDs(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{a, b, c, d}, got)

	got, err = f.facade.NeighborIDs(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{d, 0, a}, got)

	_, err = f.facade.NeighborIDs(ctx, 77)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestQueryFacade_GraphProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", 0)
	b := f.add(t, "B", a)

	whole, err := f.facade.GraphProjection(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{0, a, b}, nodeIDs(whole.Nodes))
	assert.ElementsMatch(t, []entities.Edge{{Parent: 0, Child: a}, {Parent: a, Child: b}}, whole.Edges)

	partial, err := f.facade.GraphProjection(ctx, []valueobjects.NodeID{b})
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{b}, nodeIDs(partial.Nodes))
	assert.Equal(t, []entities.Edge{{Parent: a, Child: b}}, partial.Edges)
}

func TestQueryFacade_Neighborhood(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "A", 0)
	b := f.add(t, "B", a)
	c := f.add(t, "C", b)

	view, err := f.facade.Neighborhood(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{b, a, c}, nodeIDs(view.Nodes))
	assert.ElementsMatch(t, []entities.Edge{{Parent: a, Child: b}, {Parent: b, Child: c}}, view.Edges)
}

func TestQueryFacade_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.add(t, "graph theory", 0)
	b := f.add(t, "graph databases", 0)

	hits, err := f.facade.Search(ctx, "graph", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	t.Run("blank query", func(t *testing.T) {
		hits, err := f.facade.Search(ctx, "   ", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("stale hits are dropped", func(t *testing.T) {
		// resurrect a's document behind the engine's back
		require.NoError(t, f.engine.RemoveNode(ctx, a))
		require.NoError(t, f.index.Upsert(ctx, entities.SearchDocument{ID: a, Title: "graph theory"}))

		hits, err := f.facade.Search(ctx, "graph", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, b, hits[0].ID)
	})

	t.Run("index failure", func(t *testing.T) {
		facade := NewQueryFacade(f.engine, failingIndex{f.index}, zap.NewNop())
		_, err := facade.Search(ctx, "graph", 10)
		assert.True(t, pkgerrors.IsIndexUnavailable(err))
	})
}
