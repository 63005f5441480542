package services

import (
	"context"
	"testing"
	"time"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	memstore "kgraph/infrastructure/persistence/memory"
	memindex "kgraph/infrastructure/search/memory"
	pkgerrors "kgraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildSampleGraph(t *testing.T) *GraphEngine {
	t.Helper()
	ctx := context.Background()
	e, _ := newTestEngine(t, WithClock(func() time.Time { return t0 }))

	mustAdd(t, e, "A", 0) // 1
	mustAdd(t, e, "B", 1) // 2
	mustAdd(t, e, "C", 1) // 3
	require.NoError(t, e.LinkNodes(ctx, 2, 3, true))
	require.NoError(t, e.RemoveNode(ctx, 1))
	return e
}

func TestExport(t *testing.T) {
	e := buildSampleGraph(t)

	snap, err := e.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entities.SnapshotVersion, snap.Version)
	assert.Equal(t, valueobjects.NodeID(4), snap.NextID)
	assert.Equal(t, ids(1), snap.Tombstones)
	require.Len(t, snap.Nodes, 3)
	assert.Equal(t, "0", snap.Nodes[0]["id"])
	assert.Equal(t, "C", snap.Nodes[2]["title"])
	// 2 and 3 keep each other as parents, so neither is re-linked under root
	assert.Equal(t, []entities.Edge{
		{Parent: 2, Child: 3},
		{Parent: 3, Child: 2},
	}, snap.Edges)
}

func TestImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := buildSampleGraph(t)
	snap, err := src.Export(ctx)
	require.NoError(t, err)

	idx := memindex.NewIndex()
	dst := NewGraphEngine(memstore.NewStore(), idx, zap.NewNop(), nil)
	require.NoError(t, dst.Import(ctx, snap))

	again, err := dst.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, again)
	assert.Equal(t, 3, idx.Len())

	id, err := dst.AddNode(ctx, "concept", "D", "", "", 3)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.NodeID(4), id)
}

func TestImport_RejectsInitializedStore(t *testing.T) {
	ctx := context.Background()
	e := buildSampleGraph(t)
	snap, err := e.Export(ctx)
	require.NoError(t, err)

	err = e.Import(ctx, snap)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidArgument(err))
}

func TestValidateSnapshot(t *testing.T) {
	root := entities.NewNode(0, entities.TypeRoot, "root", "", "", t0).Attributes()
	one := entities.NewNode(1, entities.TypeConcept, "A", "", "", t0).Attributes()
	rootTyped := entities.NewNode(1, entities.TypeConcept, "A", "", "", t0).Attributes()
	rootTyped["type"] = string(entities.TypeRoot)

	tests := []struct {
		name string
		snap entities.Snapshot
	}{
		{"wrong version", entities.Snapshot{Version: 9, NextID: 1, Nodes: []map[string]string{root}}},
		{"no root", entities.Snapshot{Version: 1, NextID: 2, Nodes: []map[string]string{one}}},
		{"node beyond next_id", entities.Snapshot{Version: 1, NextID: 1, Nodes: []map[string]string{root, one}}},
		{"duplicate node", entities.Snapshot{Version: 1, NextID: 2, Nodes: []map[string]string{root, one, one}}},
		{"edge to unknown node", entities.Snapshot{Version: 1, NextID: 2,
			Nodes: []map[string]string{root, one}, Edges: []entities.Edge{{Parent: 0, Child: 5}}}},
		{"self loop", entities.Snapshot{Version: 1, NextID: 2,
			Nodes: []map[string]string{root, one}, Edges: []entities.Edge{{Parent: 1, Child: 1}}}},
		{"tombstoned root", entities.Snapshot{Version: 1, NextID: 2,
			Nodes: []map[string]string{root, one}, Tombstones: ids(0)}},
		{"live and tombstoned", entities.Snapshot{Version: 1, NextID: 2,
			Nodes: []map[string]string{root, one}, Tombstones: ids(1)}},
		{"unaccounted id", entities.Snapshot{Version: 1, NextID: 4,
			Nodes: []map[string]string{root, one}, Tombstones: ids(2)}},
		{"root type on non-root node", entities.Snapshot{Version: 1, NextID: 2,
			Nodes: []map[string]string{root, rootTyped}}},
		{"malformed node", entities.Snapshot{Version: 1, NextID: 1,
			Nodes: []map[string]string{{"id": "zero"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validateSnapshot(&tt.snap))
		})
	}
}

func TestImport_RepairsParentlessNodes(t *testing.T) {
	ctx := context.Background()
	snap := &entities.Snapshot{
		Version: 1,
		NextID:  2,
		Nodes: []map[string]string{
			entities.NewNode(0, entities.TypeRoot, "root", "", "", t0).Attributes(),
			entities.NewNode(1, entities.TypeConcept, "A", "", "", t0).Attributes(),
		},
	}

	e := NewGraphEngine(memstore.NewStore(), memindex.NewIndex(), zap.NewNop(), nil)
	require.NoError(t, e.Import(ctx, snap))
	assert.Equal(t, ids(0), parentsOf(t, e, 1))
}

func TestBootstrap_FromSnapshot(t *testing.T) {
	ctx := context.Background()
	snap, err := buildSampleGraph(t).Export(ctx)
	require.NoError(t, err)

	e := NewGraphEngine(memstore.NewStore(), memindex.NewIndex(), zap.NewNop(), nil)
	mode, err := e.Bootstrap(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, BootstrapRestored, mode)
	assert.Equal(t, "C", nodeOf(t, e, 3).Title())
}

func TestBootstrap_InvalidSnapshotFallsBackToFresh(t *testing.T) {
	ctx := context.Background()
	e := NewGraphEngine(memstore.NewStore(), memindex.NewIndex(), zap.NewNop(), nil)

	mode, err := e.Bootstrap(ctx, &entities.Snapshot{Version: 1, NextID: 0})
	require.NoError(t, err)
	assert.Equal(t, BootstrapFresh, mode)

	require.NoError(t, e.Read(ctx, func(r GraphReader) error {
		assert.Equal(t, ids(0), r.LiveIDs())
		return nil
	}))
}

func TestImport_RejectsGapsInIDRange(t *testing.T) {
	ctx := context.Background()
	snap, err := buildSampleGraph(t).Export(ctx)
	require.NoError(t, err)
	snap.NextID = 10

	e := NewGraphEngine(memstore.NewStore(), memindex.NewIndex(), zap.NewNop(), nil)
	err = e.Import(ctx, snap)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsInvalidArgument(err))

	require.NoError(t, e.Read(ctx, func(r GraphReader) error {
		assert.Equal(t, valueobjects.NodeID(0), r.NextID())
		return nil
	}))
}
