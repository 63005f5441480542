package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleSnapshot() *entities.Snapshot {
	return &entities.Snapshot{
		Version: entities.SnapshotVersion,
		NextID:  3,
		Nodes: []map[string]string{
			{
				"id": "0", "type": "root", "title": "root", "content": "", "tags": "",
				"created": "1717200000.000000", "last_modified": "1717200000.000000",
			},
			{
				"id": "2", "type": "concept", "title": "Category theory", "content": "Sets and morphisms", "tags": "math",
				"created": "1717200001.500000", "last_modified": "1717200002.000000",
			},
		},
		Edges:      []entities.Edge{{Parent: 0, Child: 2}},
		Tombstones: []valueobjects.NodeID{1},
	}
}

func TestEncode_Golden(t *testing.T) {
	data, err := Encode(sampleSnapshot())
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "snapshot", data)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	store := NewFileStore(path, zap.NewNop())

	require.NoError(t, store.Save(sampleSnapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), loaded)
}

func TestFileStore_RotatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	store := NewFileStore(path, zap.NewNop())

	first := sampleSnapshot()
	require.NoError(t, store.Save(first))

	second := sampleSnapshot()
	second.NextID = 4
	require.NoError(t, store.Save(second))

	backup, err := os.ReadFile(path + BackupSuffix)
	require.NoError(t, err)
	old, err := Decode(backup)
	require.NoError(t, err)
	assert.Equal(t, first.NextID, old.NextID)

	current, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, second.NextID, current.NextID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files must not be left behind")
}

func TestFileStore_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "graph.json")
	require.NoError(t, NewFileStore(path, zap.NewNop()).Save(sampleSnapshot()))
	assert.FileExists(t, path)
}

func TestFileStore_Load(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		snap, err := NewFileStore(filepath.Join(t.TempDir(), "none.json"), zap.NewNop()).Load()
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err := NewFileStore(path, zap.NewNop()).Load()
		assert.Error(t, err)
	})

	t.Run("falls back to backup", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.json")
		data, err := Encode(sampleSnapshot())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path+BackupSuffix, data, 0o644))

		snap, err := NewFileStore(path, zap.NewNop()).Load()
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, valueobjects.NodeID(3), snap.NextID)
	})
}
