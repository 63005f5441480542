package entities

import "kgraph/domain/core/valueobjects"

// SnapshotVersion is the current snapshot format version
const SnapshotVersion = 1

// Snapshot is a complete, serializable copy of the graph.
// Nodes are attribute maps ordered by id; tombstoned ids carry no node entry.
type Snapshot struct {
	Version    int                   `json:"version"`
	NextID     valueobjects.NodeID   `json:"next_id"`
	Nodes      []map[string]string   `json:"nodes"`
	Edges      []Edge                `json:"edges"`
	Tombstones []valueobjects.NodeID `json:"tombstones"`
}
