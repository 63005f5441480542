package queries

import (
	"encoding/json"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
)

// NodeView is the read model of one node. Timestamps keep the stored
// UTC-seconds form.
type NodeView struct {
	ID           valueobjects.NodeID `json:"id"`
	Type         string              `json:"type"`
	Title        string              `json:"title"`
	Content      string              `json:"content"`
	Tags         string              `json:"tags"`
	Created      json.Number         `json:"created"`
	LastModified json.Number         `json:"last_modified"`
}

// NewNodeView projects a node entity
func NewNodeView(n *entities.Node) NodeView {
	return NodeView{
		ID:           n.ID(),
		Type:         string(n.Type()),
		Title:        n.Title(),
		Content:      n.Content(),
		Tags:         n.Tags(),
		Created:      json.Number(n.Get(entities.AttrCreated)),
		LastModified: json.Number(n.Get(entities.AttrLastModified)),
	}
}

// GraphView is a nodes + edges projection. Edges encode as [parent, child].
type GraphView struct {
	Nodes []NodeView      `json:"nodes"`
	Edges []entities.Edge `json:"edges"`
}
