package entities

import "kgraph/domain/core/valueobjects"

// SearchDocument is the denormalized, searchable projection of a node.
// It is derived from the graph and never authoritative.
type SearchDocument struct {
	ID      valueobjects.NodeID `json:"id"`
	Type    string              `json:"type"`
	Title   string              `json:"title"`
	Content string              `json:"content"`
	Tags    string              `json:"tags"`
}

// SearchFieldUpdate sets individual fields of an already indexed document,
// leaving the others untouched.
type SearchFieldUpdate struct {
	ID     valueobjects.NodeID
	Fields map[Attribute]string
}

// Apply merges the update into a document
func (u SearchFieldUpdate) Apply(doc *SearchDocument) {
	for attr, v := range u.Fields {
		switch attr {
		case AttrType:
			doc.Type = v
		case AttrTitle:
			doc.Title = v
		case AttrContent:
			doc.Content = v
		case AttrTags:
			doc.Tags = v
		}
	}
}

// SearchHit is one ranked search result
type SearchHit struct {
	ID    valueobjects.NodeID `json:"id"`
	Title string              `json:"title"`
}
