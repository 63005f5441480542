package entities

import (
	"math"
	"strconv"
	"time"

	"kgraph/domain/core/valueobjects"
	pkgerrors "kgraph/pkg/errors"
)

// NodeType is an open tag; the constants below are the well-known ones
type NodeType string

const (
	TypeRoot        NodeType = "root"
	TypeConcept     NodeType = "concept"
	TypeExplanation NodeType = "explanation"
	TypeComment     NodeType = "comment"
)

// Attribute names one field of the node schema. The set is closed.
type Attribute string

const (
	AttrID           Attribute = "id"
	AttrType         Attribute = "type"
	AttrTitle        Attribute = "title"
	AttrContent      Attribute = "content"
	AttrTags         Attribute = "tags"
	AttrCreated      Attribute = "created"
	AttrLastModified Attribute = "last_modified"
)

var knownAttributes = map[Attribute]struct{}{
	AttrID: {}, AttrType: {}, AttrTitle: {}, AttrContent: {},
	AttrTags: {}, AttrCreated: {}, AttrLastModified: {},
}

// ParseAttribute resolves a field name against the node schema
func ParseAttribute(name string) (Attribute, bool) {
	a := Attribute(name)
	_, ok := knownAttributes[a]
	return a, ok
}

// IsImmutable reports whether the attribute is protected from updates
func (a Attribute) IsImmutable() bool {
	return a == AttrID || a == AttrCreated || a == AttrLastModified
}

// IsSearchable reports whether the attribute is mirrored into the search index
func (a Attribute) IsSearchable() bool {
	switch a {
	case AttrType, AttrTitle, AttrContent, AttrTags:
		return true
	}
	return false
}

// Node is a unit of knowledge in the graph
type Node struct {
	id           valueobjects.NodeID
	nodeType     NodeType
	title        string
	content      string
	tags         string
	created      time.Time
	lastModified time.Time
}

// NewNode creates a node. Only id 0 may carry the root type; any other
// node asking for it becomes a concept.
func NewNode(id valueobjects.NodeID, nodeType NodeType, title, content, tags string, now time.Time) *Node {
	if nodeType == TypeRoot && !id.IsRoot() {
		nodeType = TypeConcept
	}
	if id.IsRoot() {
		nodeType = TypeRoot
	}
	now = now.UTC()
	return &Node{
		id:           id,
		nodeType:     nodeType,
		title:        title,
		content:      content,
		tags:         tags,
		created:      now,
		lastModified: now,
	}
}

// ReconstructNode rebuilds a node from its stored attribute map
func ReconstructNode(attrs map[string]string) (*Node, error) {
	rawID, ok := attrs[string(AttrID)]
	if !ok {
		return nil, pkgerrors.NewInternalError("stored node has no id attribute")
	}
	id, err := valueobjects.ParseNodeID(rawID)
	if err != nil {
		return nil, pkgerrors.NewInternalError("stored node has a malformed id").WithCause(err)
	}
	created, err := ParseTimestamp(attrs[string(AttrCreated)])
	if err != nil {
		return nil, pkgerrors.NewInternalError("stored node has a malformed created time").WithCause(err)
	}
	modified, err := ParseTimestamp(attrs[string(AttrLastModified)])
	if err != nil {
		return nil, pkgerrors.NewInternalError("stored node has a malformed last_modified time").WithCause(err)
	}

	return &Node{
		id:           id,
		nodeType:     NodeType(attrs[string(AttrType)]),
		title:        attrs[string(AttrTitle)],
		content:      attrs[string(AttrContent)],
		tags:         attrs[string(AttrTags)],
		created:      created,
		lastModified: modified,
	}, nil
}

// ID returns the node's identifier
func (n *Node) ID() valueobjects.NodeID { return n.id }

// Type returns the node's type tag
func (n *Node) Type() NodeType { return n.nodeType }

// Title returns the node's title
func (n *Node) Title() string { return n.title }

// Content returns the node's body
func (n *Node) Content() string { return n.content }

// Tags returns the comma-separated tag string
func (n *Node) Tags() string { return n.tags }

// Created returns the creation time
func (n *Node) Created() time.Time { return n.created }

// LastModified returns the time of the last attribute change
func (n *Node) LastModified() time.Time { return n.lastModified }

// Set changes one mutable attribute and refreshes last_modified.
func (n *Node) Set(attr Attribute, value string, now time.Time) error {
	if attr.IsImmutable() {
		return pkgerrors.NewImmutableError(string(attr))
	}
	switch attr {
	case AttrType:
		if NodeType(value) == TypeRoot {
			return pkgerrors.NewInvalidValueError("node type cannot be set to 'root'")
		}
		n.nodeType = NodeType(value)
	case AttrTitle:
		n.title = value
	case AttrContent:
		n.content = value
	case AttrTags:
		n.tags = value
	default:
		return pkgerrors.NewUnknownAttributeError(string(attr))
	}
	n.lastModified = now.UTC()
	return nil
}

// Attributes returns the full attribute map as persisted
func (n *Node) Attributes() map[string]string {
	return map[string]string{
		string(AttrID):           n.id.String(),
		string(AttrType):         string(n.nodeType),
		string(AttrTitle):        n.title,
		string(AttrContent):      n.content,
		string(AttrTags):         n.tags,
		string(AttrCreated):      FormatTimestamp(n.created),
		string(AttrLastModified): FormatTimestamp(n.lastModified),
	}
}

// Get returns the string form of one attribute
func (n *Node) Get(attr Attribute) string {
	return n.Attributes()[string(attr)]
}

// SearchDocument returns the derived, searchable projection of the node
func (n *Node) SearchDocument() SearchDocument {
	return SearchDocument{
		ID:      n.id,
		Type:    string(n.nodeType),
		Title:   n.title,
		Content: n.content,
		Tags:    n.tags,
	}
}

// FormatTimestamp encodes a time as UTC seconds with microsecond precision
func FormatTimestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

// ParseTimestamp decodes a value written by FormatTimestamp
func ParseTimestamp(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(int64(math.Round(f * 1e6))).UTC(), nil
}
