package valueobjects

import (
	"errors"
	"strconv"
)

// NodeID identifies a node. Ids are dense, assigned from 0 upward and never reused.
type NodeID int64

// RootID is the permanent root node
const RootID NodeID = 0

// ParseNodeID parses a decimal node id
func ParseNodeID(s string) (NodeID, error) {
	if s == "" {
		return 0, errors.New("node ID cannot be empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.New("node ID must be an integer")
	}
	if v < 0 {
		return 0, errors.New("node ID must be non-negative")
	}
	return NodeID(v), nil
}

// IsRoot reports whether this is the root node
func (id NodeID) IsRoot() bool {
	return id == RootID
}

// String returns the decimal representation
func (id NodeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Int64 returns the raw value
func (id NodeID) Int64() int64 {
	return int64(id)
}
