package entities

import (
	"encoding/json"
	"fmt"

	"kgraph/domain/core/valueobjects"
)

// Edge is a directed parent -> child link. It carries no attributes.
type Edge struct {
	Parent valueobjects.NodeID
	Child  valueobjects.NodeID
}

// Reverse returns the edge pointing the other way
func (e Edge) Reverse() Edge {
	return Edge{Parent: e.Child, Child: e.Parent}
}

// MarshalJSON encodes the edge as a [source, target] pair
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{e.Parent.Int64(), e.Child.Int64()})
}

// UnmarshalJSON decodes a [source, target] pair
func (e *Edge) UnmarshalJSON(data []byte) error {
	var pair []int64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("edge must have exactly 2 elements, got %d", len(pair))
	}
	if pair[0] < 0 || pair[1] < 0 {
		return fmt.Errorf("edge endpoints must be non-negative")
	}
	e.Parent = valueobjects.NodeID(pair[0])
	e.Child = valueobjects.NodeID(pair[1])
	return nil
}
