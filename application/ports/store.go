package ports

import (
	"context"

	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
)

// AttributeStore is the persistent key/value backend behind the graph.
// It holds one attribute map per key, plain values, counters and string sets.
// Everything is keyed by string; the graph engine owns the key scheme.
// This is a port in hexagonal architecture - the engine doesn't know about the implementation.
type AttributeStore interface {
	// SetAttributes writes (merges) fields into the attribute map at key
	SetAttributes(ctx context.Context, key string, attrs map[string]string) error

	// GetAttributes returns the whole attribute map; empty if key is absent
	GetAttributes(ctx context.Context, key string) (map[string]string, error)

	// GetAttribute returns a single field and whether it was present
	GetAttribute(ctx context.Context, key, field string) (string, bool, error)

	// HasAttribute reports whether the field exists on key
	HasAttribute(ctx context.Context, key, field string) (bool, error)

	// SetValue stores a plain value
	SetValue(ctx context.Context, key, value string) error

	// GetValue returns a plain value and whether it was present
	GetValue(ctx context.Context, key string) (string, bool, error)

	// Increment adds one to the integer value at key and returns the result
	Increment(ctx context.Context, key string) (int64, error)

	// Exists reports whether anything is stored under key
	Exists(ctx context.Context, key string) (bool, error)

	// AddToSet adds member to the set at key; adding twice is a no-op
	AddToSet(ctx context.Context, key, member string) error

	// RemoveFromSet removes member; removing an absent member is a no-op
	RemoveFromSet(ctx context.Context, key, member string) error

	// GetSet returns all members of the set at key in no particular order
	GetSet(ctx context.Context, key string) ([]string, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error

	// Close releases backend resources
	Close() error
}

// SearchIndex is the full-text backend mirroring searchable node fields.
// It is a best-effort projection of the graph, never the source of truth.
type SearchIndex interface {
	// Upsert inserts or replaces whole documents keyed by id
	Upsert(ctx context.Context, docs ...entities.SearchDocument) error

	// UpdateFields sets individual fields of an indexed document
	UpdateFields(ctx context.Context, update entities.SearchFieldUpdate) error

	// Delete removes a document; deleting an unknown id is a no-op
	Delete(ctx context.Context, id valueobjects.NodeID) error

	// Query runs a free-text query and returns hits ordered by relevance
	Query(ctx context.Context, text string, limit int) ([]entities.SearchHit, error)

	// Close releases backend resources
	Close() error
}
