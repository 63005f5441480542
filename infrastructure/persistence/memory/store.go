package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"kgraph/application/ports"
)

// Store is an in-process AttributeStore. Like Redis, hashes, values and sets
// share one keyspace and a key holds exactly one kind of entry.
type Store struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
	values map[string]string
	sets   map[string]map[string]struct{}
}

var _ ports.AttributeStore = (*Store)(nil)

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		hashes: make(map[string]map[string]string),
		values: make(map[string]string),
		sets:   make(map[string]map[string]struct{}),
	}
}

func wrongType(key string) error {
	return fmt.Errorf("key %q holds the wrong kind of value", key)
}

func (s *Store) existsLocked(key string) bool {
	if _, ok := s.hashes[key]; ok {
		return true
	}
	if _, ok := s.values[key]; ok {
		return true
	}
	_, ok := s.sets[key]
	return ok
}

// SetAttributes merges fields into the hash at key
func (s *Store) SetAttributes(ctx context.Context, key string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok {
		if s.existsLocked(key) {
			return wrongType(key)
		}
		h = make(map[string]string, len(attrs))
		s.hashes[key] = h
	}
	for k, v := range attrs {
		h[k] = v
	}
	return nil
}

// GetAttributes returns a copy of the hash at key
func (s *Store) GetAttributes(ctx context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// GetAttribute returns one hash field
func (s *Store) GetAttribute(ctx context.Context, key, field string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.hashes[key][field]
	return v, ok, nil
}

// HasAttribute reports whether a hash field exists
func (s *Store) HasAttribute(ctx context.Context, key, field string) (bool, error) {
	_, ok, err := s.GetAttribute(ctx, key, field)
	return ok, err
}

// SetValue stores a plain value
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok && s.existsLocked(key) {
		return wrongType(key)
	}
	s.values[key] = value
	return nil
}

// GetValue returns a plain value
func (s *Store) GetValue(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

// Increment adds one to an integer value, treating a missing key as 0
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if raw, ok := s.values[key]; ok {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer", key)
		}
		n = parsed
	} else if s.existsLocked(key) {
		return 0, wrongType(key)
	}
	n++
	s.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

// Exists reports whether anything is stored under key
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.existsLocked(key), nil
}

// AddToSet adds a member to the set at key
func (s *Store) AddToSet(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		if s.existsLocked(key) {
			return wrongType(key)
		}
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// RemoveFromSet removes a member; empty sets disappear as in Redis
func (s *Store) RemoveFromSet(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	delete(set, member)
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return nil
}

// GetSet returns the members of the set at key
func (s *Store) GetSet(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
