// Package memory provides an in-process SearchIndex with weighted term scoring.
package memory

import (
	"context"
	"sort"
	"sync"

	"kgraph/application/ports"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	"kgraph/infrastructure/search"
)

// Field weights; a title match outranks a tag match, which outranks body text.
const (
	titleWeight   = 3
	tagsWeight    = 2
	contentWeight = 1
	typeWeight    = 1
)

// Index is a map-backed SearchIndex
type Index struct {
	mu   sync.RWMutex
	docs map[valueobjects.NodeID]entities.SearchDocument
}

var _ ports.SearchIndex = (*Index)(nil)

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{docs: make(map[valueobjects.NodeID]entities.SearchDocument)}
}

// Upsert replaces whole documents
func (i *Index) Upsert(ctx context.Context, docs ...entities.SearchDocument) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, d := range docs {
		i.docs[d.ID] = d
	}
	return nil
}

// UpdateFields merges fields into a document, creating it if needed
func (i *Index) UpdateFields(ctx context.Context, update entities.SearchFieldUpdate) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	doc, ok := i.docs[update.ID]
	if !ok {
		doc = entities.SearchDocument{ID: update.ID}
	}
	update.Apply(&doc)
	i.docs[update.ID] = doc
	return nil
}

// Delete removes a document
func (i *Index) Delete(ctx context.Context, id valueobjects.NodeID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.docs, id)
	return nil
}

// Get returns the indexed document for id
func (i *Index) Get(id valueobjects.NodeID) (entities.SearchDocument, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	d, ok := i.docs[id]
	return d, ok
}

// Len returns the number of indexed documents
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

type scored struct {
	hit   entities.SearchHit
	score int
}

// Query ranks documents by weighted term frequency. Ties break on ascending id.
// A limit of zero or less returns every match.
func (i *Index) Query(ctx context.Context, text string, limit int) ([]entities.SearchHit, error) {
	terms := search.Tokenize(text)
	if len(terms) == 0 {
		return []entities.SearchHit{}, nil
	}

	i.mu.RLock()
	results := make([]scored, 0)
	for _, d := range i.docs {
		if s := score(d, terms); s > 0 {
			results = append(results, scored{hit: entities.SearchHit{ID: d.ID, Title: d.Title}, score: s})
		}
	}
	i.mu.RUnlock()

	sort.Slice(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return results[a].hit.ID < results[b].hit.ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	hits := make([]entities.SearchHit, len(results))
	for n, r := range results {
		hits[n] = r.hit
	}
	return hits, nil
}

func score(d entities.SearchDocument, terms []string) int {
	fields := []struct {
		text   string
		weight int
	}{
		{d.Title, titleWeight},
		{d.Tags, tagsWeight},
		{d.Content, contentWeight},
		{d.Type, typeWeight},
	}

	total := 0
	for _, f := range fields {
		counts := make(map[string]int)
		for _, tok := range search.Tokenize(f.text) {
			counts[tok]++
		}
		for _, t := range terms {
			total += counts[t] * f.weight
		}
	}
	return total
}

// Close is a no-op
func (i *Index) Close() error { return nil }
