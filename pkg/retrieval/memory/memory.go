// Package memory provides an in-process VectorStore for tests and small
// corpora. It implements the full adapter contract — lazy idempotent
// collection creation, last-write-wins upsert, cosine search with stable
// insertion-order tie-breaks and payload-filtered deletes — without any
// external service.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

// Store is an in-memory vector store. The zero value is not usable; call New.
// All methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dims   int
	points map[string]*storedPoint
	nextSeq int
}

type storedPoint struct {
	point retrieval.Point
	// seq is assigned on first insert and survives overwrites, giving
	// search a stable insertion-order tie-break.
	seq int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// EnsureCollection creates the collection if absent. An existing collection
// with a different dimensionality is a schema conflict.
func (s *Store) EnsureCollection(_ context.Context, coll retrieval.Collection, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[coll.Name()]
	if !ok {
		s.collections[coll.Name()] = &collection{
			dims:   dims,
			points: make(map[string]*storedPoint),
		}
		return nil
	}
	if existing.dims != dims {
		return &retrieval.SchemaConflictError{Collection: coll.Name(), Want: existing.dims, Got: dims}
	}
	return nil
}

// Upsert writes points, overwriting existing IDs in place. Vectors must
// match the collection dimensionality.
func (s *Store) Upsert(_ context.Context, coll retrieval.Collection, points []retrieval.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[coll.Name()]
	if !ok {
		return &retrieval.InputError{Msg: "collection " + coll.Name() + " does not exist"}
	}

	for _, p := range points {
		if len(p.Vector) != c.dims {
			return &retrieval.SchemaConflictError{Collection: coll.Name(), Want: c.dims, Got: len(p.Vector)}
		}
	}
	for _, p := range points {
		if existing, ok := c.points[p.ID]; ok {
			existing.point = clonePoint(p)
			continue
		}
		c.points[p.ID] = &storedPoint{point: clonePoint(p), seq: c.nextSeq}
		c.nextSeq++
	}
	return nil
}

// Search returns up to topK points by cosine similarity descending, ties
// broken by insertion order. A collection that was never created yields an
// empty result, matching a tenant that has not ingested anything yet.
func (s *Store) Search(_ context.Context, coll retrieval.Collection, vector retrieval.EmbeddingVector, topK int) ([]retrieval.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll.Name()]
	if !ok || topK <= 0 {
		return nil, nil
	}
	if len(vector) != c.dims {
		return nil, &retrieval.SchemaConflictError{Collection: coll.Name(), Want: c.dims, Got: len(vector)}
	}

	type scored struct {
		point *storedPoint
		score float64
	}
	hits := make([]scored, 0, len(c.points))
	for _, p := range c.points {
		hits = append(hits, scored{point: p, score: cosineSimilarity(vector, p.point.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].point.seq < hits[j].point.seq
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	results := make([]retrieval.ScoredPoint, len(hits))
	for i, h := range hits {
		results[i] = retrieval.ScoredPoint{
			ID:      h.point.point.ID,
			Score:   h.score,
			Payload: clonePayload(h.point.point.Payload),
		}
	}
	return results, nil
}

// DeleteByFilter removes every point whose payload matches all filter fields
// by equality. Zero matches, or a collection that does not exist, is success.
func (s *Store) DeleteByFilter(_ context.Context, coll retrieval.Collection, filter map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[coll.Name()]
	if !ok {
		return nil
	}
	for id, p := range c.points {
		if payloadMatches(p.point.Payload, filter) {
			delete(c.points, id)
		}
	}
	return nil
}

// Health always succeeds: the store lives in-process.
func (s *Store) Health(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len returns the number of points in the collection. Test helper.
func (s *Store) Len(coll retrieval.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[coll.Name()]
	if !ok {
		return 0
	}
	return len(c.points)
}

func payloadMatches(payload, filter map[string]any) bool {
	for key, want := range filter {
		if payload[key] != want {
			return false
		}
	}
	return len(filter) > 0
}

func cosineSimilarity(a, b retrieval.EmbeddingVector) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clonePoint(p retrieval.Point) retrieval.Point {
	cloned := retrieval.Point{
		ID:      p.ID,
		Vector:  make(retrieval.EmbeddingVector, len(p.Vector)),
		Payload: clonePayload(p.Payload),
	}
	copy(cloned.Vector, p.Vector)
	return cloned
}

func clonePayload(payload map[string]any) map[string]any {
	cloned := make(map[string]any, len(payload))
	for k, v := range payload {
		cloned[k] = v
	}
	return cloned
}
