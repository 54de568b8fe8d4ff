package retrieval

import (
	"context"
	"fmt"
)

// Tenant identifies the isolation boundary for all storage and retrieval
// operations. Every tenant owns exactly one collection.
//
// Tenant IDs are restricted to letters, digits and underscores so the
// derived collection name is a safe identifier for every backing store.
type Tenant struct {
	id string
}

// NewTenant validates id and returns the tenant scope for it.
func NewTenant(id string) (Tenant, error) {
	if id == "" {
		return Tenant{}, NewInputError("tenant id is required", nil)
	}
	for _, r := range id {
		if !isIdentRune(r) {
			return Tenant{}, NewInputError(fmt.Sprintf("tenant id %q contains invalid character %q", id, r), nil)
		}
	}
	return Tenant{id: id}, nil
}

// ID returns the tenant identifier.
func (t Tenant) ID() string { return t.id }

// Collection returns the tenant's collection scope. This is the only way to
// obtain a Collection, so cross-tenant access is impossible by construction:
// store adapters never accept a raw collection name.
func (t Tenant) Collection() Collection {
	return Collection{name: fmt.Sprintf("tenant_%s_documents", t.id)}
}

// Collection is a named, tenant-scoped namespace of points with cosine
// similarity and one fixed vector dimensionality. Collections are created
// lazily on first use; creating an existing collection is not an error.
type Collection struct {
	name string
}

// Name returns the backing store namespace (collection, table) name.
func (c Collection) Name() string { return c.name }

// IsZero reports whether c was not derived from a tenant.
func (c Collection) IsZero() bool { return c.name == "" }

// VectorStore is the contract every vector database adapter satisfies.
//
// All operations are idempotent: EnsureCollection treats "already exists" as
// success (including creation races between concurrent callers), Upsert is
// keyed by point ID with last-write-wins semantics, and deleting zero
// matches is success. Adapters return *SchemaConflictError on dimensionality
// mismatches and wrap retryable backend failures in *TransientError.
type VectorStore interface {
	// EnsureCollection creates the collection with the given vector
	// dimensionality if it does not exist. An existing collection with a
	// different dimensionality is a schema conflict.
	EnsureCollection(ctx context.Context, coll Collection, dims int) error

	// Upsert writes points into the collection, overwriting any existing
	// point with the same ID in place.
	Upsert(ctx context.Context, coll Collection, points []Point) error

	// Search returns up to topK points ordered by similarity score
	// descending, ties broken by insertion order. Fewer than topK hits —
	// including zero, and including a collection that was never created —
	// is success, not an error.
	Search(ctx context.Context, coll Collection, vector EmbeddingVector, topK int) ([]ScoredPoint, error)

	// DeleteByFilter removes every point whose payload matches all filter
	// fields by equality. Zero matches is success.
	DeleteByFilter(ctx context.Context, coll Collection, filter map[string]any) error

	// Health checks whether the backing store is reachable.
	Health(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}

func isIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	}
	return false
}
