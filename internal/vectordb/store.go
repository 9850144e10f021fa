package vectordb

import (
	"context"
	"errors"
)

// ErrSchema indicates a vector dimensionality mismatch between the
// embedder and the collection's stored records.
var ErrSchema = errors.New("embedding dimensionality mismatch")

// Store defines the interface for storing and searching document chunks
// by embedding similarity. Embedding happens inside the store via its
// configured embedding function; callers pass raw text.
type Store interface {
	// Upsert inserts the documents, replacing any existing records with
	// the same IDs.
	Upsert(ctx context.Context, docs []Document) error

	// DeleteWhere removes all records whose metadata field equals value
	// and returns how many were removed. Zero matches is a no-op, not
	// an error.
	DeleteWhere(ctx context.Context, field, value string) (int, error)

	// Query returns up to k records nearest to the query text,
	// restricted to records whose metadata matches every entry of
	// where. Tie order between equal scores is store-defined.
	Query(ctx context.Context, query string, k int, where map[string]string) ([]Result, error)

	// DistinctValues scans all records and returns the distinct values
	// of the given metadata field.
	DistinctValues(ctx context.Context, field string) ([]string, error)

	// Count returns the total number of records in the store.
	Count() int
}
