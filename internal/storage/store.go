package storage

import "context"

// VectorStore persists embedding records and answers nearest-neighbor queries
// under cosine similarity. Implementations must expose atomic-per-record
// visibility: a concurrent query never observes a partially written record.
type VectorStore interface {
	// Put appends records to the store. Records whose embedding dimension
	// does not match the store's configured dimension are rejected with
	// ErrDimensionMismatch before anything is written.
	Put(ctx context.Context, records []*Record) error

	// Query returns up to k records nearest to the given vector, ordered by
	// descending similarity score. An empty store yields an empty result.
	Query(ctx context.Context, vector []float32, k int) ([]ScoredRecord, error)

	// Count reports the number of records currently stored.
	Count(ctx context.Context) (uint64, error)

	// Clear removes all records. Explicit caller policy; never automatic.
	Clear(ctx context.Context) error

	Close() error
}
