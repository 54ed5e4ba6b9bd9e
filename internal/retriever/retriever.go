// Package retriever answers a query with the most similar stored chunks.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/ragbot/docchat/internal/storage"
)

// ErrRetrieval wraps hard failures of the embedding or store backend.
// An empty store is not a failure; it retrieves an empty result.
var ErrRetrieval = errors.New("retrieval failed")

// Embedder is the query-embedding capability the retriever consumes.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever embeds a query and fetches its nearest chunks from the store.
type Retriever struct {
	embedder Embedder
	store    storage.VectorStore
}

// New creates a Retriever over the given embedder and store.
func New(embedder Embedder, store storage.VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve returns up to k records ranked by descending cosine similarity.
// Ordering ties are broken by record insertion order, so repeated calls with
// unchanged store state are deterministic.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]storage.ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrRetrieval, k)
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrieval, err)
	}

	results, err := r.store.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	return results, nil
}
