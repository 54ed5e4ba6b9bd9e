package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbot/docchat/internal/storage"
)

// fakeEmbedder maps known strings to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[text], nil
}

func seedStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store, err := storage.NewMemoryStore(2)
	require.NoError(t, err)

	err = store.Put(context.Background(), []*storage.Record{
		{ID: "1", Text: "about cats", Embedding: []float32{1, 0}},
		{ID: "2", Text: "about dogs", Embedding: []float32{0, 1}},
		{ID: "3", Text: "about pets", Embedding: []float32{0.7, 0.7}},
	})
	require.NoError(t, err)
	return store
}

func TestRetrieve_RanksByDescendingScore(t *testing.T) {
	store := seedStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"cats?": {1, 0}}}

	r := New(embedder, store)
	results, err := r.Retrieve(context.Background(), "cats?", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "about cats", results[0].Record.Text)
	assert.Equal(t, "about pets", results[1].Record.Text)
	assert.Equal(t, "about dogs", results[2].Record.Text)
	assert.True(t, results[0].Score >= results[1].Score && results[1].Score >= results[2].Score)
}

func TestRetrieve_AtMostK(t *testing.T) {
	store := seedStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}

	r := New(embedder, store)
	results, err := r.Retrieve(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieve_EmptyStoreIsNotAnError(t *testing.T) {
	store, err := storage.NewMemoryStore(2)
	require.NoError(t, err)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}

	r := New(embedder, store)
	results, err := r.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_EmbedderFailure(t *testing.T) {
	store := seedStore(t)
	embedder := &fakeEmbedder{err: errors.New("backend down")}

	r := New(embedder, store)
	_, err := r.Retrieve(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestRetrieve_DimensionMismatchIsRetrievalError(t *testing.T) {
	store := seedStore(t)
	// Query embedding dimension disagrees with the store's.
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0, 0}}}

	r := New(embedder, store)
	_, err := r.Retrieve(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestRetrieve_RejectsNonPositiveK(t *testing.T) {
	store := seedStore(t)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}

	r := New(embedder, store)
	_, err := r.Retrieve(context.Background(), "q", 0)
	assert.ErrorIs(t, err, ErrRetrieval)
}

func TestRetrieve_DeterministicAcrossCalls(t *testing.T) {
	store, err := storage.NewMemoryStore(2)
	require.NoError(t, err)
	// Equal-scoring records: insertion order must decide, every time.
	err = store.Put(context.Background(), []*storage.Record{
		{ID: "a", Text: "first", Embedding: []float32{1, 1}},
		{ID: "b", Text: "second", Embedding: []float32{1, 1}},
	})
	require.NoError(t, err)

	embedder := &fakeEmbedder{vectors: map[string][]float32{"q": {1, 1}}}
	r := New(embedder, store)

	for i := 0; i < 5; i++ {
		results, err := r.Retrieve(context.Background(), "q", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "first", results[0].Record.Text)
		assert.Equal(t, "second", results[1].Record.Text)
	}
}
