package storage

// Record is one persisted (chunk text, embedding) pair.
// Records are immutable once written; they are removed only by an explicit
// Clear, never implicitly.
type Record struct {
	ID            string    // UUID
	Text          string    // Chunk text content
	SourceRef     string    // Origin document reference (path or URL)
	SequenceIndex int       // Chunk position within the source document
	Embedding     []float32 // Fixed-dimension vector, must match the store's dimension
}

// ScoredRecord pairs a record with its similarity score for a query.
type ScoredRecord struct {
	Record *Record
	Score  float64
}

// DefaultCollection is the Qdrant collection used when none is configured.
const DefaultCollection = "documents"
