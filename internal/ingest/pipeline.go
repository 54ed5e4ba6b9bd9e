// Package ingest populates the vector store from a document source.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ragbot/docchat/internal/chunker"
	"github.com/ragbot/docchat/internal/loader"
	"github.com/ragbot/docchat/internal/storage"
)

// Embedder is the document-embedding capability the pipeline consumes.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Result contains statistics about one ingestion run.
type Result struct {
	TotalDocs      int
	SuccessfulDocs int
	TotalChunks    int
	Failed         []FailedDoc
	Duration       time.Duration
}

// FailedDoc records a document that could not be ingested.
type FailedDoc struct {
	Ref    string
	Reason string
}

// Pipeline drives source -> chunker -> embedder -> store. Reruns are
// additive: ingesting an unchanged corpus again appends duplicate records
// unless the caller clears the store first.
type Pipeline struct {
	source   loader.Source
	chunker  *chunker.Chunker
	embedder Embedder
	store    storage.VectorStore
	workers  int
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline. workers bounds how many
// documents are processed concurrently; values below 1 mean sequential.
func NewPipeline(source loader.Source, c *chunker.Chunker, embedder Embedder, store storage.VectorStore, workers int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   source,
		chunker:  c,
		embedder: embedder,
		store:    store,
		workers:  workers,
		logger:   logger,
	}
}

// IngestAll processes every document in the source. A failure in one
// document never aborts the batch: failures are collected per document and
// reported together in the result. Only a failure to list the source at all
// is fatal.
func (p *Pipeline) IngestAll(ctx context.Context) (*Result, error) {
	start := time.Now()

	refs, err := p.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	result := &Result{TotalDocs: len(refs)}
	p.logger.Info("Starting ingestion", "documents", len(refs), "workers", p.workers)

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan string)
	)

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				chunks, err := p.processDocument(ctx, ref)
				mu.Lock()
				if err != nil {
					p.logger.Warn("Failed to ingest document", "ref", ref, "error", err)
					result.Failed = append(result.Failed, FailedDoc{Ref: ref, Reason: err.Error()})
				} else {
					result.SuccessfulDocs++
					result.TotalChunks += chunks
				}
				mu.Unlock()
			}
		}()
	}

	for _, ref := range refs {
		jobs <- ref
	}
	close(jobs)
	wg.Wait()

	result.Duration = time.Since(start)
	p.logger.Info("Ingestion complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.Failed),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument runs the full pipeline for one document and returns the
// number of records written.
func (p *Pipeline) processDocument(ctx context.Context, ref string) (int, error) {
	doc, err := p.source.Fetch(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	p.logger.Debug("Loaded document", "ref", ref, "size", len(doc.Text))

	chunks := p.chunker.Split(doc.Text, doc.Ref)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	records := make([]*storage.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = &storage.Record{
			ID:            chunk.ID,
			Text:          chunk.Text,
			SourceRef:     chunk.SourceRef,
			SequenceIndex: chunk.SequenceIndex,
			Embedding:     embeddings[i],
		}
	}

	if err := p.store.Put(ctx, records); err != nil {
		return 0, fmt.Errorf("store records: %w", err)
	}

	p.logger.Info("Ingested document", "ref", ref, "chunks", len(chunks))
	return len(chunks), nil
}
