// Package rag wires retrieval, prompt assembly, and streamed generation into
// the per-turn question answering surface.
package rag

import (
	"context"
	"log/slog"

	"github.com/ragbot/docchat/internal/chat"
	"github.com/ragbot/docchat/internal/prompt"
	"github.com/ragbot/docchat/internal/session"
	"github.com/ragbot/docchat/internal/storage"
)

// Retriever fetches grounding chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]storage.ScoredRecord, error)
}

// Generator streams a model answer for an assembled request.
type Generator interface {
	Generate(ctx context.Context, req *prompt.GenerationRequest) (chat.Stream, error)
}

// Engine runs one conversation turn: retrieve, build, generate. Each engine
// holds no per-turn state, so independent sessions and stores can share one
// process.
type Engine struct {
	retriever Retriever
	builder   *prompt.Builder
	generator Generator
	topK      int
	logger    *slog.Logger
}

// New creates an engine retrieving topK chunks per turn.
func New(retriever Retriever, builder *prompt.Builder, generator Generator, topK int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		retriever: retriever,
		builder:   builder,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Ask starts one turn and returns the answer fragment stream. The prompt is
// built from the history as it stood before this turn plus the new query.
//
// A retrieval failure aborts the turn before anything is recorded, leaving
// the history unaffected. Once retrieval succeeds the user turn is recorded,
// and it stays recorded even if generation later fails. The caller drains the
// stream and, only after it completes normally, records the assistant turn
// with the concatenated output (see CompleteTurn).
func (e *Engine) Ask(ctx context.Context, sess *session.Session, query string) (chat.Stream, error) {
	history := sess.History()

	retrieved, err := e.retriever.Retrieve(ctx, query, e.topK)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("retrieved context", "query", query, "chunks", len(retrieved))

	sess.AppendUser(query)

	req := e.builder.Build(query, history, retrieved)
	stream, err := e.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// CompleteTurn records the assistant turn for a normally completed stream.
// It must be called with the full concatenated output once the stream reports
// StateCompleted; failed or abandoned generations are never recorded.
func (e *Engine) CompleteTurn(sess *session.Session, answer string) {
	sess.AppendAssistant(answer)
}

// AskAndCollect runs a full turn synchronously: it drains the stream and
// records the assistant turn on normal completion. On a generation failure
// the partial answer is returned with the error and no assistant turn is
// recorded.
func (e *Engine) AskAndCollect(ctx context.Context, sess *session.Session, query string) (string, error) {
	stream, err := e.Ask(ctx, sess, query)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	answer, err := chat.Collect(stream)
	if err != nil {
		return answer, err
	}

	e.CompleteTurn(sess, answer)
	return answer, nil
}
