// Package prompt assembles generation requests from retrieved context,
// conversation history, and the current query.
package prompt

import (
	"strings"

	"github.com/ragbot/docchat/internal/session"
	"github.com/ragbot/docchat/internal/storage"
)

// DefaultSystemPreamble is the grounding contract: the model must answer only
// from the supplied context and say so when the context does not contain the
// answer. Without this, hallucinated answers are indistinguishable from
// grounded ones in the output.
const DefaultSystemPreamble = "You are an assistant that answers questions using only the context " +
	"provided below. If the context does not contain the information needed to answer, say that " +
	"the answer is not in the provided documents instead of guessing. Do not use outside knowledge."

// ContextDelimiter separates retrieved chunk texts inside the context block.
const ContextDelimiter = "\n\n---\n\n"

// GenerationRequest is one fully assembled prompt. Built fresh per turn and
// never mutated after construction.
type GenerationRequest struct {
	SystemPreamble string
	Context        []string // Retrieved chunk texts in rank order
	History        []session.Turn
	UserQuery      string
}

// ContextBlock joins the retrieved texts in rank order with the delimiter.
func (r *GenerationRequest) ContextBlock() string {
	return strings.Join(r.Context, ContextDelimiter)
}

// Config bounds what the builder packs into a request.
type Config struct {
	SystemPreamble string

	// MaxHistoryTurns caps how many prior turns are included; truncation
	// removes the oldest turns first. Zero means no cap. The current query is
	// never truncated.
	MaxHistoryTurns int

	// MaxContextTokens caps the estimated token footprint of the context
	// block. Chunks that would overflow the budget are skipped, keeping
	// higher-ranked chunks. Zero means no cap.
	MaxContextTokens int
}

// Builder assembles generation requests. Build is a pure function of its
// inputs: no hidden state, no clock, identical inputs give identical requests.
type Builder struct {
	cfg Config
}

// NewBuilder creates a Builder, defaulting the preamble when unset.
func NewBuilder(cfg Config) *Builder {
	if cfg.SystemPreamble == "" {
		cfg.SystemPreamble = DefaultSystemPreamble
	}
	return &Builder{cfg: cfg}
}

// Build assembles the request for one turn. Retrieved texts keep their rank
// order; history keeps its chronological order.
func (b *Builder) Build(query string, history []session.Turn, retrieved []storage.ScoredRecord) *GenerationRequest {
	return &GenerationRequest{
		SystemPreamble: b.cfg.SystemPreamble,
		Context:        b.selectContext(query, retrieved),
		History:        b.truncateHistory(history),
		UserQuery:      query,
	}
}

// selectContext keeps ranked chunk texts that fit the token budget. The
// preamble and query are charged against the budget first, and an overflowing
// chunk is skipped rather than ending selection, so a short lower-ranked
// chunk can still fill remaining room.
func (b *Builder) selectContext(query string, retrieved []storage.ScoredRecord) []string {
	texts := make([]string, 0, len(retrieved))

	if b.cfg.MaxContextTokens <= 0 {
		for _, r := range retrieved {
			texts = append(texts, r.Record.Text)
		}
		return texts
	}

	budget := b.cfg.MaxContextTokens - estimateTokens(b.cfg.SystemPreamble) - estimateTokens(query)
	used := 0
	for _, r := range retrieved {
		cost := estimateTokens(r.Record.Text)
		if used+cost > budget {
			continue
		}
		texts = append(texts, r.Record.Text)
		used += cost
	}
	return texts
}

// truncateHistory drops the oldest turns beyond the configured cap.
func (b *Builder) truncateHistory(history []session.Turn) []session.Turn {
	if b.cfg.MaxHistoryTurns > 0 && len(history) > b.cfg.MaxHistoryTurns {
		history = history[len(history)-b.cfg.MaxHistoryTurns:]
	}
	out := make([]session.Turn, len(history))
	copy(out, history)
	return out
}

// estimateTokens approximates token count at 4 characters per token, close
// enough for budgeting English text.
func estimateTokens(text string) int {
	return len(text) / 4
}
