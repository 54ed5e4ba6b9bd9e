// Package chunker splits raw document text into overlapping fixed-size
// segments used as the unit of retrieval.
package chunker

import (
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidChunking = errors.New("invalid chunking config: overlap must be smaller than max length and both positive")

// Chunk is one bounded, overlapping segment of a source document.
// Immutable once created.
type Chunk struct {
	ID            string // UUID
	Text          string
	SourceRef     string // Origin document reference
	SequenceIndex int    // Position within the source (0, 1, 2...)
}

// Chunker slides a fixed-size window across text, advancing by
// maxLength-overlap characters per step.
type Chunker struct {
	maxLength int
	overlap   int
}

// New validates the window parameters. Both must be positive and the overlap
// strictly smaller than the window.
func New(maxLength, overlap int) (*Chunker, error) {
	if maxLength <= 0 || overlap <= 0 || overlap >= maxLength {
		return nil, ErrInvalidChunking
	}
	return &Chunker{maxLength: maxLength, overlap: overlap}, nil
}

// Split produces the ordered chunk sequence for a document. Consecutive
// chunks share exactly the configured overlap, the final chunk may be shorter
// than the window, and trailing content is never dropped.
//
// Windows are measured in runes so multi-byte text never splits mid-character.
func (c *Chunker) Split(text, sourceRef string) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.maxLength - c.overlap

	var chunks []Chunk
	for start := 0; ; start += step {
		end := min(start+c.maxLength, len(runes))
		chunks = append(chunks, Chunk{
			ID:            uuid.New().String(),
			Text:          string(runes[start:end]),
			SourceRef:     sourceRef,
			SequenceIndex: len(chunks),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Overlap reports the configured overlap length.
func (c *Chunker) Overlap() int { return c.overlap }
