package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// ErrStreamFailed marks a generation stream that terminated abnormally.
// Fragments yielded before the failure remain valid; no further fragments
// follow, and the failure is distinguishable from normal completion.
var ErrStreamFailed = errors.New("generation stream failed")

// State tracks the stream lifecycle:
// Idle -> Sending -> Streaming -> {Completed | Failed}.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateFailed
)

// Stream is a finite, non-restartable sequence of text fragments whose
// concatenation is the full answer.
type Stream interface {
	// Next advances to the next fragment. It returns false on completion or
	// failure; consult Err to distinguish the two.
	Next() bool

	// Current returns the fragment Next advanced to.
	Current() string

	// Err is nil after normal completion and wraps ErrStreamFailed otherwise.
	Err() error

	// State reports the lifecycle state.
	State() State

	// Close releases the underlying connection. Safe to call at any time,
	// including mid-stream abandonment.
	Close() error
}

// sseStream decodes the gateway's event stream. Events without a usable
// payload are skipped with a warning; beyond maxMalformed consecutive skips
// the stream fails.
type sseStream struct {
	raw          *ssestream.Stream[openai.ChatCompletionChunk]
	state        State
	current      string
	err          error
	malformed    int
	maxMalformed int
	logger       *slog.Logger
}

func (s *sseStream) Next() bool {
	if s.state == StateCompleted || s.state == StateFailed {
		return false
	}

	for s.raw.Next() {
		chunk := s.raw.Current()
		s.state = StateStreaming

		if len(chunk.Choices) == 0 {
			s.malformed++
			s.logger.Warn("skipping unusable stream event", "consecutive", s.malformed)
			if s.malformed >= s.maxMalformed {
				s.fail(fmt.Errorf("%w: %d consecutive unusable events", ErrStreamFailed, s.malformed))
				return false
			}
			continue
		}
		s.malformed = 0

		// Role-only and finish-reason deltas carry no text.
		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}

		s.current = fragment
		return true
	}

	if err := s.raw.Err(); err != nil {
		s.fail(fmt.Errorf("%w: %v", ErrStreamFailed, err))
		return false
	}

	s.state = StateCompleted
	return false
}

func (s *sseStream) fail(err error) {
	s.state = StateFailed
	s.err = err
	_ = s.raw.Close()
}

func (s *sseStream) Current() string { return s.current }
func (s *sseStream) Err() error      { return s.err }
func (s *sseStream) State() State    { return s.state }

func (s *sseStream) Close() error {
	return s.raw.Close()
}

// Collect drains the stream and returns the concatenated answer. On failure
// it returns the fragments received so far along with the terminal error.
func Collect(stream Stream) (string, error) {
	var b strings.Builder
	for stream.Next() {
		b.WriteString(stream.Current())
	}
	return b.String(), stream.Err()
}
