// Package session holds the ordered conversation history of one interactive
// connection. History is append-only and lives only as long as the session.
package session

import (
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one (role, content) entry in the conversation.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

// Session owns the timestamp-ordered turns of one conversation. A session has
// a single logical writer, processed turn by turn; the mutex only guards
// History readers (e.g. a UI refresh) against an in-flight append.
//
// An assistant turn is appended once per turn with the fully concatenated
// streamed output, only after generation completes. Failed or cancelled
// generations are never recorded.
type Session struct {
	mu    sync.Mutex
	turns []Turn
}

// New creates an empty session.
func New() *Session {
	return &Session{}
}

// AppendUser records a user query.
func (s *Session) AppendUser(text string) {
	s.append(RoleUser, text)
}

// AppendAssistant records a completed assistant answer.
func (s *Session) AppendAssistant(text string) {
	s.append(RoleAssistant, text)
}

func (s *Session) append(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: text, At: time.Now()})
}

// History returns a copy of the ordered turns. No capacity limit is imposed
// here; truncation policy belongs to the prompt builder.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len reports the number of recorded turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}
