package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Turn is one entry of the conversation log.
type Turn struct {
	ID     uuid.UUID
	Role   Role
	Text   string
	Result *Classification
	Err    string
	At     time.Time
}

// Session owns the conversation log for the lifetime of the process. The
// log is append-only; Window caps what is rendered into prompts.
type Session struct {
	ID uuid.UUID

	mu    sync.Mutex
	turns []Turn
	now   func() time.Time
}

func NewSession() *Session {
	return &Session{
		ID:  uuid.New(),
		now: time.Now,
	}
}

func (s *Session) AppendUser(text string) Turn {
	return s.append(Turn{Role: RoleUser, Text: text})
}

func (s *Session) AppendSystem(result Classification) Turn {
	return s.append(Turn{Role: RoleSystem, Result: &result})
}

// AppendFailure records a system turn for a backend error.
func (s *Session) AppendFailure(err error) Turn {
	return s.append(Turn{Role: RoleSystem, Err: err.Error()})
}

func (s *Session) append(t Turn) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = uuid.New()
	t.At = s.now()
	s.turns = append(s.turns, t)
	return t
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Turns returns a copy of the whole log.
func (s *Session) Turns() []Turn {
	return s.Window(0)
}

// Window returns a copy of the last n turns, or all of them when n <= 0.
func (s *Session) Window(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if n > 0 && len(s.turns) > n {
		start = len(s.turns) - n
	}

	out := make([]Turn, len(s.turns)-start)
	for i, t := range s.turns[start:] {
		if t.Result != nil {
			r := *t.Result
			t.Result = &r
		}
		out[i] = t
	}
	return out
}
