// Package session holds per-user conversation state and its durable stores.
package session

import (
	"fmt"
	"time"
)

// State identifies a conversation step for a user.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// StateChoosingRole indicates the user is expected to pick a role.
	StateChoosingRole State = "choosing_role"
	// StateAsking indicates the user is answering the question sequence.
	StateAsking State = "asking"
)

// Session stores per-user quiz progress. It is mutated only by the
// conversation engine under per-user serialization and persisted through a
// Store so an interrupted run resumes after a restart.
type Session struct {
	State          State
	Role           string
	QuestionIndex  int
	ErrorCount     int
	LastEventID    int64
	LastRepromptAt time.Time
}

// New returns the initial empty session.
func New() Session {
	return Session{State: StateIdle}
}

// Reset clears quiz progress back to role selection. The last processed
// event id is kept so a redelivered event is still recognized after a reset.
func (s *Session) Reset() {
	s.State = StateChoosingRole
	s.Role = ""
	s.QuestionIndex = 0
	s.ErrorCount = 0
	s.LastRepromptAt = time.Time{}
}

// Validate checks the session invariants: the question index is in [0, n)
// only while asking, and the error tally never exceeds it.
func (s *Session) Validate(n int) error {
	if s.State == StateAsking {
		if s.QuestionIndex < 0 || s.QuestionIndex >= n {
			return fmt.Errorf("session: question_index %d out of [0,%d)", s.QuestionIndex, n)
		}
		if s.Role == "" {
			return fmt.Errorf("session: asking without a role")
		}
	}
	if s.ErrorCount < 0 || s.ErrorCount > s.QuestionIndex {
		return fmt.Errorf("session: error_count %d exceeds question_index %d", s.ErrorCount, s.QuestionIndex)
	}
	return nil
}
