package kernel

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the kernel's identity for the lifetime of the process along with its execution counter.
type Session struct {
	id string

	executionCount int
	mu             sync.Mutex
}

func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// ID returns the session id used in the headers of all messages sent by the kernel.
func (s *Session) ID() string {
	return s.id
}

// ExecutionCount returns the number of executions recorded in history so far.
func (s *Session) ExecutionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.executionCount
}

// NextExecutionCount returns the execution count to report for a new execution.
// The counter is incremented first if the execution is stored in history.
func (s *Session) NextExecutionCount(storeHistory bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if storeHistory {
		s.executionCount++
	}
	return s.executionCount
}
