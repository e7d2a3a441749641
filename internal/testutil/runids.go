package testutil

import (
	"fmt"
	"sync"
)

// RunIDs generates the run identifiers run-0001, run-0002, ... so stored
// runs are the same on every test execution.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RunIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewRunIDs creates a generator whose first identifier is run-0001.
func NewRunIDs() *RunIDs {
	return &RunIDs{}
}

// Generate returns the next identifier.
func (r *RunIDs) Generate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("run-%04d", r.seq)
}

// Reset restarts the sequence. After Reset, Generate returns run-0001.
func (r *RunIDs) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = 0
}
