// ABOUTME: Process-wide async execution table for route-driven action batches.
// ABOUTME: External pollers query execution_id for status, progress, and the final result.
package executor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Async execution statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// AsyncExecution is one tracked execution's state.
type AsyncExecution struct {
	ID        string       `json:"execution_id"`
	Status    string       `json:"status"`
	Progress  int          `json:"progress"`
	Result    *BatchResult `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	ElapsedMS int64        `json:"elapsed_ms"`
}

// AsyncTable tracks executions by id. Entries are retained for the process
// lifetime so late pollers still see terminal states.
type AsyncTable struct {
	mu      sync.Mutex
	entries map[string]*AsyncExecution
}

// NewAsyncTable creates an empty table.
func NewAsyncTable() *AsyncTable {
	return &AsyncTable{entries: make(map[string]*AsyncExecution)}
}

// Begin registers a new running execution and returns its id.
func (t *AsyncTable) Begin() string {
	id := uuid.NewString()
	t.mu.Lock()
	t.entries[id] = &AsyncExecution{ID: id, Status: StatusRunning, StartedAt: time.Now()}
	t.mu.Unlock()
	return id
}

// SetProgress updates a running execution's progress (clamped 0..100).
func (t *AsyncTable) SetProgress(id string, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t.mu.Lock()
	if e, ok := t.entries[id]; ok && e.Status == StatusRunning {
		e.Progress = progress
	}
	t.mu.Unlock()
}

// Complete marks the execution finished with its result.
func (t *AsyncTable) Complete(id string, result *BatchResult) {
	t.mu.Lock()
	if e, ok := t.entries[id]; ok {
		e.Status = StatusCompleted
		e.Progress = 100
		e.Result = result
		e.ElapsedMS = time.Since(e.StartedAt).Milliseconds()
	}
	t.mu.Unlock()
}

// Fail marks the execution errored.
func (t *AsyncTable) Fail(id string, errMsg string) {
	t.mu.Lock()
	if e, ok := t.entries[id]; ok {
		e.Status = StatusError
		e.Error = errMsg
		e.ElapsedMS = time.Since(e.StartedAt).Milliseconds()
	}
	t.mu.Unlock()
}

// Get returns a copy of the execution state. Running entries report elapsed
// time relative to now.
func (t *AsyncTable) Get(id string) (AsyncExecution, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return AsyncExecution{}, false
	}
	out := *e
	if out.Status == StatusRunning {
		out.ElapsedMS = time.Since(out.StartedAt).Milliseconds()
	}
	return out, true
}

// Remove drops an entry. Entries otherwise live for the process lifetime so
// external pollers can read terminal results at leisure.
func (t *AsyncTable) Remove(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}
