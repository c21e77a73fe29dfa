// ABOUTME: Lifecycle events emitted by the executors during navigation, action, and verification runs.
// ABOUTME: Script binaries subscribe for progress printing; the handler is optional everywhere.
package executor

import "time"

// ExecEventType identifies a lifecycle event.
type ExecEventType string

const (
	EventNavigationStarted   ExecEventType = "navigation.started"
	EventNavigationCompleted ExecEventType = "navigation.completed"
	EventNavigationFailed    ExecEventType = "navigation.failed"
	EventTransitionStarted   ExecEventType = "transition.started"
	EventTransitionCompleted ExecEventType = "transition.completed"
	EventTransitionFailed    ExecEventType = "transition.failed"
	EventActionExecuted      ExecEventType = "action.executed"
	EventActionRetrying      ExecEventType = "action.retrying"
	EventVerificationRun     ExecEventType = "verification.run"
	EventZapIterationDone    ExecEventType = "zap.iteration_done"
)

// ExecEvent is one lifecycle event.
type ExecEvent struct {
	Type      ExecEventType
	NodeID    string
	EdgeID    string
	Data      map[string]any
	Timestamp time.Time
}

// EventHandler receives lifecycle events. Handlers run synchronously on the
// executor goroutine and must be fast.
type EventHandler func(ExecEvent)

func emit(h EventHandler, evt ExecEvent) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	h(evt)
}
