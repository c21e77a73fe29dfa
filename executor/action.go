// ABOUTME: Action batch executor: dispatch by action type, iteration, retry/failure chains, post-action side effects.
// ABOUTME: The side-effect order is load-bearing: last_action.json is written before the wait sleep so observers can correlate.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/capture"
	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/script"
	"github.com/virtualpytest/navigator/storage"
)

// ActionBatch is one ordered action list with its fallback chains and the
// recording context.
type ActionBatch struct {
	Actions        []navigation.Action
	RetryActions   []navigation.Action
	FailureActions []navigation.Action
	TeamID         string
	TreeID         string
	EdgeID         string
	ActionSetID    string
	ScriptContext  *script.ScriptContext
}

// ActionResult is the outcome of one action (all its iterations).
type ActionResult struct {
	Command         string         `json:"command"`
	Success         bool           `json:"success"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
	OutputData      map[string]any `json:"output_data,omitempty"`
	Iterations      int            `json:"iterations"`
	ExecutionTimeMS int64          `json:"execution_time_ms"`
}

// BatchResult is the outcome of a whole batch.
type BatchResult struct {
	OverallSuccess         bool           `json:"overall_success"`
	Results                []ActionResult `json:"results"`
	OutputData             map[string]any `json:"output_data,omitempty"`
	ExecutionTimeMS        int64          `json:"execution_time_ms"`
	ActionScreenshots      []string       `json:"action_screenshots,omitempty"`
	BeforeActionScreenshot string         `json:"before_action_screenshot,omitempty"`
	Error                  string         `json:"error,omitempty"`
}

// ActionExecutor routes validated actions to the device's controllers.
type ActionExecutor struct {
	h     *DeviceHandle
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func newActionExecutor(h *DeviceHandle) *ActionExecutor {
	return &ActionExecutor{h: h, sleep: sleepWithContext, now: time.Now}
}

// ExecuteActions runs the main list, falling back to the retry and failure
// chains per the batch rules. Overall success is true when the main list
// fully succeeded, or when a non-empty retry list fully succeeded.
func (e *ActionExecutor) ExecuteActions(ctx context.Context, batch ActionBatch) BatchResult {
	start := e.now()
	res := BatchResult{OutputData: make(map[string]any)}

	// Taken once before the first action; not part of the report list.
	res.BeforeActionScreenshot = e.h.CaptureScreenshot()

	mainOK := e.runList(ctx, batch, batch.Actions, &res)
	overall := mainOK
	if !mainOK {
		retryOK := false
		if len(batch.RetryActions) > 0 {
			emit(e.h.opts.Events, ExecEvent{Type: EventActionRetrying, EdgeID: batch.EdgeID})
			retryOK = e.runList(ctx, batch, batch.RetryActions, &res)
		}
		overall = retryOK
		if !retryOK && len(batch.FailureActions) > 0 {
			e.runList(ctx, batch, batch.FailureActions, &res)
		}
	}

	res.OverallSuccess = overall
	res.ExecutionTimeMS = e.now().Sub(start).Milliseconds()
	if !overall {
		var failed []string
		for _, r := range res.Results {
			if !r.Success {
				failed = append(failed, r.Command)
			}
		}
		res.Error = fmt.Sprintf("actions failed: %s", strings.Join(failed, ", "))
	}
	return res
}

// runList executes one action list in order. Stops at the first failure whose
// action does not set continue_on_fail; returns whether every action
// succeeded.
func (e *ActionExecutor) runList(ctx context.Context, batch ActionBatch, actions []navigation.Action, res *BatchResult) bool {
	allOK := true
	for _, a := range actions {
		r := e.executeAction(ctx, batch, a, res)
		res.Results = append(res.Results, r)
		if r.Success {
			for k, v := range r.OutputData {
				res.OutputData[k] = v
			}
		} else {
			allOK = false
			if !a.ContinueOnFail {
				return false
			}
		}
	}
	return allOK
}

// executeAction runs one action's iteration loop and then applies the
// post-action side effects in their required order.
func (e *ActionExecutor) executeAction(ctx context.Context, batch ActionBatch, a navigation.Action, res *BatchResult) ActionResult {
	start := e.now()
	params := a.FlattenedParams()

	actionType, ok := e.resolveType(a)
	if !ok {
		return ActionResult{
			Command:    a.Command,
			Error:      fmt.Sprintf("no controller owns command %q", a.Command),
			Iterations: 0,
		}
	}
	a.Type = actionType

	var last controller.Result
	iterations := 0
	total := a.EffectiveIterator()
	for i := 0; i < total; i++ {
		last = e.dispatch(ctx, actionType, a.Command, params)
		iterations++
		if !last.Success {
			break
		}
		if i < total-1 && a.WaitTimeMS > 0 {
			if err := e.sleep(ctx, time.Duration(a.WaitTimeMS)*time.Millisecond); err != nil {
				last = controller.Result{Error: err.Error()}
				break
			}
		}
	}

	result := ActionResult{
		Command:         a.Command,
		Success:         last.Success,
		Message:         last.Message,
		Error:           last.Error,
		OutputData:      last.OutputData,
		Iterations:      iterations,
		ExecutionTimeMS: e.now().Sub(start).Milliseconds(),
	}
	e.postAction(ctx, batch, a, result, res)
	emit(e.h.opts.Events, ExecEvent{
		Type:   EventActionExecuted,
		EdgeID: batch.EdgeID,
		Data:   map[string]any{"command": a.Command, "success": result.Success},
	})
	return result
}

// postAction applies the side effects of §"after every action":
// timestamp, last-action record, wait sleep, db row, nav context, screenshot.
func (e *ActionExecutor) postAction(ctx context.Context, batch ActionBatch, a navigation.Action, result ActionResult, res *BatchResult) {
	nav := e.h.Nav.Snapshot()
	completedAt := capture.UnixSeconds(e.now())

	// The record must land before the wait sleep so the capture monitor can
	// correlate frames with the action.
	err := capture.WriteActionRecord(e.h.Paths, capture.ActionRecord{
		Command:         a.Command,
		ActionType:      string(a.Type),
		ActionTimestamp: completedAt,
		Success:         result.Success,
		Iterations:      result.Iterations,
		EdgeID:          batch.EdgeID,
		ScriptName:      nav.ScriptName,
	})
	if err != nil {
		e.h.logger.Warn("last action record write failed", zap.Error(err))
	}

	if a.WaitTimeMS > 0 {
		_ = e.sleep(ctx, time.Duration(a.WaitTimeMS)*time.Millisecond)
	}

	if !nav.SkipDBRecording && batch.TreeID != "" {
		err := e.h.opts.Recorder.RecordEdgeExecution(ctx, storage.EdgeExecution{
			TeamID:          batch.TeamID,
			TreeID:          batch.TreeID,
			EdgeID:          batch.EdgeID,
			HostName:        e.h.opts.HostName,
			DeviceModel:     e.h.Device.Model,
			DeviceName:      e.h.Device.Name,
			Success:         result.Success,
			ExecutionTimeMS: result.ExecutionTimeMS,
			Message:         fmt.Sprintf("%s x%d", a.Command, result.Iterations),
			ErrorDetails:    result.Error,
			ScriptResultID:  nav.ScriptID,
			ScriptContext:   nav.ScriptName,
			ActionSetID:     batch.ActionSetID,
		})
		if err != nil {
			e.h.logger.Warn("edge execution record failed", zap.Error(err))
		}
	}

	e.h.Nav.SetLastAction(a.Command, completedAt)

	shot := e.h.CaptureScreenshot()
	res.ActionScreenshots = append(res.ActionScreenshots, shot)
	if batch.ScriptContext != nil {
		batch.ScriptContext.AddScreenshot(shot)
	}
}

func (e *ActionExecutor) resolveType(a navigation.Action) (navigation.ActionType, bool) {
	if a.Type != "" {
		return a.Type, true
	}
	return e.h.Registry.ResolveType(a.Command)
}

func (e *ActionExecutor) dispatch(ctx context.Context, t navigation.ActionType, command string, params map[string]any) controller.Result {
	c := e.h.Controllers
	switch t {
	case navigation.ActionRemote:
		if c.Remote == nil {
			return missingController("remote")
		}
		return c.Remote.ExecuteCommand(ctx, command, params)

	case navigation.ActionWeb:
		if c.Web == nil {
			return missingController("web")
		}
		if _, has := params["selector"]; !has {
			if v, ok := params["element_id"]; ok {
				params = cloneParams(params)
				params["selector"] = v
				delete(params, "element_id")
			}
		}
		return c.Web.ExecuteCommand(ctx, command, params)

	case navigation.ActionDesktop:
		if command == controller.BashCommand && c.Bash != nil {
			return c.Bash.ExecuteCommand(ctx, command, params)
		}
		if c.Desktop != nil {
			return c.Desktop.ExecuteCommand(ctx, command, params)
		}
		if c.Bash != nil {
			return c.Bash.ExecuteCommand(ctx, command, params)
		}
		return missingController("desktop")

	case navigation.ActionAV:
		if c.AVCmds == nil {
			return missingController("av")
		}
		return c.AVCmds.ExecuteCommand(ctx, command, params)

	case navigation.ActionPower:
		if c.Power == nil {
			return missingController("power")
		}
		on, err := c.Power.ExecuteCommand(ctx, command, params)
		if err != nil {
			return controller.Result{Error: err.Error()}
		}
		return controller.Result{Success: on}

	case navigation.ActionVerification:
		vr := e.h.Verifications.executeCommand(ctx, command, params)
		return controller.Result{
			Success:    vr.Success,
			Message:    vr.Message,
			Error:      vr.Error,
			OutputData: vr.OutputData,
		}

	case navigation.ActionStandardBlock:
		return e.h.Blocks.Execute(ctx, command, params)
	}
	return controller.Result{Error: fmt.Sprintf("unknown action type %q", t)}
}

func missingController(family string) controller.Result {
	return controller.Result{Error: fmt.Sprintf("device has no %s controller", family)}
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// sleepWithContext sleeps for d or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Process-wide async execution table (§route-driven execution).
var asyncExecutions = NewAsyncTable()

// AsyncExecutions returns the process-wide async table.
func AsyncExecutions() *AsyncTable { return asyncExecutions }

// ExecuteActionsAsync launches the batch in the background and returns its
// execution id for polling.
func (e *ActionExecutor) ExecuteActionsAsync(batch ActionBatch) string {
	id := asyncExecutions.Begin()
	go func() {
		res := e.ExecuteActions(context.Background(), batch)
		asyncExecutions.Complete(id, &res)
	}()
	return id
}
