// ABOUTME: Navigation executor: tree loading into the cache and transition-by-transition path execution.
// ABOUTME: Virtual cross-tree transitions run through the block registry and never record edge executions.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/script"
)

// TreeInfo summarizes a loaded navigation tree.
type TreeInfo struct {
	TreeID string
	Nodes  int
	Edges  int
}

// NavRequest asks for navigation to a target node.
type NavRequest struct {
	TreeID            string
	UserinterfaceName string
	Target            string
	TeamID            string
	ScriptContext     *script.ScriptContext
}

// NavResult is the outcome of one navigation run.
type NavResult struct {
	Success             bool    `json:"success"`
	TotalTransitions    int     `json:"total_transitions"`
	TransitionsExecuted int     `json:"transitions_executed"`
	TotalActions        int     `json:"total_actions"`
	ActionsExecuted     int     `json:"actions_executed"`
	ExecutionTimeS      float64 `json:"execution_time_s"`
	Error               string  `json:"error,omitempty"`
}

// NavigationExecutor drives a device along shortest paths in the unified
// graph. One instance per device; the load table persists across runs.
type NavigationExecutor struct {
	h     *DeviceHandle
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu     sync.Mutex
	loaded map[string]string // userinterface name -> root tree id
}

func newNavigationExecutor(h *DeviceHandle) *NavigationExecutor {
	return &NavigationExecutor{
		h:      h,
		sleep:  sleepWithContext,
		now:    time.Now,
		loaded: make(map[string]string),
	}
}

// LoadNavigationTree fetches the userinterface's trees, unifies them, and
// stores the graph in the cache. Idempotent per (userinterface, team).
func (e *NavigationExecutor) LoadNavigationTree(ctx context.Context, userinterfaceName, teamID string) (TreeInfo, error) {
	e.mu.Lock()
	if rootID, ok := e.loaded[userinterfaceName]; ok {
		e.mu.Unlock()
		if g, err := e.h.opts.Cache.Get(rootID, teamID); err == nil {
			return TreeInfo{TreeID: rootID, Nodes: g.NodeCount(), Edges: len(g.Arcs())}, nil
		}
		e.mu.Lock()
		delete(e.loaded, userinterfaceName)
	}
	e.mu.Unlock()

	if e.h.opts.Trees == nil {
		return TreeInfo{}, fmt.Errorf("no tree source configured")
	}
	trees, err := e.h.opts.Trees.FetchUserinterfaceTrees(ctx, userinterfaceName, teamID)
	if err != nil {
		return TreeInfo{}, fmt.Errorf("fetch trees for %q: %w", userinterfaceName, err)
	}
	if len(trees) == 0 {
		return TreeInfo{}, fmt.Errorf("userinterface %q has no trees", userinterfaceName)
	}

	rootID := trees[0].ID
	for _, t := range trees {
		if t.IsRoot {
			rootID = t.ID
			break
		}
	}

	g := navigation.Unify(trees, e.h.logger)
	e.h.opts.Cache.Put(rootID, teamID, g)

	e.mu.Lock()
	e.loaded[userinterfaceName] = rootID
	e.mu.Unlock()

	e.h.logger.Info("navigation tree loaded",
		zap.String("userinterface", userinterfaceName),
		zap.String("tree_id", rootID),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("arcs", len(g.Arcs())))
	return TreeInfo{TreeID: rootID, Nodes: g.NodeCount(), Edges: len(g.Arcs())}, nil
}

// Graph returns the cached unified graph for a loaded tree.
func (e *NavigationExecutor) Graph(treeID, teamID string) (*navigation.Graph, error) {
	return e.h.opts.Cache.Get(treeID, teamID)
}

// ExecuteNavigation pathfinds from the device's current position to the
// target and executes every transition: actions, final wait, then the
// destination node's verifications. Stops at the first failing transition.
func (e *NavigationExecutor) ExecuteNavigation(ctx context.Context, req NavRequest) NavResult {
	start := e.now()
	result := NavResult{}

	g, err := e.h.opts.Cache.Get(req.TreeID, req.TeamID)
	if err != nil {
		result.Error = fmt.Sprintf("tree %q not loaded: %v", req.TreeID, err)
		return result
	}

	from := e.h.Nav.Snapshot().CurrentNodeID
	path, err := g.FindPath(req.Target, from)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.TotalTransitions = len(path)
	for _, t := range path {
		result.TotalActions += len(t.Actions)
	}
	emit(e.h.opts.Events, ExecEvent{
		Type: EventNavigationStarted,
		Data: map[string]any{"target": req.Target, "transitions": len(path)},
	})

	for _, t := range path {
		if err := e.executeTransition(ctx, g, req, t, &result); err != nil {
			result.Error = err.Error()
			result.ExecutionTimeS = e.now().Sub(start).Seconds()
			emit(e.h.opts.Events, ExecEvent{
				Type: EventNavigationFailed, EdgeID: t.EdgeID,
				Data: map[string]any{"error": result.Error},
			})
			return result
		}
		result.TransitionsExecuted++
	}

	result.Success = true
	result.ExecutionTimeS = e.now().Sub(start).Seconds()
	emit(e.h.opts.Events, ExecEvent{
		Type: EventNavigationCompleted,
		Data: map[string]any{"target": req.Target, "transitions": result.TransitionsExecuted},
	})
	return result
}

func (e *NavigationExecutor) executeTransition(ctx context.Context, g *navigation.Graph, req NavRequest, t navigation.Transition, result *NavResult) error {
	emit(e.h.opts.Events, ExecEvent{Type: EventTransitionStarted, EdgeID: t.EdgeID, NodeID: t.ToNodeID})

	// Virtual cross-tree hops carry a synthetic block action and never
	// produce edge-execution rows; an empty tree id makes the action
	// executor skip its db write.
	treeID := req.TreeID
	if t.IsVirtual {
		treeID = ""
	}
	batch := ActionBatch{
		Actions:        t.Actions,
		RetryActions:   t.RetryActions,
		FailureActions: t.FailureActions,
		TeamID:         req.TeamID,
		TreeID:         treeID,
		EdgeID:         t.EdgeID,
		ActionSetID:    t.ActionSetID,
		ScriptContext:  req.ScriptContext,
	}
	batchRes := e.h.Actions.ExecuteActions(ctx, batch)
	result.ActionsExecuted += executedCount(batchRes.Results)
	if !batchRes.OverallSuccess {
		emit(e.h.opts.Events, ExecEvent{Type: EventTransitionFailed, EdgeID: t.EdgeID})
		return fmt.Errorf("transition %s -> %s failed: %s", t.FromNodeLabel, t.ToNodeLabel, batchRes.Error)
	}

	if t.FinalWaitMS > 0 {
		if err := e.sleep(ctx, time.Duration(t.FinalWaitMS)*time.Millisecond); err != nil {
			return err
		}
	}

	if len(t.Verifications) > 0 {
		vres := e.h.Verifications.ExecuteVerifications(ctx, VerificationBatch{
			Verifications: t.Verifications,
			TeamID:        req.TeamID,
			TreeID:        treeID,
			NodeID:        t.ToNodeID,
		})
		if !vres.OverallSuccess {
			emit(e.h.opts.Events, ExecEvent{Type: EventTransitionFailed, EdgeID: t.EdgeID, NodeID: t.ToNodeID})
			return fmt.Errorf("verification failed at node %s", t.ToNodeLabel)
		}
	}

	// Action-kind destinations are transient; the device stays where it was.
	dest := g.FindNode(t.ToNodeID)
	if dest == nil || dest.Kind != navigation.KindAction {
		e.h.Nav.UpdatePosition(t.ToNodeID, t.ToTreeID, t.ToNodeLabel)
	}

	emit(e.h.opts.Events, ExecEvent{Type: EventTransitionCompleted, EdgeID: t.EdgeID, NodeID: t.ToNodeID})
	return nil
}

// ExecuteTransitionStep runs one precomputed transition. The validation
// sweep uses this to execute its ordered step list arc by arc.
func (e *NavigationExecutor) ExecuteTransitionStep(ctx context.Context, req NavRequest, t navigation.Transition) NavResult {
	start := e.now()
	var result NavResult
	g, err := e.h.opts.Cache.Get(req.TreeID, req.TeamID)
	if err != nil {
		result.Error = fmt.Sprintf("tree %q not loaded: %v", req.TreeID, err)
		return result
	}
	result.TotalTransitions = 1
	result.TotalActions = len(t.Actions)
	if err := e.executeTransition(ctx, g, req, t, &result); err != nil {
		result.Error = err.Error()
		result.ExecutionTimeS = e.now().Sub(start).Seconds()
		return result
	}
	result.TransitionsExecuted = 1
	result.Success = true
	result.ExecutionTimeS = e.now().Sub(start).Seconds()
	return result
}

// UpdateCurrentPosition declares the device's position without navigating.
func (e *NavigationExecutor) UpdateCurrentPosition(nodeID, treeID, nodeLabel string) {
	e.h.Nav.UpdatePosition(nodeID, treeID, nodeLabel)
}

func executedCount(results []ActionResult) int {
	n := 0
	for _, r := range results {
		if r.Iterations > 0 {
			n++
		}
	}
	return n
}
