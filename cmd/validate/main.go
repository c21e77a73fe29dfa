// ABOUTME: Edge-coverage validation script binary: executes every reachable edge of a navigation tree.
// ABOUTME: Failed edges reset the position to the entry node; recovery paths count toward coverage only.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/executor"
	"github.com/virtualpytest/navigator/host"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/script"
)

func main() {
	host.LoadDotEnv(".env")
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := script.ParseArgs("validate", argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		return 2
	}
	if args.UserinterfaceName == "" {
		fmt.Fprintln(os.Stderr, "validate: userinterface name is required")
		return 2
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		return 1
	}
	defer logger.Sync()

	scriptName := host.ScriptName("validate")
	return script.Run(scriptName, script.DefaultScriptTimeout, logger, func(ctx context.Context) (script.Outcome, error) {
		return runValidation(ctx, scriptName, args, logger)
	})
}

// sweep tracks the validation run's moving state.
type sweep struct {
	h       *executor.DeviceHandle
	sc      *script.ScriptContext
	treeID  string
	teamID  string
	entry   *navigation.Node
	covered int
	failed  int
	// recovering marks forced insertions that follow a failure.
	recovering bool
}

func runValidation(ctx context.Context, scriptName string, args script.Args, logger *zap.Logger) (script.Outcome, error) {
	rt, err := host.Bootstrap(ctx, args, host.Options{Logger: logger})
	if err != nil {
		return script.Outcome{}, err
	}
	defer rt.Close()

	scriptResultID, sc, err := rt.StartRun(ctx, scriptName, "validation", args)
	if err != nil {
		return script.Outcome{}, err
	}

	h := rt.Handle
	info, err := h.Navigation.LoadNavigationTree(ctx, args.UserinterfaceName, rt.TeamID)
	if err != nil {
		return rt.FinishRun(ctx, scriptResultID, sc, false, err.Error()), nil
	}
	g, err := h.Navigation.Graph(info.TreeID, rt.TeamID)
	if err != nil {
		return rt.FinishRun(ctx, scriptResultID, sc, false, err.Error()), nil
	}
	entry := g.EntryNode()
	if entry == nil {
		return rt.FinishRun(ctx, scriptResultID, sc, false, "tree has no entry node"), nil
	}
	h.Navigation.UpdateCurrentPosition(entry.ID, entry.TreeID, entry.Label)

	sw := &sweep{h: h, sc: sc, treeID: info.TreeID, teamID: rt.TeamID, entry: entry}
	steps := g.ValidationSequence()
	sc.PlannedSteps = len(steps)

	for _, step := range steps {
		if ctx.Err() != nil {
			return script.Outcome{}, ctx.Err()
		}
		sw.runStep(ctx, g, step)
	}

	target := g.CoverageTarget()
	logger.Info("validation sweep finished",
		zap.Int("covered", sw.covered),
		zap.Int("target", target),
		zap.Int("failed", sw.failed))

	success := sw.failed == 0
	var errMsg string
	if !success {
		errMsg = fmt.Sprintf("%d of %d edges failed", sw.failed, target)
	}
	return rt.FinishRun(ctx, scriptResultID, sc, success, errMsg), nil
}

func (s *sweep) runStep(ctx context.Context, g *navigation.Graph, step navigation.ValidationStep) {
	if step.Unreachable {
		s.sc.RecordStep(script.StepResult{
			Category: script.StepValidation,
			FromNode: step.FromNodeLabel,
			ToNode:   step.ToNodeLabel,
			Message:  "unreachable edge skipped",
		})
		return
	}
	if step.Skipped {
		// Conditional edges are retained with no actions; coverage only.
		s.covered++
		s.sc.RecordStep(script.StepResult{
			Category: script.StepValidation,
			Success:  true,
			FromNode: step.FromNodeLabel,
			ToNode:   step.ToNodeLabel,
			Message:  "conditional edge, no actions to execute",
		})
		return
	}

	s.reposition(ctx, g, step.FromNodeID)

	res := s.h.Navigation.ExecuteTransitionStep(ctx, s.request(), step.Transition)
	s.sc.RecordStep(script.StepResult{
		Category:         script.StepValidation,
		Success:          res.Success,
		ExecutionTimeMS:  int64(res.ExecutionTimeS * 1000),
		FromNode:         step.FromNodeLabel,
		ToNode:           step.ToNodeLabel,
		Actions:          step.Actions,
		Error:            res.Error,
		ForcedTransition: step.Forced,
		Recovered:        s.recovering && !step.Forced,
	})

	if res.Success {
		s.covered++
		if !step.Forced {
			s.recovering = false
		}
		return
	}

	// Forced insertions count toward coverage only; a failing one still
	// strands the device, so reset either way.
	if !step.Forced {
		s.failed++
	}
	s.h.Navigation.UpdateCurrentPosition(s.entry.ID, s.entry.TreeID, s.entry.Label)
	s.recovering = true
}

// reposition inserts shortest-path transitions when the device is not at the
// step's origin, which happens after a failure reset.
func (s *sweep) reposition(ctx context.Context, g *navigation.Graph, fromNodeID string) {
	current := s.h.Nav.Snapshot().CurrentNodeID
	if current == fromNodeID {
		return
	}
	path, err := g.FindPath(fromNodeID, current)
	if err != nil {
		s.sc.RecordStep(script.StepResult{
			Category:         script.StepValidation,
			Error:            err.Error(),
			Message:          "no recovery path to " + fromNodeID,
			ForcedTransition: true,
		})
		return
	}
	for _, t := range path {
		res := s.h.Navigation.ExecuteTransitionStep(ctx, s.request(), t)
		s.sc.RecordStep(script.StepResult{
			Category:         script.StepValidation,
			Success:          res.Success,
			FromNode:         t.FromNodeLabel,
			ToNode:           t.ToNodeLabel,
			Error:            res.Error,
			ForcedTransition: true,
			Recovered:        s.recovering,
		})
		if !res.Success {
			return
		}
	}
}

func (s *sweep) request() executor.NavRequest {
	return executor.NavRequest{
		TreeID:        s.treeID,
		TeamID:        s.teamID,
		ScriptContext: s.sc,
	}
}
