// ABOUTME: Navigation script binary: drives the device to a target node and reports the outcome.
// ABOUTME: Prints SCRIPT_SUCCESS on stdout; exit 0 covers failed navigations, exit 1 covers wiring errors.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/executor"
	"github.com/virtualpytest/navigator/host"
	"github.com/virtualpytest/navigator/script"
)

func main() {
	host.LoadDotEnv(".env")
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := script.ParseArgs("goto", argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "goto: %v\n", err)
		return 2
	}
	if args.Node == "" {
		fmt.Fprintln(os.Stderr, "goto: --node <label> is required")
		return 2
	}
	if args.UserinterfaceName == "" {
		fmt.Fprintln(os.Stderr, "goto: userinterface name is required")
		return 2
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "goto: %v\n", err)
		return 1
	}
	defer logger.Sync()

	scriptName := host.ScriptName("goto")
	return script.Run(scriptName, script.DefaultScriptTimeout, logger, func(ctx context.Context) (script.Outcome, error) {
		return runGoto(ctx, scriptName, args, logger)
	})
}

func runGoto(ctx context.Context, scriptName string, args script.Args, logger *zap.Logger) (script.Outcome, error) {
	rt, err := host.Bootstrap(ctx, args, host.Options{
		Events: printProgress,
		Logger: logger,
	})
	if err != nil {
		return script.Outcome{}, err
	}
	defer rt.Close()

	scriptResultID, sc, err := rt.StartRun(ctx, scriptName, "navigation", args)
	if err != nil {
		return script.Outcome{}, err
	}

	h := rt.Handle
	sc.AddScreenshot(h.CaptureScreenshot())

	info, err := h.Navigation.LoadNavigationTree(ctx, args.UserinterfaceName, rt.TeamID)
	if err != nil {
		sc.RecordStep(script.StepResult{
			Category: script.StepNavigation,
			Error:    err.Error(),
			Message:  "load navigation tree",
		})
		return rt.FinishRun(ctx, scriptResultID, sc, false, err.Error()), nil
	}

	start := time.Now()
	res := h.Navigation.ExecuteNavigation(ctx, executor.NavRequest{
		TreeID:            info.TreeID,
		UserinterfaceName: args.UserinterfaceName,
		Target:            args.Node,
		TeamID:            rt.TeamID,
		ScriptContext:     sc,
	})
	sc.AddScreenshot(h.CaptureScreenshot())

	nav := h.Nav.Snapshot()
	sc.RecordStep(script.StepResult{
		Category:        script.StepNavigation,
		Success:         res.Success,
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		ToNode:          nav.CurrentNodeLabel,
		Message: fmt.Sprintf("%d/%d transitions, %d/%d actions",
			res.TransitionsExecuted, res.TotalTransitions,
			res.ActionsExecuted, res.TotalActions),
		Error: res.Error,
	})

	return rt.FinishRun(ctx, scriptResultID, sc, res.Success, res.Error), nil
}

func printProgress(e executor.ExecEvent) {
	switch e.Type {
	case executor.EventTransitionCompleted:
		fmt.Printf("[goto] reached %s\n", e.NodeID)
	case executor.EventTransitionFailed:
		fmt.Printf("[goto] transition failed at edge %s\n", e.EdgeID)
	}
}
