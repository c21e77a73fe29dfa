// ABOUTME: Zap-iteration script binary: fires a channel-change action N times and analyzes each zap.
// ABOUTME: Per-iteration failures are recorded and the loop continues; the verdict aggregates all iterations.
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
	"github.com/virtualpytest/navigator/zapping"
)

func main() {
	host.LoadDotEnv(".env")
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	args, err := script.ParseArgs("fullzap", argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fullzap: %v\n", err)
		return 2
	}
	if args.Action == "" {
		fmt.Fprintln(os.Stderr, "fullzap: --action <name> is required")
		return 2
	}
	if args.MaxIteration < 1 {
		args.MaxIteration = 1
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fullzap: %v\n", err)
		return 1
	}
	defer logger.Sync()

	scriptName := host.ScriptName("fullzap")
	return script.Run(scriptName, script.DefaultScriptTimeout, logger, func(ctx context.Context) (script.Outcome, error) {
		return runFullzap(ctx, scriptName, args, logger)
	})
}

func runFullzap(ctx context.Context, scriptName string, args script.Args, logger *zap.Logger) (script.Outcome, error) {
	rt, err := host.Bootstrap(ctx, args, host.Options{
		Events: printProgress,
		Logger: logger,
	})
	if err != nil {
		return script.Outcome{}, err
	}
	defer rt.Close()

	scriptResultID, sc, err := rt.StartRun(ctx, scriptName, "fullzap", args)
	if err != nil {
		return script.Outcome{}, err
	}
	sc.PlannedSteps = args.MaxIteration

	h := rt.Handle
	analyzer := zapping.NewAnalyzer(h)
	sc.AddScreenshot(h.CaptureScreenshot())

	success := true
	var lastErr string
	for i := 1; i <= args.MaxIteration; i++ {
		if ctx.Err() != nil {
			return script.Outcome{}, ctx.Err()
		}

		batch := h.Actions.ExecuteActions(ctx, executor.ActionBatch{
			Actions: []navigation.Action{{
				Command: args.Action,
				Type:    navigation.ActionRemote,
			}},
			TeamID:        rt.TeamID,
			ScriptContext: sc,
		})
		if !batch.OverallSuccess {
			success = false
			lastErr = batch.Error
			sc.RecordStep(script.StepResult{
				Category: script.StepZapAction,
				Message:  fmt.Sprintf("iteration %d: %s", i, args.Action),
				Error:    batch.Error,
			})
			continue
		}

		res := analyzer.Analyze(ctx, zapping.Request{
			IterationIndex:  i,
			ActionCommand:   args.Action,
			ActionTimestamp: h.Nav.Snapshot().LastActionTimestamp,
			AudioAnalysis:   args.AudioAnalysis,
			ScriptResultID:  scriptResultID,
			ScriptContext:   sc,
		})
		if !res.Success {
			// Zap analysis failures never stop the loop.
			success = false
			lastErr = res.Error
		}
	}

	sum := analyzer.Stats.Summary()
	logger.Info("zap run finished",
		zap.Int("iterations", sum.Total),
		zap.Int("successful", sum.Successful),
		zap.Int("zapping_detected", sum.ZappingDetected),
		zap.Float64("avg_zap_duration_s", sum.AvgZapDurationS),
		zap.Strings("languages", sum.DetectedLanguages))

	return rt.FinishRun(ctx, scriptResultID, sc, success, lastErr), nil
}

func printProgress(e executor.ExecEvent) {
	if e.Type != executor.EventZapIterationDone {
		return
	}
	fmt.Printf("[fullzap] iteration %v done, zapping=%v channel=%v\n",
		e.Data["iteration"], e.Data["zapping_detected"], e.Data["channel_name"])
}
