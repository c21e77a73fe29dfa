// ABOUTME: Script runner: wall-clock timeout, SIGINT/SIGTERM handling, and the stdout result protocol.
// ABOUTME: Exit 0 covers completed runs including test failures; SCRIPT_SUCCESS carries the verdict.
package script

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultScriptTimeout bounds a single script run's wall-clock time.
const DefaultScriptTimeout = time.Hour

// Outcome is what a script reports on completion.
type Outcome struct {
	Success   bool
	ReportURL string
	LogsURL   string
}

// ScriptFunc is the body of a script binary. The context is cancelled on
// timeout or signal; the function should return promptly after cancellation.
type ScriptFunc func(ctx context.Context) (Outcome, error)

// Run executes fn under the timeout and signal policy and prints the result
// protocol. Returns the process exit code: 0 when the script completed
// (whatever the verdict), 1 on unhandled error or interrupt.
func Run(scriptName string, timeout time.Duration, logger *zap.Logger, fn ScriptFunc) int {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := fn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Error("script interrupted", zap.String("script", scriptName), zap.Error(ctx.Err()))
			fmt.Fprintf(os.Stderr, "%s: interrupted: %v\n", scriptName, err)
			return 1
		}
		logger.Error("script failed", zap.String("script", scriptName), zap.Error(err))
		fmt.Fprintf(os.Stderr, "%s: %v\n", scriptName, err)
		return 1
	}

	PrintOutcome(outcome)
	return 0
}

// PrintOutcome emits the distinguished stdout lines the host parses.
func PrintOutcome(o Outcome) {
	fmt.Fprintf(os.Stdout, "SCRIPT_SUCCESS:%t\n", o.Success)
	if o.ReportURL != "" {
		fmt.Fprintf(os.Stdout, "SCRIPT_REPORT_URL:%s\n", o.ReportURL)
	}
	if o.LogsURL != "" {
		fmt.Fprintf(os.Stdout, "SCRIPT_LOGS_URL:%s\n", o.LogsURL)
	}
}
