// ABOUTME: Per-script-run state: step numbering, screenshot list, metadata, running-log writer.
// ABOUTME: One ScriptContext per subprocess; owns its lists exclusively, mutated only from the script goroutine.
package script

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/capture"
	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/navigation"
)

// Step categories.
const (
	StepNavigation   = "navigation"
	StepAction       = "action"
	StepVerification = "verification"
	StepZapAction    = "zap_action"
	StepValidation   = "validation"
)

// StepResult records one executed step of a script run.
type StepResult struct {
	StepNumber          int                             `json:"step_number"`
	Category            string                          `json:"category"`
	Success             bool                            `json:"success"`
	ExecutionTimeMS     int64                           `json:"execution_time_ms"`
	FromNode            string                          `json:"from_node,omitempty"`
	ToNode              string                          `json:"to_node,omitempty"`
	Message             string                          `json:"message,omitempty"`
	Error               string                          `json:"error,omitempty"`
	Actions             []navigation.Action             `json:"actions,omitempty"`
	Verifications       []navigation.Verification       `json:"verifications,omitempty"`
	VerificationResults []controller.VerificationResult `json:"verification_results,omitempty"`
	StartScreenshot     string                          `json:"step_start_screenshot_path,omitempty"`
	EndScreenshot       string                          `json:"step_end_screenshot_path,omitempty"`
	Screenshot          string                          `json:"screenshot_path,omitempty"`
	ZapMetrics          map[string]any                  `json:"zap_metrics,omitempty"`
	Recovered           bool                            `json:"recovered,omitempty"`
	ForcedTransition    bool                            `json:"forced_transition,omitempty"`
}

// ScriptContext is the per-run singleton. It owns the step list, the
// screenshot list, and the running-log file for live observers.
type ScriptContext struct {
	ScriptName string
	DeviceID   string
	TeamID     string
	StartTime  time.Time

	// PlannedSteps feeds the running log's estimated end; zero means unknown.
	PlannedSteps int
	// HistoricalAvgMS overrides the running average when > 0.
	HistoricalAvgMS float64

	Metadata  map[string]any
	Variables map[string]any

	paths  capture.Paths
	logger *zap.Logger

	mu          sync.Mutex
	steps       []StepResult
	screenshots []string // "" preserves a missing-screenshot slot positionally
	stdout      *StdoutCapture
}

// NewScriptContext builds the run state. The capture paths locate the
// running log and hot storage for this device.
func NewScriptContext(scriptName, deviceID string, paths capture.Paths, logger *zap.Logger) *ScriptContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptContext{
		ScriptName: scriptName,
		DeviceID:   deviceID,
		StartTime:  time.Now(),
		Metadata:   make(map[string]any),
		Variables:  make(map[string]any),
		paths:      paths,
		logger:     logger,
	}
}

// RecordStep assigns the next step number, appends the result, and rewrites
// the running log. Returns the assigned number.
func (sc *ScriptContext) RecordStep(step StepResult) int {
	sc.mu.Lock()
	step.StepNumber = len(sc.steps) + 1
	sc.steps = append(sc.steps, step)
	snapshot := make([]StepResult, len(sc.steps))
	copy(snapshot, sc.steps)
	sc.mu.Unlock()

	if err := sc.writeRunningLog(snapshot); err != nil {
		sc.logger.Warn("running log write failed", zap.Error(err))
	}
	return step.StepNumber
}

// AttachStdout hands the run's stdout tee to the context, which owns it for
// the rest of the run.
func (sc *ScriptContext) AttachStdout(c *StdoutCapture) {
	sc.mu.Lock()
	sc.stdout = c
	sc.mu.Unlock()
}

// ReleaseStdout restores the original stdout and returns everything the run
// printed. Returns "" when no tee is attached; subsequent calls are no-ops.
func (sc *ScriptContext) ReleaseStdout() string {
	sc.mu.Lock()
	c := sc.stdout
	sc.stdout = nil
	sc.mu.Unlock()
	if c == nil {
		return ""
	}
	return c.Restore()
}

// StepResults returns a copy of the recorded steps.
func (sc *ScriptContext) StepResults() []StepResult {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]StepResult, len(sc.steps))
	copy(out, sc.steps)
	return out
}

// AddScreenshot appends a screenshot path to the run's list. Paths under a
// hot directory are mirrored to the corresponding cold path first and the
// cold path is what gets stored; both copies survive until batch upload.
// An empty path records a positional placeholder.
func (sc *ScriptContext) AddScreenshot(path string) {
	stored := path
	if path != "" && capture.IsHot(path) {
		cold := capture.HotToCold(path)
		if err := copyFile(path, cold); err != nil {
			sc.logger.Warn("hot to cold mirror failed",
				zap.String("path", path), zap.Error(err))
		} else {
			stored = cold
		}
	}
	sc.mu.Lock()
	sc.screenshots = append(sc.screenshots, stored)
	sc.mu.Unlock()
}

// Screenshots returns a copy of the screenshot list.
func (sc *ScriptContext) Screenshots() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]string, len(sc.screenshots))
	copy(out, sc.screenshots)
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
