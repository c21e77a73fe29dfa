// ABOUTME: Durable-storage interfaces for the execution engine: tree source (read) and execution records (write).
// ABOUTME: Record shapes mirror the hosted database tables; SQLite and the hosted backend implement the same interfaces.
package storage

import (
	"context"
	"time"

	"github.com/virtualpytest/navigator/navigation"
)

// TreeSource fetches userinterface navigation trees. Read-only for the core.
type TreeSource interface {
	FetchUserinterfaceTrees(ctx context.Context, name, teamID string) ([]navigation.Tree, error)
}

// ScriptExecution describes a script run row at start time.
type ScriptExecution struct {
	TeamID            string
	ScriptName        string
	ScriptType        string
	UserinterfaceName string
	HostName          string
	DeviceName        string
	Metadata          map[string]any
}

// ScriptResult carries the final outcome written back onto the run row.
type ScriptResult struct {
	Success         bool
	ExecutionTimeMS int64
	HTMLReportURL   string
	LogsURL         string
	ErrorMsg        string
	Metadata        map[string]any
}

// EdgeExecution is one recorded edge (action batch) execution.
type EdgeExecution struct {
	TeamID          string
	TreeID          string
	EdgeID          string
	HostName        string
	DeviceModel     string
	DeviceName      string
	Success         bool
	ExecutionTimeMS int64
	Message         string
	ErrorDetails    string
	ScriptResultID  string
	ScriptContext   string
	ActionSetID     string
}

// NodeExecution is one recorded node verification execution.
type NodeExecution struct {
	TeamID          string
	TreeID          string
	NodeID          string
	HostName        string
	DeviceModel     string
	DeviceName      string
	Success         bool
	ExecutionTimeMS int64
	Message         string
	ErrorDetails    string
	ScriptResultID  string
	ScriptContext   string
}

// ZapIteration is one recorded channel-change analysis iteration.
type ZapIteration struct {
	ScriptResultID    string
	TeamID            string
	HostName          string
	DeviceName        string
	DeviceModel       string
	UserinterfaceName string
	IterationIndex    int
	ActionCommand     string
	StartedAt         time.Time
	CompletedAt       time.Time
	DurationSeconds   float64
	MotionDetected    bool
	SubtitlesDetected bool
	AudioDetected     bool
	ZappingDetected   bool
	Languages         []string
	Texts             []string
	BlackscreenMS     float64
	DetectionMethod   string
	ChannelName       string
	ChannelNumber     string
	ProgramName       string
	ProgramStartTime  string
	ProgramEndTime    string
}

// ExecutionRecorder is the write path for execution records.
type ExecutionRecorder interface {
	RecordScriptExecutionStart(ctx context.Context, exec ScriptExecution) (string, error)
	UpdateScriptExecutionResult(ctx context.Context, scriptResultID string, result ScriptResult) error
	RecordEdgeExecution(ctx context.Context, rec EdgeExecution) error
	RecordNodeExecution(ctx context.Context, rec NodeExecution) error
	RecordZapIteration(ctx context.Context, rec ZapIteration) (string, error)
}

// NopRecorder discards every record. Used when db recording is skipped and in
// tests that do not assert on persistence.
type NopRecorder struct{}

func (NopRecorder) RecordScriptExecutionStart(ctx context.Context, exec ScriptExecution) (string, error) {
	return "", nil
}
func (NopRecorder) UpdateScriptExecutionResult(ctx context.Context, scriptResultID string, result ScriptResult) error {
	return nil
}
func (NopRecorder) RecordEdgeExecution(ctx context.Context, rec EdgeExecution) error { return nil }
func (NopRecorder) RecordNodeExecution(ctx context.Context, rec NodeExecution) error { return nil }
func (NopRecorder) RecordZapIteration(ctx context.Context, rec ZapIteration) (string, error) {
	return "", nil
}
