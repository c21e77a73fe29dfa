// ABOUTME: SQLite-backed execution record store implementing ExecutionRecorder.
// ABOUTME: WAL mode, schema-on-open, ULID row ids; a self-contained stand-in for the hosted database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// SqliteRecorder persists execution records to a local SQLite database.
type SqliteRecorder struct {
	db *sql.DB
}

// OpenSqlite opens or creates the execution record database at the given
// path and ensures the schema exists.
func OpenSqlite(path string) (*SqliteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS script_results (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			script_name TEXT NOT NULL,
			script_type TEXT NOT NULL,
			userinterface_name TEXT,
			host_name TEXT NOT NULL,
			device_name TEXT NOT NULL,
			success INTEGER,
			execution_time_ms INTEGER,
			html_report_url TEXT,
			logs_url TEXT,
			error_msg TEXT,
			metadata TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT
		);

		CREATE TABLE IF NOT EXISTS edge_executions (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			tree_id TEXT NOT NULL,
			edge_id TEXT NOT NULL,
			host_name TEXT NOT NULL,
			device_model TEXT NOT NULL,
			device_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			execution_time_ms INTEGER NOT NULL,
			message TEXT,
			error_details TEXT,
			script_result_id TEXT,
			script_context TEXT,
			action_set_id TEXT,
			recorded_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS node_executions (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			tree_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			host_name TEXT NOT NULL,
			device_model TEXT NOT NULL,
			device_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			execution_time_ms INTEGER NOT NULL,
			message TEXT,
			error_details TEXT,
			script_result_id TEXT,
			script_context TEXT,
			recorded_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS zap_iterations (
			id TEXT PRIMARY KEY,
			script_result_id TEXT,
			team_id TEXT NOT NULL,
			host_name TEXT NOT NULL,
			device_name TEXT NOT NULL,
			device_model TEXT NOT NULL,
			userinterface_name TEXT NOT NULL,
			iteration_index INTEGER NOT NULL,
			action_command TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			duration_seconds REAL NOT NULL,
			motion_detected INTEGER NOT NULL,
			subtitles_detected INTEGER NOT NULL,
			audio_detected INTEGER NOT NULL,
			zapping_detected INTEGER NOT NULL,
			languages TEXT,
			texts TEXT,
			blackscreen_ms REAL,
			detection_method TEXT,
			channel_name TEXT,
			channel_number TEXT,
			program_name TEXT,
			program_start_time TEXT,
			program_end_time TEXT
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SqliteRecorder{db: db}, nil
}

// Close closes the underlying database.
func (r *SqliteRecorder) Close() error {
	return r.db.Close()
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func jsonOrEmpty(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// RecordScriptExecutionStart inserts the run row and returns its id.
func (r *SqliteRecorder) RecordScriptExecutionStart(ctx context.Context, exec ScriptExecution) (string, error) {
	id := ulid.Make().String()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO script_results
		 (id, team_id, script_name, script_type, userinterface_name, host_name, device_name, metadata, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, exec.TeamID, exec.ScriptName, exec.ScriptType, exec.UserinterfaceName,
		exec.HostName, exec.DeviceName, jsonOrEmpty(exec.Metadata),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert script result: %w", err)
	}
	return id, nil
}

// UpdateScriptExecutionResult writes the final outcome onto the run row.
func (r *SqliteRecorder) UpdateScriptExecutionResult(ctx context.Context, scriptResultID string, result ScriptResult) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE script_results SET
			success = ?, execution_time_ms = ?, html_report_url = ?,
			logs_url = ?, error_msg = ?, metadata = ?, completed_at = ?
		 WHERE id = ?`,
		boolInt(result.Success), result.ExecutionTimeMS, result.HTMLReportURL,
		result.LogsURL, result.ErrorMsg, jsonOrEmpty(result.Metadata),
		time.Now().UTC().Format(timeLayout), scriptResultID,
	)
	if err != nil {
		return fmt.Errorf("update script result: %w", err)
	}
	return nil
}

// RecordEdgeExecution inserts one edge execution row.
func (r *SqliteRecorder) RecordEdgeExecution(ctx context.Context, rec EdgeExecution) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO edge_executions
		 (id, team_id, tree_id, edge_id, host_name, device_model, device_name,
		  success, execution_time_ms, message, error_details, script_result_id,
		  script_context, action_set_id, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), rec.TeamID, rec.TreeID, rec.EdgeID, rec.HostName,
		rec.DeviceModel, rec.DeviceName, boolInt(rec.Success), rec.ExecutionTimeMS,
		rec.Message, rec.ErrorDetails, rec.ScriptResultID, rec.ScriptContext,
		rec.ActionSetID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert edge execution: %w", err)
	}
	return nil
}

// RecordNodeExecution inserts one node execution row.
func (r *SqliteRecorder) RecordNodeExecution(ctx context.Context, rec NodeExecution) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO node_executions
		 (id, team_id, tree_id, node_id, host_name, device_model, device_name,
		  success, execution_time_ms, message, error_details, script_result_id,
		  script_context, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ulid.Make().String(), rec.TeamID, rec.TreeID, rec.NodeID, rec.HostName,
		rec.DeviceModel, rec.DeviceName, boolInt(rec.Success), rec.ExecutionTimeMS,
		rec.Message, rec.ErrorDetails, rec.ScriptResultID, rec.ScriptContext,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert node execution: %w", err)
	}
	return nil
}

// RecordZapIteration inserts one zap iteration row and returns its id.
func (r *SqliteRecorder) RecordZapIteration(ctx context.Context, rec ZapIteration) (string, error) {
	id := ulid.Make().String()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO zap_iterations
		 (id, script_result_id, team_id, host_name, device_name, device_model,
		  userinterface_name, iteration_index, action_command, started_at,
		  completed_at, duration_seconds, motion_detected, subtitles_detected,
		  audio_detected, zapping_detected, languages, texts, blackscreen_ms,
		  detection_method, channel_name, channel_number, program_name,
		  program_start_time, program_end_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.ScriptResultID, rec.TeamID, rec.HostName, rec.DeviceName,
		rec.DeviceModel, rec.UserinterfaceName, rec.IterationIndex, rec.ActionCommand,
		rec.StartedAt.UTC().Format(timeLayout), rec.CompletedAt.UTC().Format(timeLayout),
		rec.DurationSeconds, boolInt(rec.MotionDetected), boolInt(rec.SubtitlesDetected),
		boolInt(rec.AudioDetected), boolInt(rec.ZappingDetected),
		strings.Join(rec.Languages, ","), strings.Join(rec.Texts, "|"),
		rec.BlackscreenMS, rec.DetectionMethod, rec.ChannelName, rec.ChannelNumber,
		rec.ProgramName, rec.ProgramStartTime, rec.ProgramEndTime,
	)
	if err != nil {
		return "", fmt.Errorf("insert zap iteration: %w", err)
	}
	return id, nil
}

// CountEdgeExecutions returns the number of edge rows for a tree. Used by
// tests and reporting.
func (r *SqliteRecorder) CountEdgeExecutions(ctx context.Context, treeID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edge_executions WHERE tree_id = ?", treeID).Scan(&n)
	return n, err
}

// CountZapIterations returns the number of zap rows for a team.
func (r *SqliteRecorder) CountZapIterations(ctx context.Context, teamID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM zap_iterations WHERE team_id = ?", teamID).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
