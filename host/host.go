// ABOUTME: Host runtime wiring for the script binaries: config, storage, controllers, device handle.
// ABOUTME: Environment layout hangs off PROJECT_ROOT; the R2 store attaches only when configured.
package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/executor"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/objectstore"
	"github.com/virtualpytest/navigator/script"
	"github.com/virtualpytest/navigator/storage"
)

// Options adjusts the runtime wiring.
type Options struct {
	// Events receives executor lifecycle events for progress printing.
	Events executor.EventHandler
	Logger *zap.Logger
}

// Runtime is the wired host environment one script binary runs against.
type Runtime struct {
	HostName string
	TeamID   string
	Device   executor.Device
	Handle   *executor.DeviceHandle
	Recorder storage.ExecutionRecorder
	Store    objectstore.Client
	Logger   *zap.Logger

	closers []func() error
}

// projectRoot resolves the PROJECT_ROOT environment layout base.
func projectRoot() string {
	if root := os.Getenv("PROJECT_ROOT"); root != "" {
		return root
	}
	return "."
}

// ScriptName applies the AI test-case redirection: AI_SCRIPT_NAME overrides
// the binary's default name when set.
func ScriptName(defaultName string) string {
	if name := os.Getenv("AI_SCRIPT_NAME"); name != "" {
		return name
	}
	return defaultName
}

// Bootstrap loads the host config, opens storage, and builds the device
// handle for the selected device.
func Bootstrap(ctx context.Context, args script.Args, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	root := projectRoot()

	cfg, err := executor.LoadHostConfig(filepath.Join(root, "config", "host.yaml"))
	if err != nil {
		return nil, err
	}
	if args.Host != "" && args.Host != cfg.HostName {
		return nil, fmt.Errorf("host %q does not match configured host %q", args.Host, cfg.HostName)
	}

	var dev executor.Device
	if args.Device != "" {
		d, ok := cfg.Device(args.Device)
		if !ok {
			return nil, fmt.Errorf("device %q not in host config", args.Device)
		}
		dev = d
	} else {
		if len(cfg.Devices) == 0 {
			return nil, fmt.Errorf("host config has no devices")
		}
		dev = cfg.Devices[0]
	}

	teamID := os.Getenv("TEAM_ID")
	if teamID == "" {
		teamID = "default"
	}

	dbPath := filepath.Join(root, "data", "executions.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	recorder, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return nil, err
	}

	var store objectstore.Client
	if r2cfg, err := objectstore.R2ConfigFromEnv(); err == nil {
		client, err := objectstore.NewR2Client(ctx, r2cfg, logger)
		if err != nil {
			_ = recorder.Close()
			return nil, err
		}
		store = client
	} else {
		logger.Info("object storage not configured, screenshots stay local")
	}

	ctrls := executor.Controllers{
		Remote: &controller.ADBController{Serial: dev.ID},
		Bash:   &controller.BashController{},
		AV:     &controller.CaptureAV{CaptureRoot: dev.CaptureRoot},
	}
	h := executor.NewDeviceHandle(dev, ctrls, executor.HandleOptions{
		Recorder:          recorder,
		Store:             store,
		Trees:             &storage.FileTreeSource{Path: filepath.Join(root, "config", "trees.json")},
		Cache:             navigation.NewCache(),
		Logger:            logger,
		Events:            opts.Events,
		TeamID:            teamID,
		HostName:          cfg.HostName,
		UserinterfaceName: args.UserinterfaceName,
	})

	return &Runtime{
		HostName: cfg.HostName,
		TeamID:   teamID,
		Device:   dev,
		Handle:   h,
		Recorder: recorder,
		Store:    store,
		Logger:   logger,
		closers:  []func() error{recorder.Close},
	}, nil
}

// Close releases the runtime's resources.
func (r *Runtime) Close() {
	for _, fn := range r.closers {
		if err := fn(); err != nil {
			r.Logger.Warn("close failed", zap.Error(err))
		}
	}
}

// StartRun opens the script's database row and attaches its identity to the
// device navigation context.
func (r *Runtime) StartRun(ctx context.Context, scriptName, scriptType string, args script.Args) (string, *script.ScriptContext, error) {
	id, err := r.Recorder.RecordScriptExecutionStart(ctx, storage.ScriptExecution{
		TeamID:            r.TeamID,
		ScriptName:        scriptName,
		ScriptType:        scriptType,
		UserinterfaceName: args.UserinterfaceName,
		HostName:          r.HostName,
		DeviceName:        r.Device.Name,
	})
	if err != nil {
		return "", nil, fmt.Errorf("record script start: %w", err)
	}
	r.Handle.Nav.SetScript(id, scriptName, false)

	sc := script.NewScriptContext(scriptName, r.Device.ID, r.Handle.Paths, r.Logger)
	if tee, err := script.CaptureStdout(); err == nil {
		sc.AttachStdout(tee)
	} else {
		r.Logger.Warn("stdout capture unavailable", zap.Error(err))
	}
	return id, sc, nil
}

// FinishRun restores stdout, uploads the run's screenshots and captured log,
// closes the database row, and builds the stdout outcome. Failures here
// degrade the outcome but never error: the script already has a verdict.
func (r *Runtime) FinishRun(ctx context.Context, scriptResultID string, sc *script.ScriptContext, success bool, errMsg string) script.Outcome {
	logText := sc.ReleaseStdout()

	var logsURL string
	if r.Store != nil {
		report := sc.UploadScreenshots(ctx, r.Store)
		if len(report.FailedUploads) > 0 {
			r.Logger.Warn("some screenshots failed to upload",
				zap.Int("failed", len(report.FailedUploads)))
		}
		logsURL = r.uploadLog(ctx, scriptResultID, sc.ScriptName, logText)
	}

	elapsed := int64(0)
	if !sc.StartTime.IsZero() {
		elapsed = time.Since(sc.StartTime).Milliseconds()
	}
	err := r.Recorder.UpdateScriptExecutionResult(ctx, scriptResultID, storage.ScriptResult{
		Success:         success,
		ExecutionTimeMS: elapsed,
		LogsURL:         logsURL,
		ErrorMsg:        errMsg,
	})
	if err != nil {
		r.Logger.Warn("script result row not updated", zap.Error(err))
	}
	return script.Outcome{Success: success, LogsURL: logsURL}
}

// uploadLog pushes the run's captured stdout as the script log and returns
// its public URL, or "" when nothing was captured or the upload failed.
func (r *Runtime) uploadLog(ctx context.Context, scriptResultID, scriptName, logText string) string {
	if logText == "" {
		return ""
	}
	logPath := filepath.Join(r.Device.CaptureRoot, scriptResultID+".log")
	err := os.MkdirAll(r.Device.CaptureRoot, 0o755)
	if err == nil {
		err = os.WriteFile(logPath, []byte(logText), 0o644)
	}
	if err != nil {
		r.Logger.Warn("script log not written", zap.Error(err))
		return ""
	}
	report := r.Store.UploadFiles(ctx, []objectstore.FileUpload{{
		LocalPath:  logPath,
		RemotePath: objectstore.ScriptLogKey(r.Device.ID, scriptName, scriptResultID),
	}})
	return report.UploadedFiles[logPath]
}
