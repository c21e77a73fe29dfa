// ABOUTME: Device handle: typed controller set, executor singletons, and the mutable navigation context.
// ABOUTME: One handle per attached device for the host process lifetime; host config comes from YAML.
package executor

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/virtualpytest/navigator/capture"
	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/objectstore"
	"github.com/virtualpytest/navigator/storage"
)

// Device describes one attached device from the host config.
type Device struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Model       string `yaml:"model"`
	CaptureRoot string `yaml:"capture_root"`
}

// HostConfig is the per-host YAML configuration.
type HostConfig struct {
	HostName string   `yaml:"host_name"`
	Devices  []Device `yaml:"devices"`
}

// LoadHostConfig reads and parses a host YAML file.
func LoadHostConfig(path string) (*HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host config: %w", err)
	}
	var cfg HostConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse host config: %w", err)
	}
	if cfg.HostName == "" {
		return nil, fmt.Errorf("host config %s missing host_name", path)
	}
	return &cfg, nil
}

// Device returns the device with the given id.
func (c *HostConfig) Device(id string) (Device, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// NavState is a point-in-time copy of the device navigation context.
type NavState struct {
	CurrentTreeID       string
	CurrentNodeID       string
	CurrentNodeLabel    string
	ScriptID            string
	ScriptName          string
	SkipDBRecording     bool
	LastActionExecuted  string
	LastActionTimestamp float64
}

// NavContext is the device's mutable navigation context. Reads and writes
// are serialized; the executors snapshot it rather than holding the lock.
type NavContext struct {
	mu    sync.Mutex
	state NavState
}

// Snapshot returns a copy of the current state.
func (n *NavContext) Snapshot() NavState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// UpdatePosition sets the device's current node and tree.
func (n *NavContext) UpdatePosition(nodeID, treeID, nodeLabel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.CurrentNodeID = nodeID
	n.state.CurrentTreeID = treeID
	n.state.CurrentNodeLabel = nodeLabel
}

// SetScript attaches the running script's identity to the context.
func (n *NavContext) SetScript(scriptID, scriptName string, skipDBRecording bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.ScriptID = scriptID
	n.state.ScriptName = scriptName
	n.state.SkipDBRecording = skipDBRecording
}

// SetLastAction records the most recent executed action and its completion
// timestamp (Unix seconds).
func (n *NavContext) SetLastAction(command string, timestamp float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.LastActionExecuted = command
	n.state.LastActionTimestamp = timestamp
}

// Controllers is the typed controller set attached to a device. Nil entries
// mean the device lacks that surface.
type Controllers struct {
	Remote  controller.ActionController
	Web     controller.ActionController
	Bash    controller.ActionController // desktop: execute_bash_command
	Desktop controller.ActionController // desktop: ui automation
	AVCmds  controller.ActionController
	AV      controller.AVController
	Power   controller.PowerController
	// PowerCommands lists the commands the power controller owns, for type
	// inference (the controller interface itself has no command list).
	PowerCommands []string
	Verifiers     map[navigation.VerificationType]controller.VerificationController
}

// HandleOptions carries the shared collaborators a device handle needs.
type HandleOptions struct {
	Recorder          storage.ExecutionRecorder
	Store             objectstore.Client
	Trees             storage.TreeSource
	Cache             *navigation.Cache
	Logger            *zap.Logger
	Events            EventHandler
	TeamID            string
	HostName          string
	UserinterfaceName string
	// ReferenceCacheDir is where fetched reference images land; defaults to
	// <capture_root>/reference_cache.
	ReferenceCacheDir string
	OCR               OCREngine
	Transcriber       Transcriber
	SubtitleAnalyzer  SubtitleAnalyzer
}

// DeviceHandle owns the controllers and executor singletons for one device.
type DeviceHandle struct {
	Device      Device
	Controllers Controllers
	Registry    *controller.Registry
	Blocks      *controller.BlockRegistry
	Paths       capture.Paths
	Nav         *NavContext

	Actions       *ActionExecutor
	Verifications *VerificationExecutor
	Navigation    *NavigationExecutor

	opts   HandleOptions
	logger *zap.Logger
}

// NewDeviceHandle wires the registry and constructs the executor singletons.
// Executors are built once so their caches persist across navigation steps.
func NewDeviceHandle(dev Device, ctrls Controllers, opts HandleOptions) *DeviceHandle {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = storage.NopRecorder{}
	}
	if opts.Cache == nil {
		opts.Cache = navigation.NewCache()
	}
	if opts.ReferenceCacheDir == "" {
		opts.ReferenceCacheDir = dev.CaptureRoot + "/reference_cache"
	}

	reg := controller.NewRegistry()
	for _, t := range []navigation.VerificationType{
		navigation.VerifyImage, navigation.VerifyText, navigation.VerifyADB,
		navigation.VerifyVideo, navigation.VerifyAudio,
	} {
		if v := ctrls.Verifiers[t]; v != nil {
			reg.RegisterVerifications(v)
		}
	}
	reg.RegisterActions(navigation.ActionRemote, ctrls.Remote)
	reg.RegisterActions(navigation.ActionWeb, ctrls.Web)
	reg.RegisterActions(navigation.ActionDesktop, ctrls.Bash)
	reg.RegisterActions(navigation.ActionDesktop, ctrls.Desktop)
	reg.RegisterActions(navigation.ActionAV, ctrls.AVCmds)
	if ctrls.Power != nil {
		reg.RegisterPower(ctrls.PowerCommands)
	}

	h := &DeviceHandle{
		Device:      dev,
		Controllers: ctrls,
		Registry:    reg,
		Blocks:      controller.NewBlockRegistry(),
		Paths:       capture.Paths{Root: dev.CaptureRoot},
		Nav:         &NavContext{},
		opts:        opts,
		logger:      opts.Logger.With(zap.String("device", dev.ID)),
	}
	h.Verifications = newVerificationExecutor(h)
	h.Actions = newActionExecutor(h)
	h.Navigation = newNavigationExecutor(h)
	return h
}

// Recorder returns the execution recorder this handle writes to.
func (h *DeviceHandle) Recorder() storage.ExecutionRecorder { return h.opts.Recorder }

// Store returns the object-storage client, which may be nil.
func (h *DeviceHandle) Store() objectstore.Client { return h.opts.Store }

// Events returns the event handler, which may be nil.
func (h *DeviceHandle) Events() EventHandler { return h.opts.Events }

// Logger returns the handle's device-scoped logger.
func (h *DeviceHandle) Logger() *zap.Logger { return h.logger }

func (h *DeviceHandle) TeamID() string { return h.opts.TeamID }

func (h *DeviceHandle) HostName() string { return h.opts.HostName }

func (h *DeviceHandle) UserinterfaceName() string { return h.opts.UserinterfaceName }
