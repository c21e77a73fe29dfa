// ABOUTME: ADB remote controller: key presses, text input, and app lifecycle over the adb binary.
// ABOUTME: One instance per attached Android device, addressed by serial.
package controller

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Remote commands owned by the ADB controller.
const (
	CmdPressKey       = "press_key"
	CmdInputText      = "input_text"
	CmdLaunchApp      = "launch_app"
	CmdCloseApp       = "close_app"
	CmdTapCoordinates = "tap_coordinates"
)

// DefaultADBTimeout bounds a single adb invocation.
const DefaultADBTimeout = 30 * time.Second

// adbKeycodes maps remote key names to Android keycodes. Unknown keys pass
// through verbatim so raw KEYCODE_* names keep working.
var adbKeycodes = map[string]string{
	"UP":       "KEYCODE_DPAD_UP",
	"DOWN":     "KEYCODE_DPAD_DOWN",
	"LEFT":     "KEYCODE_DPAD_LEFT",
	"RIGHT":    "KEYCODE_DPAD_RIGHT",
	"OK":       "KEYCODE_DPAD_CENTER",
	"BACK":     "KEYCODE_BACK",
	"HOME":     "KEYCODE_HOME",
	"MENU":     "KEYCODE_MENU",
	"POWER":    "KEYCODE_POWER",
	"CH_UP":    "KEYCODE_CHANNEL_UP",
	"CH_DOWN":  "KEYCODE_CHANNEL_DOWN",
	"VOL_UP":   "KEYCODE_VOLUME_UP",
	"VOL_DOWN": "KEYCODE_VOLUME_DOWN",
}

// ADBController drives an Android device through the adb binary.
type ADBController struct {
	Serial string
	// Timeout bounds one adb call; zero means DefaultADBTimeout.
	Timeout time.Duration
}

func (c *ADBController) Type() string { return "remote" }

func (c *ADBController) AvailableActions() []string {
	return []string{CmdPressKey, CmdInputText, CmdLaunchApp, CmdCloseApp, CmdTapCoordinates}
}

// ExecuteCommand dispatches one remote command to adb shell.
func (c *ADBController) ExecuteCommand(ctx context.Context, command string, params map[string]any) Result {
	var args []string
	switch command {
	case CmdPressKey:
		key, _ := params["key"].(string)
		if key == "" {
			return Result{Error: "press_key requires a key param"}
		}
		args = []string{"input", "keyevent", keycodeFor(key)}
	case CmdInputText:
		text, _ := params["text"].(string)
		if text == "" {
			return Result{Error: "input_text requires a text param"}
		}
		args = []string{"input", "text", strings.ReplaceAll(text, " ", "%s")}
	case CmdLaunchApp:
		pkg, _ := params["package"].(string)
		if pkg == "" {
			return Result{Error: "launch_app requires a package param"}
		}
		args = []string{"monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1"}
	case CmdCloseApp:
		pkg, _ := params["package"].(string)
		if pkg == "" {
			return Result{Error: "close_app requires a package param"}
		}
		args = []string{"am", "force-stop", pkg}
	case CmdTapCoordinates:
		x, okX := intParam(params, "x")
		y, okY := intParam(params, "y")
		if !okX || !okY {
			return Result{Error: "tap_coordinates requires x and y params"}
		}
		args = []string{"input", "tap", fmt.Sprint(x), fmt.Sprint(y)}
	default:
		return Result{Error: fmt.Sprintf("adb controller does not own command %q", command)}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultADBTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := append([]string{"-s", c.Serial, "shell"}, args...)
	cmd := exec.CommandContext(cctx, "adb", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{
			Error: fmt.Sprintf("adb %s failed: %v", command, err),
			OutputData: map[string]any{
				"stdout": stdout.String(),
				"stderr": stderr.String(),
			},
		}
	}
	return Result{Success: true, Message: fmt.Sprintf("adb %s completed", command)}
}

// keycodeFor maps a remote key name to its Android keycode.
func keycodeFor(key string) string {
	if code, ok := adbKeycodes[strings.ToUpper(key)]; ok {
		return code
	}
	return key
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}
