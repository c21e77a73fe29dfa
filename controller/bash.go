// ABOUTME: Desktop bash sub-controller: executes shell commands on the host running the device.
// ABOUTME: Owns execute_bash_command; stdout/stderr and exit status are lifted into the action result.
package controller

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// BashController runs shell commands for desktop-type actions.
type BashController struct {
	// Timeout bounds one command; zero means DefaultBashTimeout.
	Timeout time.Duration
}

// DefaultBashTimeout bounds a single bash command execution.
const DefaultBashTimeout = 60 * time.Second

// BashCommand is the single command this controller owns.
const BashCommand = "execute_bash_command"

// Type returns the controller family.
func (c *BashController) Type() string { return "desktop" }

// AvailableActions lists the commands this controller owns.
func (c *BashController) AvailableActions() []string {
	return []string{BashCommand}
}

// ExecuteCommand runs the bash command found in params["command"].
func (c *BashController) ExecuteCommand(ctx context.Context, command string, params map[string]any) Result {
	if command != BashCommand {
		return Result{Success: false, Error: fmt.Sprintf("bash controller does not own command %q", command)}
	}
	script, _ := params["command"].(string)
	if strings.TrimSpace(script) == "" {
		return Result{Success: false, Error: "execute_bash_command requires a non-empty command param"}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultBashTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "bash", "-c", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := map[string]any{
		"stdout": stdout.String(),
		"stderr": stderr.String(),
	}
	if err != nil {
		return Result{
			Success:    false,
			Error:      fmt.Sprintf("bash command failed: %v", err),
			OutputData: out,
		}
	}
	return Result{Success: true, Message: "bash command completed", OutputData: out}
}
