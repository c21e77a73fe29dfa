// ABOUTME: Verification batch executor: filtering, controller dispatch, and node-execution recording.
// ABOUTME: Built-in image/text/motion/audio verifiers fill any family the device does not bring its own controller for.
package executor

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/storage"
)

// VerificationBatch is one ordered verification list with recording context.
type VerificationBatch struct {
	Verifications  []navigation.Verification
	ImageSourceURL string
	TeamID         string
	TreeID         string
	NodeID         string
}

// VerificationBatchResult aggregates the per-verification outcomes.
type VerificationBatchResult struct {
	OverallSuccess  bool                            `json:"overall_success"`
	Results         []controller.VerificationResult `json:"results"`
	ExecutionTimeMS int64                           `json:"execution_time_ms"`
}

// VerificationExecutor routes verifications to per-type controllers.
type VerificationExecutor struct {
	h         *DeviceHandle
	verifiers map[navigation.VerificationType]controller.VerificationController
	now       func() time.Time
}

func newVerificationExecutor(h *DeviceHandle) *VerificationExecutor {
	verifiers := make(map[navigation.VerificationType]controller.VerificationController)
	for t, v := range h.Controllers.Verifiers {
		verifiers[t] = v
	}
	// Built-ins cover the families the device has no dedicated controller for.
	if verifiers[navigation.VerifyImage] == nil {
		verifiers[navigation.VerifyImage] = newImageVerifier(h)
	}
	if verifiers[navigation.VerifyText] == nil {
		verifiers[navigation.VerifyText] = newTextVerifier(h)
	}
	if verifiers[navigation.VerifyVideo] == nil {
		verifiers[navigation.VerifyVideo] = newMotionVerifier(h)
	}
	if verifiers[navigation.VerifyAudio] == nil {
		verifiers[navigation.VerifyAudio] = newAudioVerifier(h)
	}
	return &VerificationExecutor{h: h, verifiers: verifiers, now: time.Now}
}

// ExecuteVerifications filters, dispatches, and records the batch. Overall
// success requires every valid verification to pass.
func (e *VerificationExecutor) ExecuteVerifications(ctx context.Context, batch VerificationBatch) VerificationBatchResult {
	start := e.now()
	valid := filterVerifications(batch.Verifications)

	res := VerificationBatchResult{OverallSuccess: true}
	sourcePath := toLocalPath(batch.ImageSourceURL)

	for _, v := range valid {
		vr := e.executeOne(ctx, v, sourcePath, batch.TeamID)
		res.Results = append(res.Results, vr)
		if !vr.Success {
			res.OverallSuccess = false
		}
		emit(e.h.opts.Events, ExecEvent{
			Type:   EventVerificationRun,
			NodeID: batch.NodeID,
			Data:   map[string]any{"command": v.Command, "success": vr.Success},
		})
	}
	res.ExecutionTimeMS = e.now().Sub(start).Milliseconds()

	if batch.TreeID != "" && batch.NodeID != "" && batch.TeamID != "" {
		nav := e.h.Nav.Snapshot()
		if !nav.SkipDBRecording {
			msg := fmt.Sprintf("%d/%d verifications passed", passCount(res.Results), len(res.Results))
			err := e.h.opts.Recorder.RecordNodeExecution(ctx, storage.NodeExecution{
				TeamID:          batch.TeamID,
				TreeID:          batch.TreeID,
				NodeID:          batch.NodeID,
				HostName:        e.h.opts.HostName,
				DeviceModel:     e.h.Device.Model,
				DeviceName:      e.h.Device.Name,
				Success:         res.OverallSuccess,
				ExecutionTimeMS: res.ExecutionTimeMS,
				Message:         msg,
				ScriptResultID:  nav.ScriptID,
				ScriptContext:   nav.ScriptName,
			})
			if err != nil {
				e.h.logger.Warn("node execution record failed", zap.Error(err))
			}
		}
	}
	return res
}

// VerifyNode runs the stored verifications of one node from the cached graph.
func (e *VerificationExecutor) VerifyNode(ctx context.Context, graph *navigation.Graph, nodeID, teamID, treeID string) (VerificationBatchResult, error) {
	node := graph.ResolveNode(nodeID)
	if node == nil {
		return VerificationBatchResult{}, fmt.Errorf("node %q not found", nodeID)
	}
	return e.ExecuteVerifications(ctx, VerificationBatch{
		Verifications: node.Verifications,
		TeamID:        teamID,
		TreeID:        treeID,
		NodeID:        node.ID,
	}), nil
}

func (e *VerificationExecutor) executeOne(ctx context.Context, v navigation.Verification, sourcePath, teamID string) controller.VerificationResult {
	verifier := e.verifiers[v.Type]
	if verifier == nil {
		return controller.VerificationResult{
			Error: fmt.Sprintf("no controller for verification type %q", v.Type),
		}
	}
	return verifier.ExecuteVerification(ctx, controller.VerificationConfig{
		Command:           v.Command,
		Params:            v.Params,
		VerificationType:  v.Type,
		TeamID:            teamID,
		UserinterfaceName: e.h.opts.UserinterfaceName,
		SourceImagePath:   sourcePath,
	})
}

// executeCommand serves verification-typed actions: the owning controller is
// found by command name.
func (e *VerificationExecutor) executeCommand(ctx context.Context, command string, params map[string]any) controller.VerificationResult {
	for t, verifier := range e.verifiers {
		for _, c := range verifier.AvailableVerifications() {
			if c == command {
				return verifier.ExecuteVerification(ctx, controller.VerificationConfig{
					Command:          command,
					Params:           params,
					VerificationType: t,
					TeamID:           e.h.opts.TeamID,
				})
			}
		}
	}
	return controller.VerificationResult{Error: fmt.Sprintf("no verification controller owns command %q", command)}
}

// filterVerifications drops records that cannot execute: empty commands and
// type-specific missing params.
func filterVerifications(verifications []navigation.Verification) []navigation.Verification {
	var valid []navigation.Verification
	for _, v := range verifications {
		if strings.TrimSpace(v.Command) == "" {
			continue
		}
		switch v.Type {
		case navigation.VerifyImage:
			if stringParam(v.Params, "image_path") == "" {
				continue
			}
		case navigation.VerifyText:
			if stringParam(v.Params, "text") == "" {
				continue
			}
		case navigation.VerifyADB:
			if stringParam(v.Params, "search_term") == "" {
				continue
			}
		}
		valid = append(valid, v)
	}
	return valid
}

func stringParam(params map[string]any, key string) string {
	s, _ := navigation.FlattenParam(params[key]).(string)
	return s
}

func passCount(results []controller.VerificationResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

// toLocalPath converts an image source URL to a local filesystem path. Plain
// paths pass through; URLs keep only their path component.
func toLocalPath(src string) string {
	if src == "" || !strings.Contains(src, "://") {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	return filepath.FromSlash(u.Path)
}
