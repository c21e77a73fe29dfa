// ABOUTME: Capability interfaces for device-attached controllers: action, verification, AV, power.
// ABOUTME: The executors dispatch through these narrow interfaces; concrete controllers live out of process.
package controller

import (
	"context"

	"github.com/virtualpytest/navigator/navigation"
)

// Result is the uniform outcome of one action-controller command.
type Result struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	OutputData map[string]any `json:"output_data,omitempty"`
}

// ActionController executes typed commands against a device surface
// (remote, web, desktop, av). Implementations own a fixed command set.
type ActionController interface {
	// Type returns the controller family ("remote", "web", "desktop", "av").
	Type() string

	// ExecuteCommand runs one command with flattened scalar params.
	ExecuteCommand(ctx context.Context, command string, params map[string]any) Result

	// AvailableActions lists the commands this controller owns.
	AvailableActions() []string
}

// PowerController switches device power; the boolean result is lifted to a
// Result by the action executor.
type PowerController interface {
	ExecuteCommand(ctx context.Context, command string, params map[string]any) (bool, error)
}

// AVController captures the device's audio/video output.
type AVController interface {
	// TakeScreenshot captures a frame and returns its local path.
	TakeScreenshot() (string, error)

	// TakeVideoForReport records a clip and returns its uploaded URL.
	TakeVideoForReport(durationS, startS float64) (string, error)

	// VideoCapturePath returns the device's capture root directory.
	VideoCapturePath() string
}

// VerificationConfig is the input handed to a verification controller.
type VerificationConfig struct {
	Command           string
	Params            map[string]any
	VerificationType  navigation.VerificationType
	TeamID            string
	UserinterfaceName string
	SourceImagePath   string
}

// VerificationResult is the uniform outcome of one verification.
type VerificationResult struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message,omitempty"`
	Error            string         `json:"error,omitempty"`
	Confidence       float64        `json:"confidence,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
	SourceURL        string         `json:"sourceUrl,omitempty"`
	ReferenceURL     string         `json:"referenceUrl,omitempty"`
	OverlayURL       string         `json:"overlayUrl,omitempty"`
	ExtractedText    string         `json:"extractedText,omitempty"`
	SearchedText     string         `json:"searchedText,omitempty"`
	DetectedLanguage string         `json:"detected_language,omitempty"`
	OutputData       map[string]any `json:"output_data,omitempty"`
}

// VerificationController runs one family of verifications (image, text,
// audio, video, adb, appium).
type VerificationController interface {
	Type() navigation.VerificationType
	ExecuteVerification(ctx context.Context, config VerificationConfig) VerificationResult
	AvailableVerifications() []string
}
