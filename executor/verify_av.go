// ABOUTME: Built-in audio/video verifications over the capture monitor's frame analyses and HLS segments.
// ABOUTME: Speech transcription and subtitle AI analysis are pluggable external collaborators.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/virtualpytest/navigator/capture"
	"github.com/virtualpytest/navigator/controller"
	"github.com/virtualpytest/navigator/navigation"
)

// Audio/video verification commands.
const (
	CmdDetectMotionFromJson = "DetectMotionFromJson"
	CmdDetectAudioSpeech    = "DetectAudioSpeech"
	CmdDetectSubtitlesAI    = "DetectSubtitlesAI"
)

// Transcriber converts an audio segment to text.
type Transcriber interface {
	// Transcribe returns the recognized text and detected language for one
	// segment file (16 kHz mono is prepared by the caller).
	Transcribe(ctx context.Context, segmentPath string) (text, language string, err error)
}

// SubtitleAnalyzer inspects capture frames for burned-in subtitles.
type SubtitleAnalyzer interface {
	AnalyzeSubtitles(ctx context.Context, imagePaths []string) (detected bool, text, language string, err error)
}

// motionVerifier implements the video family over recent frame analyses.
type motionVerifier struct {
	h *DeviceHandle
}

func newMotionVerifier(h *DeviceHandle) *motionVerifier { return &motionVerifier{h: h} }

func (v *motionVerifier) Type() navigation.VerificationType { return navigation.VerifyVideo }

func (v *motionVerifier) AvailableVerifications() []string {
	return []string{CmdDetectMotionFromJson}
}

func (v *motionVerifier) ExecuteVerification(ctx context.Context, cfg controller.VerificationConfig) controller.VerificationResult {
	if cfg.Command != CmdDetectMotionFromJson {
		return controller.VerificationResult{Error: fmt.Sprintf("video verifier does not own %q", cfg.Command)}
	}
	n := int(floatParam(cfg.Params, "json_count", capture.DefaultRecentFrames))
	analyses, err := capture.LoadRecentAnalyses(v.h.Device.CaptureRoot, n)
	if err != nil {
		return controller.VerificationResult{Error: fmt.Sprintf("load analyses: %v", err)}
	}
	motion := capture.MotionDetected(analyses)
	return controller.VerificationResult{
		Success: motion,
		Message: fmt.Sprintf("motion=%t over %d frames", motion, len(analyses)),
		Details: map[string]any{"frames_checked": len(analyses)},
	}
}

// audioVerifier implements the audio family: frame-level audio presence,
// optional speech transcription, and AI subtitle detection.
type audioVerifier struct {
	h *DeviceHandle
}

func newAudioVerifier(h *DeviceHandle) *audioVerifier { return &audioVerifier{h: h} }

func (v *audioVerifier) Type() navigation.VerificationType { return navigation.VerifyAudio }

func (v *audioVerifier) AvailableVerifications() []string {
	return []string{CmdDetectAudioSpeech, CmdDetectSubtitlesAI}
}

func (v *audioVerifier) ExecuteVerification(ctx context.Context, cfg controller.VerificationConfig) controller.VerificationResult {
	switch cfg.Command {
	case CmdDetectAudioSpeech:
		return v.detectSpeech(ctx, cfg)
	case CmdDetectSubtitlesAI:
		return v.detectSubtitles(ctx, cfg)
	}
	return controller.VerificationResult{Error: fmt.Sprintf("audio verifier does not own %q", cfg.Command)}
}

func (v *audioVerifier) detectSpeech(ctx context.Context, cfg controller.VerificationConfig) controller.VerificationResult {
	n := int(floatParam(cfg.Params, "json_count", capture.DefaultRecentFrames))
	analyses, err := capture.LoadRecentAnalyses(v.h.Device.CaptureRoot, n)
	if err != nil {
		return controller.VerificationResult{Error: fmt.Sprintf("load analyses: %v", err)}
	}
	audioPresent := capture.AudioPresent(analyses)

	result := controller.VerificationResult{
		Success: audioPresent,
		Message: fmt.Sprintf("audio=%t over %d frames", audioPresent, len(analyses)),
		Details: map[string]any{"frames_checked": len(analyses)},
	}
	if v.h.opts.Transcriber == nil || !audioPresent {
		return result
	}

	segments, err := capture.ListSegments(v.h.Device.CaptureRoot)
	if err != nil || len(segments) == 0 {
		return result
	}
	if len(segments) > n {
		segments = segments[len(segments)-n:]
	}
	// Newest segments first; stop on the first one yielding text.
	for i := len(segments) - 1; i >= 0; i-- {
		text, lang, err := v.h.opts.Transcriber.Transcribe(ctx, segments[i])
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		result.ExtractedText = text
		result.DetectedLanguage = lang
		result.Confidence = SpeechConfidence(text)
		result.Details["transcript_segment"] = segments[i]
		return result
	}
	return result
}

func (v *audioVerifier) detectSubtitles(ctx context.Context, cfg controller.VerificationConfig) controller.VerificationResult {
	if v.h.opts.SubtitleAnalyzer == nil {
		return controller.VerificationResult{Error: "no subtitle analyzer configured"}
	}
	// The source is a comma-separated list of up to 3 sequential captures.
	var paths []string
	for _, p := range strings.Split(cfg.SourceImagePath, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		if shot := v.h.CaptureScreenshot(); shot != "" {
			paths = []string{shot}
		}
	}
	if len(paths) == 0 {
		return controller.VerificationResult{Error: "no captures available for subtitle analysis"}
	}
	if len(paths) > 3 {
		paths = paths[:3]
	}

	detected, text, language, err := v.h.opts.SubtitleAnalyzer.AnalyzeSubtitles(ctx, paths)
	if err != nil {
		return controller.VerificationResult{Error: fmt.Sprintf("subtitle analysis: %v", err)}
	}
	return controller.VerificationResult{
		Success:          detected,
		Message:          fmt.Sprintf("subtitles=%t over %d captures", detected, len(paths)),
		ExtractedText:    text,
		DetectedLanguage: language,
		Details:          map[string]any{"captures_analyzed": len(paths)},
	}
}

// SpeechConfidence is the transcript-length heuristic: min(0.95, 0.5 + len/100).
func SpeechConfidence(text string) float64 {
	c := 0.5 + float64(len(text))/100
	if c > 0.95 {
		c = 0.95
	}
	return c
}
