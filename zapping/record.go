// ABOUTME: Contract for the capture-monitor's last_zapping.json record and its correlation errors.
// ABOUTME: The record is read-only here; the capture-monitor owns the write side.
package zapping

import (
	"fmt"
	"time"

	"github.com/virtualpytest/navigator/capture"
)

// Record statuses written by the capture-monitor.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Detection types reported by the capture-monitor.
const (
	DetectionBlackscreen = "blackscreen"
	DetectionFreeze      = "freeze"
)

// DefaultMarkerTimeoutS applies when a record omits timeout_seconds.
const DefaultMarkerTimeoutS = 300.0

// MaxActionSkewS is the largest accepted gap between the executed action's
// timestamp and the record's action_timestamp.
const MaxActionSkewS = 10.0

// Record is the capture-monitor's zapping-detection record.
type Record struct {
	Status                string   `json:"status"`
	ActionTimestamp       float64  `json:"action_timestamp"`
	StartedAtUnix         float64  `json:"started_at_unix"`
	TimeoutSeconds        float64  `json:"timeout_seconds"`
	ZappingDetected       bool     `json:"zapping_detected"`
	BlackscreenDurationMS float64  `json:"blackscreen_duration_ms"`
	TotalZapDurationMS    float64  `json:"total_zap_duration_ms"`
	TimeSinceActionMS     float64  `json:"time_since_action_ms"`
	ChannelName           string   `json:"channel_name,omitempty"`
	ChannelNumber         string   `json:"channel_number,omitempty"`
	ProgramName           string   `json:"program_name,omitempty"`
	ProgramStartTime      string   `json:"program_start_time,omitempty"`
	ProgramEndTime        string   `json:"program_end_time,omitempty"`
	Confidence            float64  `json:"confidence,omitempty"`
	DetectionType         string   `json:"detection_type,omitempty"`
	TransitionImages      []string `json:"transition_images,omitempty"`
	TransitionImageURLs   []string `json:"transition_image_urls,omitempty"`
	AudioSilenceDuration  float64  `json:"audio_silence_duration,omitempty"`
}

// markerTimeout resolves the record's staleness cutoff.
func (r *Record) markerTimeout() float64 {
	if r.TimeoutSeconds > 0 {
		return r.TimeoutSeconds
	}
	return DefaultMarkerTimeoutS
}

// ReadRecord parses the record at path.
func ReadRecord(path string) (*Record, error) {
	var rec Record
	if err := capture.ReadJSON(path, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkerStaleError reports an in_progress record whose started_at_unix is
// older than its timeout.
type MarkerStaleError struct {
	AgeSeconds     float64
	TimeoutSeconds float64
}

func (e *MarkerStaleError) Error() string {
	return fmt.Sprintf("zapping marker stale: started %.0fs ago, timeout %.0fs", e.AgeSeconds, e.TimeoutSeconds)
}

// TimestampMismatchError reports a completed record that does not correlate
// with the executed action.
type TimestampMismatchError struct {
	ActionTimestamp float64
	RecordTimestamp float64
}

func (e *TimestampMismatchError) Error() string {
	return fmt.Sprintf("zapping record timestamp %.1f does not match action timestamp %.1f (max skew %.0fs)",
		e.RecordTimestamp, e.ActionTimestamp, MaxActionSkewS)
}

// PollTimeoutError reports that no completed record appeared in time.
type PollTimeoutError struct {
	Waited time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("zapping record still in progress after %s", e.Waited)
}
