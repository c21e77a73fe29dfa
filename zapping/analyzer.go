// ABOUTME: Per-iteration zap analysis: motion evidence, marker correlation, and subtitle/audio verifications.
// ABOUTME: Analysis failures are reported in the result; they never abort the owning script.
package zapping

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/virtualpytest/navigator/capture"
	"github.com/virtualpytest/navigator/executor"
	"github.com/virtualpytest/navigator/navigation"
	"github.com/virtualpytest/navigator/script"
	"github.com/virtualpytest/navigator/storage"
)

// Polling cadence for the in_progress marker.
const (
	DefaultPollTimeout  = 15 * time.Second
	DefaultPollInterval = time.Second
)

// Request describes one zap iteration to analyze.
type Request struct {
	IterationIndex int
	ActionCommand  string
	// ActionTimestamp is the action's completion time in Unix seconds;
	// zero means no action timestamp is available.
	ActionTimestamp float64
	AudioAnalysis   bool
	ScriptResultID  string
	ScriptContext   *script.ScriptContext
}

// IterationResult is the evidence collected for one zap iteration.
type IterationResult struct {
	Success            bool    `json:"success"`
	Error              string  `json:"error,omitempty"`
	IterationIndex     int     `json:"iteration_index"`
	ZapStartTimestamp  float64 `json:"zap_start_timestamp"`
	StartedAt          time.Time
	CompletedAt        time.Time
	DurationSeconds    float64 `json:"duration_seconds"`
	MotionDetected     bool    `json:"motion_detected"`
	SubtitlesDetected  bool    `json:"subtitles_detected"`
	SubtitleText       string  `json:"subtitle_text,omitempty"`
	SubtitleLanguage   string  `json:"subtitle_language,omitempty"`
	AudioDetected      bool    `json:"audio_detected"`
	AudioText          string  `json:"audio_text,omitempty"`
	AudioLanguage      string  `json:"audio_language,omitempty"`
	AudioConfidence    float64 `json:"audio_confidence,omitempty"`
	ZappingDetected    bool    `json:"zapping_detected"`
	BlackscreenMS      float64 `json:"blackscreen_duration_ms,omitempty"`
	TotalZapDurationS  float64 `json:"total_zap_duration_s,omitempty"`
	TimeSinceActionMS  float64 `json:"time_since_action_ms,omitempty"`
	DetectionMethod    string  `json:"detection_method,omitempty"`
	Confidence         float64 `json:"confidence,omitempty"`
	ChannelName        string  `json:"channel_name,omitempty"`
	ChannelNumber      string  `json:"channel_number,omitempty"`
	ProgramName        string  `json:"program_name,omitempty"`
	ProgramStartTime   string  `json:"program_start_time,omitempty"`
	ProgramEndTime     string  `json:"program_end_time,omitempty"`
	AudioSilenceS      float64 `json:"audio_silence_duration,omitempty"`
	TransitionImages   []string
	TransitionImgURLs  []string
}

// Analyzer correlates channel-change actions with the capture-monitor's
// asynchronous detection and accumulates run statistics.
type Analyzer struct {
	h      *executor.DeviceHandle
	logger *zap.Logger
	Stats  *Statistics

	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewAnalyzer(h *executor.DeviceHandle) *Analyzer {
	return &Analyzer{
		h:            h,
		logger:       h.Logger(),
		Stats:        NewStatistics(),
		now:          time.Now,
		sleep:        sleepWithContext,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
	}
}

// Analyze runs the evidence pipeline for one iteration: motion from recent
// frame analyses, marker correlation for chup actions, then the requested
// subtitle/audio verifications. The result always lands in Stats and, when
// a script context is attached, as a zap_action step.
func (a *Analyzer) Analyze(ctx context.Context, req Request) IterationResult {
	started := a.now()
	res := IterationResult{
		IterationIndex:    req.IterationIndex,
		ZapStartTimestamp: req.ActionTimestamp,
		StartedAt:         started,
	}

	if frames, err := capture.LoadRecentAnalyses(a.h.Device.CaptureRoot, capture.DefaultRecentFrames); err == nil {
		res.MotionDetected = capture.MotionDetected(frames)
	} else {
		a.logger.Warn("motion analysis unavailable", zap.Error(err))
	}

	if strings.Contains(req.ActionCommand, "chup") && req.ActionTimestamp > 0 {
		rec, err := a.awaitMarker(ctx, req.ActionTimestamp)
		if err != nil {
			res.Error = err.Error()
		} else {
			liftRecord(rec, &res)
		}
	}

	a.runVerifications(ctx, req, &res)

	res.CompletedAt = a.now()
	res.DurationSeconds = res.CompletedAt.Sub(res.StartedAt).Seconds()
	res.Success = res.Error == ""

	a.Stats.Add(res)
	a.recordStep(req, res)
	a.recordRow(ctx, req, res)
	if h := a.h.Events(); h != nil {
		h(executor.ExecEvent{
			Type:      executor.EventZapIterationDone,
			Timestamp: res.CompletedAt,
			Data: map[string]any{
				"iteration":        req.IterationIndex,
				"success":          res.Success,
				"zapping_detected": res.ZappingDetected,
				"channel_name":     res.ChannelName,
			},
		})
	}

	a.logger.Info("zap iteration analyzed",
		zap.Int("iteration", req.IterationIndex),
		zap.Bool("success", res.Success),
		zap.Bool("motion", res.MotionDetected),
		zap.Bool("zapping", res.ZappingDetected),
		zap.String("channel", res.ChannelName))
	return res
}

// awaitMarker reads last_zapping.json, polling while the capture-monitor is
// still measuring. A missing file counts as in-progress.
func (a *Analyzer) awaitMarker(ctx context.Context, actionTS float64) (*Record, error) {
	deadline := a.now().Add(a.pollTimeout)
	for {
		rec, err := ReadRecord(a.h.Paths.LastZappingPath())
		if err == nil {
			switch rec.Status {
			case StatusCompleted:
				if math.Abs(actionTS-rec.ActionTimestamp) > MaxActionSkewS {
					return nil, &TimestampMismatchError{
						ActionTimestamp: actionTS,
						RecordTimestamp: rec.ActionTimestamp,
					}
				}
				return rec, nil
			case StatusInProgress:
				timeout := rec.markerTimeout()
				if age := capture.UnixSeconds(a.now()) - rec.StartedAtUnix; age > timeout {
					return nil, &MarkerStaleError{AgeSeconds: age, TimeoutSeconds: timeout}
				}
			}
		}
		if !a.now().Before(deadline) {
			return nil, &PollTimeoutError{Waited: a.pollTimeout}
		}
		if err := a.sleep(ctx, a.pollInterval); err != nil {
			return nil, err
		}
	}
}

func liftRecord(rec *Record, res *IterationResult) {
	res.ZappingDetected = rec.ZappingDetected
	res.BlackscreenMS = rec.BlackscreenDurationMS
	res.TotalZapDurationS = rec.TotalZapDurationMS / 1000
	res.TimeSinceActionMS = rec.TimeSinceActionMS
	res.DetectionMethod = rec.DetectionType
	res.Confidence = rec.Confidence
	res.ChannelName = rec.ChannelName
	res.ChannelNumber = rec.ChannelNumber
	res.ProgramName = rec.ProgramName
	res.ProgramStartTime = rec.ProgramStartTime
	res.ProgramEndTime = rec.ProgramEndTime
	res.AudioSilenceS = rec.AudioSilenceDuration
	res.TransitionImages = rec.TransitionImages
	res.TransitionImgURLs = rec.TransitionImageURLs
}

// runVerifications collects subtitle evidence on every iteration and speech
// evidence when audio analysis was requested. Subtitle analysis reads the
// last 3 sequential captures, passed as a comma-separated source list.
func (a *Analyzer) runVerifications(ctx context.Context, req Request, res *IterationResult) {
	verifs := []navigation.Verification{
		{Type: navigation.VerifyAudio, Command: executor.CmdDetectSubtitlesAI},
	}
	if req.AudioAnalysis {
		verifs = append(verifs, navigation.Verification{
			Type: navigation.VerifyAudio, Command: executor.CmdDetectAudioSpeech,
		})
	}

	batch := executor.VerificationBatch{
		Verifications: verifs,
		TeamID:        a.h.TeamID(),
	}
	if frames, err := capture.RecentFrames(a.h.Device.CaptureRoot, 3); err == nil && len(frames) > 0 {
		batch.ImageSourceURL = strings.Join(frames, ",")
	}

	out := a.h.Verifications.ExecuteVerifications(ctx, batch)
	if len(out.Results) > 0 {
		sub := out.Results[0]
		if sub.Error == "" {
			res.SubtitlesDetected = sub.Success
			res.SubtitleText = sub.ExtractedText
			res.SubtitleLanguage = sub.DetectedLanguage
		}
	}
	if req.AudioAnalysis && len(out.Results) > 1 {
		au := out.Results[1]
		if au.Error == "" {
			res.AudioDetected = au.Success
			res.AudioText = au.ExtractedText
			res.AudioLanguage = au.DetectedLanguage
			res.AudioConfidence = au.Confidence
		}
	}
}

func (a *Analyzer) recordStep(req Request, res IterationResult) {
	if req.ScriptContext == nil {
		return
	}
	step := script.StepResult{
		Category:        script.StepZapAction,
		Success:         res.Success,
		ExecutionTimeMS: int64(res.DurationSeconds * 1000),
		Message:         stepMessage(req, res),
		Error:           res.Error,
		ZapMetrics: map[string]any{
			"iteration":            res.IterationIndex,
			"motion_detected":      res.MotionDetected,
			"subtitles_detected":   res.SubtitlesDetected,
			"audio_detected":       res.AudioDetected,
			"zapping_detected":     res.ZappingDetected,
			"blackscreen_ms":       res.BlackscreenMS,
			"total_zap_duration_s": res.TotalZapDurationS,
			"channel_name":         res.ChannelName,
			"channel_number":       res.ChannelNumber,
			"detection_method":     res.DetectionMethod,
		},
	}
	req.ScriptContext.RecordStep(step)
}

func stepMessage(req Request, res IterationResult) string {
	if res.ZappingDetected {
		return "zap " + req.ActionCommand + " -> " + res.ChannelName
	}
	return "zap " + req.ActionCommand
}

func (a *Analyzer) recordRow(ctx context.Context, req Request, res IterationResult) {
	nav := a.h.Nav.Snapshot()
	if nav.SkipDBRecording {
		return
	}
	var languages, texts []string
	if res.SubtitleLanguage != "" {
		languages = append(languages, res.SubtitleLanguage)
	}
	if res.AudioLanguage != "" && res.AudioLanguage != res.SubtitleLanguage {
		languages = append(languages, res.AudioLanguage)
	}
	if res.SubtitleText != "" {
		texts = append(texts, res.SubtitleText)
	}
	if res.AudioText != "" {
		texts = append(texts, res.AudioText)
	}

	_, err := a.h.Recorder().RecordZapIteration(ctx, storage.ZapIteration{
		ScriptResultID:    req.ScriptResultID,
		TeamID:            a.h.TeamID(),
		HostName:          a.h.HostName(),
		DeviceName:        a.h.Device.Name,
		DeviceModel:       a.h.Device.Model,
		UserinterfaceName: a.h.UserinterfaceName(),
		IterationIndex:    req.IterationIndex,
		ActionCommand:     req.ActionCommand,
		StartedAt:         res.StartedAt,
		CompletedAt:       res.CompletedAt,
		DurationSeconds:   res.DurationSeconds,
		MotionDetected:    res.MotionDetected,
		SubtitlesDetected: res.SubtitlesDetected,
		AudioDetected:     res.AudioDetected,
		ZappingDetected:   res.ZappingDetected,
		Languages:         languages,
		Texts:             texts,
		BlackscreenMS:     res.BlackscreenMS,
		DetectionMethod:   res.DetectionMethod,
		ChannelName:       res.ChannelName,
		ChannelNumber:     res.ChannelNumber,
		ProgramName:       res.ProgramName,
		ProgramStartTime:  res.ProgramStartTime,
		ProgramEndTime:    res.ProgramEndTime,
	})
	if err != nil {
		a.logger.Warn("zap iteration row not recorded", zap.Error(err))
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
