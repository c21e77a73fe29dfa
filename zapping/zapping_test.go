// ABOUTME: Tests for zap iteration analysis: marker correlation, polling, evidence mapping, statistics.
// ABOUTME: Time is driven by a fake clock; the capture-monitor is simulated through JSON files.
package zapping

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/virtualpytest/navigator/capture"
	"github.com/virtualpytest/navigator/executor"
	"github.com/virtualpytest/navigator/script"
	"github.com/virtualpytest/navigator/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type zapRecorderSpy struct {
	mu   sync.Mutex
	zaps []storage.ZapIteration
}

func (r *zapRecorderSpy) RecordScriptExecutionStart(ctx context.Context, exec storage.ScriptExecution) (string, error) {
	return "script-result-1", nil
}

func (r *zapRecorderSpy) UpdateScriptExecutionResult(ctx context.Context, id string, result storage.ScriptResult) error {
	return nil
}

func (r *zapRecorderSpy) RecordEdgeExecution(ctx context.Context, rec storage.EdgeExecution) error {
	return nil
}

func (r *zapRecorderSpy) RecordNodeExecution(ctx context.Context, rec storage.NodeExecution) error {
	return nil
}

func (r *zapRecorderSpy) RecordZapIteration(ctx context.Context, rec storage.ZapIteration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zaps = append(r.zaps, rec)
	return "zap-1", nil
}

func (r *zapRecorderSpy) rows() []storage.ZapIteration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.ZapIteration(nil), r.zaps...)
}

// stubAV serves a single pre-written screenshot.
type stubAV struct{ dir string }

func (s *stubAV) TakeScreenshot() (string, error) {
	p := filepath.Join(s.dir, "screenshots", "shot.jpg")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(p, []byte("jpeg"), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

func (s *stubAV) TakeVideoForReport(durationS, startS float64) (string, error) {
	return "", os.ErrNotExist
}

func (s *stubAV) VideoCapturePath() string { return s.dir }

type fakeSubtitleAnalyzer struct {
	detected bool
	text     string
	language string
	got      []string
}

func (f *fakeSubtitleAnalyzer) AnalyzeSubtitles(ctx context.Context, imagePaths []string) (bool, string, string, error) {
	f.got = append([]string(nil), imagePaths...)
	return f.detected, f.text, f.language, nil
}

type fakeTranscriber struct {
	text     string
	language string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, segmentPath string) (string, string, error) {
	return f.text, f.language, nil
}

const baseUnix = 1_700_000_000

func newTestAnalyzer(t *testing.T, opts executor.HandleOptions) (*Analyzer, *executor.DeviceHandle, *fakeClock, *zapRecorderSpy) {
	t.Helper()
	spy := &zapRecorderSpy{}
	if opts.Recorder == nil {
		opts.Recorder = spy
	}
	if opts.TeamID == "" {
		opts.TeamID = "team-1"
	}
	if opts.HostName == "" {
		opts.HostName = "host-1"
	}
	if opts.UserinterfaceName == "" {
		opts.UserinterfaceName = "horizon"
	}
	dev := executor.Device{
		ID:          "device-1",
		Name:        "living-room",
		Model:       "android_mobile",
		CaptureRoot: t.TempDir(),
	}
	h := executor.NewDeviceHandle(dev, executor.Controllers{AV: &stubAV{dir: dev.CaptureRoot}}, opts)

	clock := &fakeClock{t: time.Unix(baseUnix, 0)}
	a := NewAnalyzer(h)
	a.now = clock.Now
	a.sleep = func(ctx context.Context, d time.Duration) error {
		clock.advance(d)
		return nil
	}
	return a, h, clock, spy
}

func writeMarker(t *testing.T, h *executor.DeviceHandle, rec Record) {
	t.Helper()
	if err := capture.WriteJSONAtomic(h.Paths.LastZappingPath(), rec); err != nil {
		t.Fatal(err)
	}
}

func writeAnalysis(t *testing.T, root, name string, f capture.FrameAnalysis) {
	t.Helper()
	if err := capture.WriteJSONAtomic(filepath.Join(root, name), f); err != nil {
		t.Fatal(err)
	}
}

func completedMarker(actionTS float64) Record {
	return Record{
		Status:                StatusCompleted,
		ActionTimestamp:       actionTS,
		StartedAtUnix:         actionTS,
		ZappingDetected:       true,
		BlackscreenDurationMS: 800,
		TotalZapDurationMS:    2500,
		TimeSinceActionMS:     1200,
		ChannelName:           "BBC One",
		ChannelNumber:         "101",
		ProgramName:           "News at Ten",
		ProgramStartTime:      "22:00",
		ProgramEndTime:        "22:30",
		Confidence:            0.92,
		DetectionType:         DetectionBlackscreen,
	}
}

func TestAnalyzeNonChupSkipsMarker(t *testing.T) {
	a, _, _, spy := newTestAnalyzer(t, executor.HandleOptions{})

	res := a.Analyze(context.Background(), Request{
		IterationIndex: 1,
		ActionCommand:  "press_ok",
	})
	if !res.Success {
		t.Fatalf("non-chup iteration must succeed without a marker: %+v", res)
	}
	if res.ZappingDetected {
		t.Error("no marker correlation for non-chup actions")
	}
	if got := a.Stats.Summary(); got.Total != 1 || got.Successful != 1 {
		t.Errorf("stats not updated: %+v", got)
	}
	if len(spy.rows()) != 1 {
		t.Errorf("expected one zap row, got %d", len(spy.rows()))
	}
}

func TestAnalyzeChupCompletedMarker(t *testing.T) {
	var events []executor.ExecEvent
	a, h, _, spy := newTestAnalyzer(t, executor.HandleOptions{
		Events: func(e executor.ExecEvent) { events = append(events, e) },
	})
	actionTS := float64(baseUnix)
	writeMarker(t, h, completedMarker(actionTS-3))

	sc := script.NewScriptContext("fullzap", h.Device.ID, h.Paths, nil)
	res := a.Analyze(context.Background(), Request{
		IterationIndex:  1,
		ActionCommand:   "live_chup",
		ActionTimestamp: actionTS,
		ScriptResultID:  "script-result-1",
		ScriptContext:   sc,
	})

	if !res.Success || !res.ZappingDetected {
		t.Fatalf("completed marker must yield a successful zap: %+v", res)
	}
	if res.TotalZapDurationS != 2.5 {
		t.Errorf("total_zap_duration_ms must convert to seconds exactly, got %v", res.TotalZapDurationS)
	}
	if res.BlackscreenMS != 800 || res.TimeSinceActionMS != 1200 {
		t.Errorf("durations not lifted: %+v", res)
	}
	if res.ChannelName != "BBC One" || res.ChannelNumber != "101" || res.ProgramName != "News at Ten" {
		t.Errorf("channel info not lifted: %+v", res)
	}
	if res.DetectionMethod != DetectionBlackscreen || res.Confidence != 0.92 {
		t.Errorf("detection info not lifted: %+v", res)
	}
	if res.ZapStartTimestamp != actionTS {
		t.Errorf("zap start must be the action completion timestamp, got %v", res.ZapStartTimestamp)
	}

	rows := spy.rows()
	if len(rows) != 1 {
		t.Fatalf("expected one zap row, got %d", len(rows))
	}
	row := rows[0]
	if row.ScriptResultID != "script-result-1" || row.TeamID != "team-1" || row.HostName != "host-1" {
		t.Errorf("row identity wrong: %+v", row)
	}
	if row.DeviceName != "living-room" || row.DeviceModel != "android_mobile" || row.UserinterfaceName != "horizon" {
		t.Errorf("row device info wrong: %+v", row)
	}
	if !row.ZappingDetected || row.ChannelName != "BBC One" || row.DetectionMethod != DetectionBlackscreen {
		t.Errorf("row evidence wrong: %+v", row)
	}

	steps := sc.StepResults()
	if len(steps) != 1 || steps[0].Category != script.StepZapAction {
		t.Fatalf("expected one zap_action step, got %+v", steps)
	}
	if steps[0].ZapMetrics["channel_name"] != "BBC One" {
		t.Errorf("step metrics missing channel: %+v", steps[0].ZapMetrics)
	}

	if len(events) != 1 || events[0].Type != executor.EventZapIterationDone {
		t.Fatalf("expected a zap.iteration_done event, got %+v", events)
	}
	if events[0].Data["zapping_detected"] != true {
		t.Errorf("event data wrong: %+v", events[0].Data)
	}
}

func TestAnalyzeChupTimestampMismatch(t *testing.T) {
	a, h, _, _ := newTestAnalyzer(t, executor.HandleOptions{})
	actionTS := float64(baseUnix)
	writeMarker(t, h, completedMarker(actionTS-25))

	res := a.Analyze(context.Background(), Request{
		IterationIndex:  1,
		ActionCommand:   "live_chup",
		ActionTimestamp: actionTS,
	})
	if res.Success {
		t.Fatal("mismatched timestamps must fail the iteration")
	}
	if !strings.Contains(res.Error, "does not match") {
		t.Errorf("error must name the mismatch: %q", res.Error)
	}
	if res.ZappingDetected {
		t.Error("no fields lifted from an uncorrelated record")
	}
	if got := a.Stats.Summary(); got.Total != 1 || got.Successful != 0 {
		t.Errorf("failed iteration still counts toward total: %+v", got)
	}
}

func TestAnalyzeChupStaleMarker(t *testing.T) {
	a, h, _, _ := newTestAnalyzer(t, executor.HandleOptions{})
	writeMarker(t, h, Record{
		Status:        StatusInProgress,
		StartedAtUnix: baseUnix - 400,
	})

	res := a.Analyze(context.Background(), Request{
		IterationIndex:  1,
		ActionCommand:   "live_chup",
		ActionTimestamp: baseUnix,
	})
	if res.Success || !strings.Contains(res.Error, "stale") {
		t.Errorf("stale marker must fail: %+v", res)
	}
}

func TestAnalyzeChupPollTimeout(t *testing.T) {
	a, h, clock, _ := newTestAnalyzer(t, executor.HandleOptions{})
	writeMarker(t, h, Record{
		Status:        StatusInProgress,
		StartedAtUnix: baseUnix,
	})

	res := a.Analyze(context.Background(), Request{
		IterationIndex:  1,
		ActionCommand:   "live_chup",
		ActionTimestamp: baseUnix,
	})
	if res.Success || !strings.Contains(res.Error, "still in progress") {
		t.Errorf("poll timeout must fail: %+v", res)
	}
	if waited := clock.Now().Sub(time.Unix(baseUnix, 0)); waited != DefaultPollTimeout {
		t.Errorf("polling must stop at the timeout, waited %s", waited)
	}
}

func TestAnalyzeChupMarkerCompletesMidPoll(t *testing.T) {
	a, h, clock, _ := newTestAnalyzer(t, executor.HandleOptions{})
	actionTS := float64(baseUnix)
	writeMarker(t, h, Record{
		Status:        StatusInProgress,
		StartedAtUnix: actionTS,
	})

	polls := 0
	a.sleep = func(ctx context.Context, d time.Duration) error {
		clock.advance(d)
		polls++
		if polls == 3 {
			writeMarker(t, h, completedMarker(actionTS))
		}
		return nil
	}

	res := a.Analyze(context.Background(), Request{
		IterationIndex:  1,
		ActionCommand:   "live_chup",
		ActionTimestamp: actionTS,
	})
	if !res.Success || !res.ZappingDetected {
		t.Fatalf("marker completing mid-poll must succeed: %+v", res)
	}
	if polls != 3 {
		t.Errorf("polling must stop once the record completes, polls=%d", polls)
	}
}

func TestAnalyzeCollectsMotionAndSubtitleAudioEvidence(t *testing.T) {
	a, h, _, spy := newTestAnalyzer(t, executor.HandleOptions{
		SubtitleAnalyzer: &fakeSubtitleAnalyzer{detected: true, text: "Bonjour le monde", language: "fr"},
		Transcriber:      &fakeTranscriber{text: "hello world", language: "en"},
	})
	root := h.Device.CaptureRoot
	writeAnalysis(t, root, "capture_001.json", capture.FrameAnalysis{Freeze: true, Audio: true})
	writeAnalysis(t, root, "capture_002.json", capture.FrameAnalysis{Audio: true})
	writeAnalysis(t, root, "capture_003.json", capture.FrameAnalysis{Blackscreen: true})
	if err := os.WriteFile(filepath.Join(root, "segment_001.ts"), []byte("ts"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := a.Analyze(context.Background(), Request{
		IterationIndex: 1,
		ActionCommand:  "press_ok",
		AudioAnalysis:  true,
	})
	if !res.MotionDetected {
		t.Error("a live frame must count as motion")
	}
	if !res.SubtitlesDetected || res.SubtitleText != "Bonjour le monde" || res.SubtitleLanguage != "fr" {
		t.Errorf("subtitle evidence not mapped: %+v", res)
	}
	if !res.AudioDetected || res.AudioText != "hello world" || res.AudioLanguage != "en" {
		t.Errorf("audio evidence not mapped: %+v", res)
	}
	wantConf := executor.SpeechConfidence("hello world")
	if math.Abs(res.AudioConfidence-wantConf) > 1e-9 {
		t.Errorf("audio confidence %v, want %v", res.AudioConfidence, wantConf)
	}

	rows := spy.rows()
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if len(rows[0].Languages) != 2 || rows[0].Languages[0] != "fr" || rows[0].Languages[1] != "en" {
		t.Errorf("row languages wrong: %v", rows[0].Languages)
	}
	if len(rows[0].Texts) != 2 {
		t.Errorf("row texts wrong: %v", rows[0].Texts)
	}

	sum := a.Stats.Summary()
	if sum.MotionDetected != 1 || sum.SubtitlesDetected != 1 || sum.AudioDetected != 1 {
		t.Errorf("evidence counters wrong: %+v", sum)
	}
	if len(sum.DetectedLanguages) != 1 || sum.DetectedLanguages[0] != "fr" {
		t.Errorf("detected languages wrong: %v", sum.DetectedLanguages)
	}
	if len(sum.AudioLanguages) != 1 || sum.AudioLanguages[0] != "en" {
		t.Errorf("audio languages wrong: %v", sum.AudioLanguages)
	}
}

func TestAnalyzeSubtitleSourceIsSequentialCaptures(t *testing.T) {
	sub := &fakeSubtitleAnalyzer{detected: true, text: "News", language: "en"}
	a, h, _, _ := newTestAnalyzer(t, executor.HandleOptions{SubtitleAnalyzer: sub})

	dir := filepath.Join(h.Device.CaptureRoot, "captures")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"capture_001.jpg", "capture_002.jpg", "capture_003.jpg", "capture_004.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("jpeg"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res := a.Analyze(context.Background(), Request{IterationIndex: 1, ActionCommand: "press_ok"})
	if !res.SubtitlesDetected {
		t.Fatalf("subtitle evidence not mapped: %+v", res)
	}
	if len(sub.got) != 3 {
		t.Fatalf("expected 3 sequential captures, got %v", sub.got)
	}
	for i, want := range []string{"capture_002.jpg", "capture_003.jpg", "capture_004.jpg"} {
		if filepath.Base(sub.got[i]) != want {
			t.Errorf("capture %d = %q, want %q", i, filepath.Base(sub.got[i]), want)
		}
	}
}

func TestAnalyzeSkipsRowWhenRecordingDisabled(t *testing.T) {
	a, h, _, spy := newTestAnalyzer(t, executor.HandleOptions{})
	h.Nav.SetScript("", "fullzap", true)

	a.Analyze(context.Background(), Request{IterationIndex: 1, ActionCommand: "press_ok"})
	if len(spy.rows()) != 0 {
		t.Errorf("skip_db_recording must suppress zap rows, got %d", len(spy.rows()))
	}
}

func TestStatisticsAverages(t *testing.T) {
	s := NewStatistics()
	s.Add(IterationResult{
		Success: true, ZappingDetected: true,
		TotalZapDurationS: 2, BlackscreenMS: 600, AudioSilenceS: 1,
		DetectionMethod: DetectionBlackscreen,
		ChannelName:     "BBC One", ChannelNumber: "101",
	})
	s.Add(IterationResult{
		Success: true, ZappingDetected: true,
		TotalZapDurationS: 4, BlackscreenMS: 1000,
		DetectionMethod: DetectionFreeze,
		ChannelName:     "ITV",
	})
	s.Add(IterationResult{Success: false})

	sum := s.Summary()
	if sum.Total != 3 || sum.Successful != 2 || sum.ZappingDetected != 2 {
		t.Errorf("counters wrong: %+v", sum)
	}
	if sum.AvgZapDurationS != 3 {
		t.Errorf("avg zap duration: got %v, want 3", sum.AvgZapDurationS)
	}
	if sum.AvgBlackscreenMS != 800 {
		t.Errorf("avg blackscreen: got %v, want 800", sum.AvgBlackscreenMS)
	}
	// Audio silence only applied to one iteration; the mean ignores the rest.
	if sum.AvgAudioSilenceS != 1 {
		t.Errorf("avg audio silence: got %v, want 1", sum.AvgAudioSilenceS)
	}
	if sum.DetectionMethods[DetectionBlackscreen] != 1 || sum.DetectionMethods[DetectionFreeze] != 1 {
		t.Errorf("detection methods wrong: %+v", sum.DetectionMethods)
	}
	if len(sum.Channels) != 2 || sum.Channels[0].Name != "BBC One" || sum.Channels[1].Name != "ITV" {
		t.Errorf("channels wrong: %+v", sum.Channels)
	}
}

func TestReadRecordMissingFile(t *testing.T) {
	if _, err := ReadRecord(filepath.Join(t.TempDir(), "last_zapping.json")); err == nil {
		t.Error("missing record must error")
	}
}
