// ABOUTME: Per-frame analysis records written by the capture-monitor, consumed read-only here.
// ABOUTME: LoadRecentAnalyses returns the last N analysis JSONs; motion and audio predicates derive from them.
package capture

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FrameAnalysis is one capture-monitor analysis record.
type FrameAnalysis struct {
	Freeze      bool    `json:"freeze"`
	Blackscreen bool    `json:"blackscreen"`
	Audio       bool    `json:"audio"`
	Timestamp   float64 `json:"timestamp,omitempty"`
	Path        string  `json:"-"`
}

// DefaultRecentFrames is the number of analysis records sampled for motion
// and audio decisions.
const DefaultRecentFrames = 3

// LoadRecentAnalyses reads the last n frame-analysis JSONs from the capture
// root, newest last. Analysis files are named capture_*.json; lexicographic
// order matches capture order because filenames embed a sequence timestamp.
func LoadRecentAnalyses(captureRoot string, n int) ([]FrameAnalysis, error) {
	if n <= 0 {
		n = DefaultRecentFrames
	}
	entries, err := os.ReadDir(captureRoot)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "capture_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > n {
		names = names[len(names)-n:]
	}

	frames := make([]FrameAnalysis, 0, len(names))
	for _, name := range names {
		path := filepath.Join(captureRoot, name)
		var f FrameAnalysis
		if err := ReadJSON(path, &f); err != nil {
			continue // partial or in-flight write; skip the frame
		}
		f.Path = path
		frames = append(frames, f)
	}
	return frames, nil
}

// MotionDetected reports whether any frame is neither frozen nor blackscreen.
func MotionDetected(frames []FrameAnalysis) bool {
	for _, f := range frames {
		if !f.Freeze && !f.Blackscreen {
			return true
		}
	}
	return false
}

// AudioPresent reports whether any frame carries audio energy.
func AudioPresent(frames []FrameAnalysis) bool {
	for _, f := range frames {
		if f.Audio {
			return true
		}
	}
	return false
}

// CapturesDirName is where the capture-monitor writes full frames.
const CapturesDirName = "captures"

// RecentFrames returns the last n full-frame captures (capture_*.jpg or .png)
// under <root>/captures in capture order, oldest first. Filenames embed a
// sequence timestamp, so lexicographic order matches capture order. n <= 0
// returns every frame.
func RecentFrames(captureRoot string, n int) ([]string, error) {
	dir := filepath.Join(captureRoot, CapturesDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "capture_") {
			continue
		}
		if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".png") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if n > 0 && len(names) > n {
		names = names[len(names)-n:]
	}

	frames := make([]string, 0, len(names))
	for _, name := range names {
		frames = append(frames, filepath.Join(dir, name))
	}
	return frames, nil
}

// ListSegments returns the HLS segment files (segment_*.ts) under the capture
// root in sequence order.
func ListSegments(captureRoot string) ([]string, error) {
	entries, err := os.ReadDir(captureRoot)
	if err != nil {
		return nil, err
	}
	var segments []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "segment_") || !strings.HasSuffix(name, ".ts") {
			continue
		}
		segments = append(segments, filepath.Join(captureRoot, name))
	}
	sort.Strings(segments)
	return segments, nil
}
