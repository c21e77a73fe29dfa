// ABOUTME: AV controller backed by the capture-monitor's frame stream: screenshots are the newest capture.
// ABOUTME: Frames land under <capture_root>/captures; video clips are produced by the monitor, not here.
package controller

import (
	"fmt"
	"path/filepath"

	"github.com/virtualpytest/navigator/capture"
)

// CaptureAV reads the capture-monitor's output instead of talking to device
// hardware. Screenshot requests return the most recent captured frame.
type CaptureAV struct {
	CaptureRoot string
}

func (c *CaptureAV) VideoCapturePath() string { return c.CaptureRoot }

// TakeScreenshot returns the newest captured frame.
func (c *CaptureAV) TakeScreenshot() (string, error) {
	frames, err := capture.RecentFrames(c.CaptureRoot, 1)
	if err != nil {
		return "", fmt.Errorf("read captures dir: %w", err)
	}
	if len(frames) == 0 {
		return "", fmt.Errorf("no captured frames under %s", filepath.Join(c.CaptureRoot, capture.CapturesDirName))
	}
	return frames[0], nil
}

// TakeVideoForReport is handled by the capture-monitor's HLS pipeline; this
// controller cannot cut clips itself.
func (c *CaptureAV) TakeVideoForReport(durationS, startS float64) (string, error) {
	return "", fmt.Errorf("video reports require the capture monitor pipeline")
}
