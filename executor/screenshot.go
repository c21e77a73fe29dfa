// ABOUTME: Best-effort screenshot capture through the device's AV controller.
// ABOUTME: A missing controller or failed capture is non-fatal and returns an empty path.
package executor

import "go.uber.org/zap"

// CaptureScreenshot asks the device's AV controller for a frame. Returns the
// local path, or "" when the device has no AV controller or capture failed.
func (h *DeviceHandle) CaptureScreenshot() string {
	av := h.Controllers.AV
	if av == nil {
		return ""
	}
	path, err := av.TakeScreenshot()
	if err != nil {
		h.logger.Warn("screenshot capture failed", zap.Error(err))
		return ""
	}
	return path
}
