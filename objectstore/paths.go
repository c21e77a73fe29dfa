// ABOUTME: Well-known object-store key layouts shared by the engine and the web frontend.
// ABOUTME: Keys are plain strings; these helpers keep the prefixes in one place.
package objectstore

import (
	"fmt"
	"path"
	"strings"
)

// ReferenceImageKey returns the key for a reference image of a device model.
// Filter selects the pre-filtered variant: "" or "none" for the plain image,
// "greyscale" or "binary" for the suffixed ones.
func ReferenceImageKey(deviceModel, name, filter string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	ext := path.Ext(name)
	if ext == "" {
		ext = ".jpg"
	}
	switch filter {
	case "", "none":
		return fmt.Sprintf("reference-images/%s/%s%s", deviceModel, base, ext)
	default:
		return fmt.Sprintf("reference-images/%s/%s_%s%s", deviceModel, base, filter, ext)
	}
}

// NavigationScreenshotKey returns the key for a node screenshot.
func NavigationScreenshotKey(deviceModel, name string) string {
	return fmt.Sprintf("navigation/%s/%s", deviceModel, name)
}

// ScriptReportKey returns the key for a run's HTML report.
func ScriptReportKey(deviceModel, scriptName, dateStamp, timestamp string) string {
	return fmt.Sprintf("script-reports/%s/%s_%s_%s/report.html", deviceModel, scriptName, dateStamp, timestamp)
}

// ScriptScreenshotKey returns the key for a run screenshot, keyed by device id
// and the local file's base name.
func ScriptScreenshotKey(deviceID, localPath string) string {
	return fmt.Sprintf("script-screenshots/%s/%s", deviceID, path.Base(localPath))
}

// ScriptLogKey returns the key for a run's captured stdout log.
func ScriptLogKey(deviceID, scriptName, scriptResultID string) string {
	return fmt.Sprintf("script-logs/%s/%s_%s.log", deviceID, scriptName, scriptResultID)
}

// AudioAnalysisKey returns the key for an extracted audio segment.
func AudioAnalysisKey(deviceID, segmentName string) string {
	return fmt.Sprintf("audio-analysis/%s/%s", deviceID, segmentName)
}

// ContentTypeFor guesses a content type from the file extension, defaulting
// to octet-stream.
func ContentTypeFor(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".html":
		return "text/html"
	case ".json":
		return "application/json"
	case ".txt", ".log":
		return "text/plain"
	case ".wav":
		return "audio/wav"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
