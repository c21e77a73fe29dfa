// ABOUTME: Path conventions for the device capture tree: hot storage, cold mirror, metadata, segments.
// ABOUTME: HotToCold maps a hot path to its disk-backed mirror by stripping the /hot/ component.
package capture

import (
	"path/filepath"
	"strings"
)

// Well-known names inside a device capture root.
const (
	HotDirName        = "hot"
	MetadataDirName   = "metadata"
	LastZappingName   = "last_zapping.json"
	LastActionName    = "last_action.json"
	FrameMetadataName = "frame_metadata.json"
	RunningLogName    = "running.log"
	PlaylistName      = "output.m3u8"
)

// Paths resolves locations under one device's capture root.
type Paths struct {
	Root string
}

// HotDir returns the hot (short-lived, typically tmpfs) directory.
func (p Paths) HotDir() string {
	return filepath.Join(p.Root, HotDirName)
}

// MetadataDir returns the metadata directory where the capture-monitor writes
// zapping records and where the executor writes action records.
func (p Paths) MetadataDir() string {
	return filepath.Join(p.Root, MetadataDirName)
}

// LastZappingPath returns the capture-monitor's zapping record path.
func (p Paths) LastZappingPath() string {
	return filepath.Join(p.MetadataDir(), LastZappingName)
}

// LastActionPath returns the executor-written last action record path.
func (p Paths) LastActionPath() string {
	return filepath.Join(p.MetadataDir(), LastActionName)
}

// FrameMetadataPath returns the frame-metadata JSON path.
func (p Paths) FrameMetadataPath() string {
	return filepath.Join(p.MetadataDir(), FrameMetadataName)
}

// RunningLogPath returns the live running-log path in hot storage.
func (p Paths) RunningLogPath() string {
	return filepath.Join(p.HotDir(), RunningLogName)
}

// IsHot reports whether a path lives inside a /hot/ directory.
func IsHot(path string) bool {
	return strings.Contains(filepath.ToSlash(path), "/"+HotDirName+"/")
}

// HotToCold maps a hot path to its cold mirror: the same path with the /hot/
// component removed. Non-hot paths are returned unchanged.
func HotToCold(path string) string {
	slash := filepath.ToSlash(path)
	idx := strings.Index(slash, "/"+HotDirName+"/")
	if idx < 0 {
		return path
	}
	cold := slash[:idx] + slash[idx+len(HotDirName)+1:]
	return filepath.FromSlash(cold)
}
